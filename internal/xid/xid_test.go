package xid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsValidUUID(t *testing.T) {
	id := New()
	assert.True(t, Valid(id))
	assert.NotEqual(t, id, New())
}

func TestValidRejectsGarbage(t *testing.T) {
	assert.False(t, Valid("shift-1"))
	assert.False(t, Valid(""))
}

func TestSessionHasNoDashes(t *testing.T) {
	assert.Len(t, Session(), 32)
	assert.NotContains(t, Session(), "-")
}

func TestSequence(t *testing.T) {
	next := Sequence("tx")
	assert.Equal(t, "tx-1", next())
	assert.Equal(t, "tx-2", next())
}
