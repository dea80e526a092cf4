package xid

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces identifiers. Tests swap in a deterministic one.
type Generator func() string

// New returns a random UUID string; remote tables store ids as uuid columns.
func New() string {
	return uuid.NewString()
}

// Session returns an opaque session identifier without dashes.
func Session() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func Valid(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// Sequence returns a Generator yielding prefix-1, prefix-2, ...
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10)
	}
}
