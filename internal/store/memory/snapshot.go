package memory

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
)

type snapshotFile struct {
	KV    map[string]string `json:"kv"`
	Users []snapshotUser    `json:"users"`
}

// snapshotUser carries the password hash that UserAccount hides from JSON.
type snapshotUser struct {
	domain.UserAccount
	PasswordHash string `json:"password_hash"`
}

// loadSnapshot replaces the in-memory state with the snapshot file. It reports
// false when there is no usable file.
func (s *Store) loadSnapshot() bool {
	if s.snapshotPath == "" {
		return false
	}
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("demo snapshot unreadable, starting from seed", zap.String("path", s.snapshotPath), zap.Error(err))
		}
		return false
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil || len(snap.KV) == 0 {
		s.logger.Warn("demo snapshot invalid, starting from seed", zap.String("path", s.snapshotPath), zap.Error(err))
		return false
	}

	s.kv = make(map[string][]byte, len(snap.KV))
	for key, value := range snap.KV {
		s.kv[key] = []byte(value)
	}
	s.users = make(map[string]domain.UserAccount, len(snap.Users))
	for _, u := range snap.Users {
		account := u.UserAccount
		account.Password = u.PasswordHash
		s.users[account.Username] = account
	}
	s.logger.Info("demo snapshot loaded", zap.String("path", s.snapshotPath), zap.Int("users", len(s.users)))
	return true
}

// saveSnapshotLocked writes the state through a temp file and a rename, so a
// crash leaves either the old or the new snapshot. Failures are logged; the
// in-memory state stays authoritative. Callers must hold the write lock or own s.
func (s *Store) saveSnapshotLocked() {
	if s.snapshotPath == "" {
		return
	}
	snap := snapshotFile{KV: make(map[string]string, len(s.kv))}
	for key, value := range s.kv {
		snap.KV[key] = string(value)
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, snapshotUser{UserAccount: u, PasswordHash: u.Password})
	}
	slices.SortFunc(snap.Users, func(a, b snapshotUser) int { return cmpString(a.Username, b.Username) })

	if err := writeFileAtomic(s.snapshotPath, snap); err != nil {
		s.logger.Warn("demo snapshot not saved", zap.String("path", s.snapshotPath), zap.Error(err))
	}
}

func writeFileAtomic(path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".posgo-snapshot-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
