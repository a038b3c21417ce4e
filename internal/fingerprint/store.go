// Package fingerprint detects unchanged board payloads so the pipeline can
// skip re-processing them. One digest file per board, overwritten on commit.
package fingerprint

import (
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/rs/zerolog"
    "github.com/zeebo/blake3"
)

type Store struct {
    dir string
    log zerolog.Logger
}

func NewStore(dir string, log zerolog.Logger) *Store {
    return &Store{dir: dir, log: log}
}

// Fingerprint digests a canonical serialization of the payload. encoding/json
// writes map keys in sorted order, so structurally equal payloads fingerprint
// identically regardless of field order in the source.
func (s *Store) Fingerprint(payload any) (string, error) {
    b, err := json.Marshal(payload)
    if err != nil { return "", err }
    sum := blake3.Sum256(b)
    return hex.EncodeToString(sum[:]), nil
}

// HasChanged reports true when no fingerprint is stored for the board or the
// stored value differs. Storage errors propagate; they are never treated as
// "changed" or "unchanged".
func (s *Store) HasChanged(boardID int64, fp string) (bool, error) {
    b, err := os.ReadFile(s.path(boardID))
    if errors.Is(err, os.ErrNotExist) { return true, nil }
    if err != nil { return false, err }
    return strings.TrimSpace(string(b)) != fp, nil
}

// Commit overwrites the stored fingerprint for the board. No history is kept.
func (s *Store) Commit(boardID int64, fp string) error {
    if err := os.MkdirAll(s.dir, 0o755); err != nil { return err }
    return os.WriteFile(s.path(boardID), []byte(fp), 0o644)
}

func (s *Store) path(boardID int64) string {
    return filepath.Join(s.dir, fmt.Sprintf("board_%d_hash.txt", boardID))
}
