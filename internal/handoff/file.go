package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type fileRecord struct {
	Text     string    `json:"text"`
	StoredAt time.Time `json:"stored_at"`
}

// FileSlot stores the value as JSON under the XDG state directory.
type FileSlot struct {
	Path string
	TTL  time.Duration

	now func() time.Time
}

func NewFileSlot(path string, ttl time.Duration) *FileSlot {
	return &FileSlot{Path: path, TTL: ttl, now: time.Now}
}

// DefaultPath returns $XDG_STATE_HOME/rehearse/cv_extracted_text.json.
func DefaultPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "rehearse", "cv_extracted_text.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for handoff: %w", err)
	}
	return filepath.Join(home, ".local", "state", "rehearse", "cv_extracted_text.json"), nil
}

func (s *FileSlot) Put(_ context.Context, text string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create handoff dir: %w", err)
	}
	payload, err := json.Marshal(fileRecord{Text: text, StoredAt: s.clock()})
	if err != nil {
		return fmt.Errorf("encode handoff: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write handoff: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("commit handoff: %w", err)
	}
	return nil
}

// Take claims the file by renaming it, so concurrent readers cannot both
// consume it.
func (s *FileSlot) Take(_ context.Context) (string, error) {
	claimed := fmt.Sprintf("%s.claimed.%d", s.Path, os.Getpid())
	if err := os.Rename(s.Path, claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("claim handoff: %w", err)
	}
	defer os.Remove(claimed)

	data, err := os.ReadFile(claimed)
	if err != nil {
		return "", fmt.Errorf("read handoff: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode handoff: %w", err)
	}
	if s.TTL > 0 && s.clock().Sub(rec.StoredAt) > s.TTL {
		return "", ErrEmpty
	}
	return rec.Text, nil
}

func (s *FileSlot) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
