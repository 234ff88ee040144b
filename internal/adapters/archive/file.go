// Package archive persists delivery and template status events.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// ObjectKey returns the date-partitioned key of an event: year=YYYY/month=MM/day=DD/<uuid>.json.
// The partition follows the event date, falling back to now when it does not parse.
func ObjectKey(event entities.StatusEvent, now time.Time) string {
	day, err := time.Parse(time.DateOnly, event.EventDate)
	if err != nil {
		day = now.UTC()
	}
	return fmt.Sprintf("year=%d/month=%02d/day=%02d/%s.json", day.Year(), day.Month(), day.Day(), uuid.NewString())
}

// FileArchiver implements ports.StatusArchiver by writing one JSON file per event under root.
type FileArchiver struct {
	root string
	now  func() time.Time
}

// NewFileArchiver creates an archiver rooted at dir, creating it if needed.
func NewFileArchiver(dir string) (*FileArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &FileArchiver{root: dir, now: time.Now}, nil
}

// Archive writes event under its partition directory.
func (a *FileArchiver) Archive(ctx context.Context, event entities.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	path := filepath.Join(a.root, filepath.FromSlash(ObjectKey(event, a.now())))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating partition: %w", err)
	}

	// Write then rename so readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing status event: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing status event: %w", err)
	}
	return nil
}
