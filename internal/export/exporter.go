package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

// Exporter archives every completed session as GPX and FIT files in a
// local directory. It is the completion-time ActivityExporter; the
// history endpoints render the same formats on demand instead.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

func (e *Exporter) Export(ctx context.Context, s tracking.Session) error {
	if e.dir == "" {
		return nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	gpxBytes, err := GPX(s)
	if err != nil {
		return fmt.Errorf("render gpx: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, s.ID+".gpx"), gpxBytes, 0o644); err != nil {
		return fmt.Errorf("write gpx: %w", err)
	}

	fitBytes, err := FIT(s)
	if err != nil {
		return fmt.Errorf("render fit: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, s.ID+".fit"), fitBytes, 0o644); err != nil {
		return fmt.Errorf("write fit: %w", err)
	}

	log.Printf("session %s archived to %s", s.ID, e.dir)
	return nil
}
