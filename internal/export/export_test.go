package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

func sampleSession() tracking.Session {
	started := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	alt1, alt2 := 650.0, 655.0
	return tracking.Session{
		ID:             "ruck-1",
		Status:         tracking.StatusCompleted,
		StartedAt:      started,
		CompletedAt:    started.Add(10 * time.Minute),
		ElapsedSeconds: 600,
		Route: []tracking.LocationPoint{
			{Lat: 40.0, Lng: -3.7, AltitudeM: &alt1, RecordedAt: started},
			{Lat: 40.005, Lng: -3.7, AltitudeM: &alt2, RecordedAt: started.Add(5 * time.Minute)},
			{Lat: 40.009, Lng: -3.7, RecordedAt: started.Add(10 * time.Minute)},
		},
		HeartRate: []tracking.HeartRateSample{
			{BPM: 118, RecordedAt: started},
			{BPM: 131, RecordedAt: started.Add(5 * time.Minute)},
		},
		Metrics: tracking.Metrics{
			DistanceKm: 1.0, ElevationGainM: 5, Calories: 76,
			AvgHeartRate: 124.5, MaxHeartRate: 131,
		},
		Notes: "river loop",
	}
}

func TestGPX(t *testing.T) {
	out, err := GPX(sampleSession())
	if err != nil {
		t.Fatalf("gpx: %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<gpx version="1.1" creator="ruckd"`,
		`<name>river loop</name>`,
		`<trkpt lat="40" lon="-3.7">`,
		`<ele>650</ele>`,
		`<time>2025-03-14T09:00:00Z</time>`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("gpx missing %q:\n%s", want, doc)
		}
	}

	// The third point has no altitude and must not carry an ele element
	// for it.
	if strings.Count(doc, "<ele>") != 2 {
		t.Fatalf("expected 2 ele elements:\n%s", doc)
	}
	if strings.Count(doc, "<trkpt") != 3 {
		t.Fatalf("expected 3 track points:\n%s", doc)
	}
}

func TestGPXDefaultName(t *testing.T) {
	sess := sampleSession()
	sess.Notes = ""
	out, err := GPX(sess)
	if err != nil {
		t.Fatalf("gpx: %v", err)
	}
	if !strings.Contains(string(out), "<name>Ruck 2025-03-14</name>") {
		t.Fatalf("expected dated default name:\n%s", out)
	}
}

func TestFIT(t *testing.T) {
	out, err := FIT(sampleSession())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(out) < 14 {
		t.Fatalf("fit output too short: %d bytes", len(out))
	}
	// FIT header carries the ".FIT" data type marker at offset 8.
	if string(out[8:12]) != ".FIT" {
		t.Fatalf("missing .FIT marker: % x", out[:14])
	}
}

func TestExporterWritesFiles(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir)

	if err := exp.Export(context.Background(), sampleSession()); err != nil {
		t.Fatalf("export: %v", err)
	}

	for _, name := range []string{"ruck-1.gpx", "ruck-1.fit"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
}

func TestExporterDisabled(t *testing.T) {
	exp := NewExporter("")
	if err := exp.Export(context.Background(), sampleSession()); err != nil {
		t.Fatalf("disabled exporter should be a no-op: %v", err)
	}
}
