package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
)

func TestSeedNotes(t *testing.T) {
	notes := seedNotes(seedMeasures, seedBPM, 0)
	if len(notes) != 128 {
		t.Fatalf("got %d notes, want 128", len(notes))
	}
	last := notes[len(notes)-1]
	if last.MeasureIndex != 15 || last.CountInMeasure != 8 || last.AtSec != 63.5 {
		t.Errorf("last note = %+v", last.Cell)
	}
	if notes[8].AtSec != 4 || notes[8].CountInMeasure != 1 {
		t.Errorf("measure 2 count 1 = %+v", notes[8].Cell)
	}
}

func TestRenderGrid(t *testing.T) {
	out := renderGrid(nil)
	if !strings.Contains(out, "Measure") {
		t.Errorf("empty grid should still render headers:\n%s", out)
	}

	// offset grid starts mid-measure
	out = renderGrid(grid.Compute(8, 120, 0.25))
	for _, want := range []string{"0:00.250", "0:04.250", "0:07.750"} {
		if !strings.Contains(out, want) {
			t.Errorf("grid missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0:08.250") {
		t.Errorf("grid runs past the track:\n%s", out)
	}
}

func seededStore(t *testing.T) (*store.Store, *store.Performance) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	p, err := st.SaveWithTrack(ctx,
		store.PerformanceInput{Name: "Demo Routine"},
		store.TrackInput{FileName: "demo.mp3", DurationSec: seedDuration, BPM: seedBPM},
		seedNotes(seedMeasures, seedBPM, 0))
	if err != nil {
		t.Fatal(err)
	}
	return st, p
}

func TestSeedNotesTrimmedOnRebuild(t *testing.T) {
	st, p := seededStore(t)
	if len(p.CountNotes) != seedMeasures*grid.CountsPerMeasure {
		t.Fatalf("seeded %d notes, want %d", len(p.CountNotes), seedMeasures*grid.CountsPerMeasure)
	}

	rebuilt, err := st.RebuildGrid(context.Background(), p.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rebuilt.CountNotes) != 64 {
		t.Errorf("notes after rebuild = %d, want 64", len(rebuilt.CountNotes))
	}
	for _, n := range rebuilt.CountNotes {
		if n.AtSec > seedDuration {
			t.Errorf("note (%d,%d) at %v is past the track", n.MeasureIndex, n.CountInMeasure, n.AtSec)
		}
	}
}

func TestRenderFormats(t *testing.T) {
	_, p := seededStore(t)

	csv, err := render(p, "csv")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(csv, []byte("Measure,Count,Time (sec),Text\n1,1,0.000,\n")) {
		t.Errorf("csv starts %q", csv[:40])
	}
	if bytes.HasSuffix(csv, []byte("\n")) {
		t.Error("csv should not end with a newline")
	}

	js, err := render(p, "json")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(js, []byte(`"name": "Demo Routine"`)) {
		t.Errorf("json export missing name")
	}

	mid, err := render(p, "midi")
	if err != nil {
		t.Fatal(err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(mid))
	if err != nil {
		t.Fatalf("read midi: %v", err)
	}
	if len(s.Tracks) != 2 {
		t.Errorf("midi tracks = %d, want 2", len(s.Tracks))
	}

	if _, err := render(p, "pdf"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestRenderMIDINeedsTrack(t *testing.T) {
	if _, err := render(&store.Performance{ID: "x"}, "midi"); err == nil {
		t.Error("midi export without a track should fail")
	}
}
