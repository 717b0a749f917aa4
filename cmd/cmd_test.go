package cmd

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cardscan/internal/extraction"
	"cardscan/internal/llm"
	"cardscan/internal/pipeline"
	"cardscan/pkg/models"
)

func TestFindImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "sub/c.webp"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := findImageFiles(dir)
	if err != nil {
		t.Fatalf("findImageFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "sub", "c.webp"),
	}
	if len(got) != len(want) {
		t.Fatalf("findImageFiles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetNumWorkers(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"", defaultBatchWorkers},
		{"8", 8},
		{"0", defaultBatchWorkers},
		{"many", defaultBatchWorkers},
	}

	for _, tt := range tests {
		t.Setenv("BATCH_WORKERS", tt.env)
		if got := getNumWorkers(); got != tt.want {
			t.Errorf("BATCH_WORKERS=%q: getNumWorkers() = %d, want %d", tt.env, got, tt.want)
		}
	}
}

func TestReadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.json")
	body := `{"surname":"Doe","firstName":"John","gender":"M","dateOfBirth":"1990-01-01","idNumber":"ID123"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readRecord(path)
	if err != nil {
		t.Fatalf("readRecord() error = %v", err)
	}
	want := models.Record{Surname: "Doe", FirstName: "John", Gender: "M", DateOfBirth: "1990-01-01", IDNumber: "ID123"}
	if got != want {
		t.Errorf("readRecord() = %+v, want %+v", got, want)
	}

	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRecord(path); err == nil {
		t.Error("readRecord() accepted malformed JSON")
	}
	if _, err := readRecord(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("readRecord() accepted a missing file")
	}
}

func TestSeedFromFlags(t *testing.T) {
	if err := scanCmd.Flags().Set("id-number", "X1"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = scanCmd.Flags().Set("id-number", "") })

	seed := seedFromFlags(scanCmd)
	if seed.IDNumber != "X1" || seed.Surname != "" {
		t.Errorf("seedFromFlags() = %+v", seed)
	}
}

func TestValidationPipelineTransitions(t *testing.T) {
	model := llm.NewFake(`{"validationResult":"All fields are consistent."}`)
	var states []pipeline.State
	p := newValidationPipeline(model, func(_ string, from, to pipeline.State) {
		if len(states) == 0 {
			states = append(states, from)
		}
		states = append(states, to)
	})

	outcome := p.ValidateRecord(context.Background(), models.Record{Surname: "Doe"})
	if outcome.Type != extraction.OutcomeSuccess {
		t.Errorf("Type = %q, want success", outcome.Type)
	}
	want := []pipeline.State{pipeline.StateReady, pipeline.StateValidationRunning, pipeline.StateValidationDone}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}
