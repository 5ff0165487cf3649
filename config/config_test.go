package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Population.Initial != 10 {
		t.Errorf("population.initial = %d, want 10", cfg.Population.Initial)
	}
	if cfg.World.FoodCount != 20 {
		t.Errorf("world.food_count = %d, want 20", cfg.World.FoodCount)
	}
	if cfg.Feeding.DetectionRadius != 1.5 {
		t.Errorf("feeding.detection_radius = %v, want 1.5", cfg.Feeding.DetectionRadius)
	}
	if !cfg.Predation.Enabled {
		t.Error("predation should be enabled by default")
	}
	if cfg.Derived.LastEatGrace != 2500*time.Millisecond {
		t.Errorf("derived last_eat_grace = %v, want 2.5s", cfg.Derived.LastEatGrace)
	}
	if cfg.Derived.PollInterval != time.Second {
		t.Errorf("derived poll_interval = %v, want 1s", cfg.Derived.PollInterval)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	overlay := "world:\n  food_count: 5\ntiming:\n  finish_grace: 0.25\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.World.FoodCount != 5 {
		t.Errorf("food_count = %d, want 5", cfg.World.FoodCount)
	}
	// Fields absent from the overlay keep their defaults
	if cfg.World.Width != 30 {
		t.Errorf("width = %v, want default 30", cfg.World.Width)
	}
	if cfg.Derived.FinishGrace != 250*time.Millisecond {
		t.Errorf("finish_grace = %v, want 250ms", cfg.Derived.FinishGrace)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	bad := "population:\n  initial: 0\ntraits:\n  size_min: 2.0\n  size_max: 1.0\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"population.initial", "traits.size"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.World.FoodCount = 42

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if loaded.World.FoodCount != 42 {
		t.Errorf("food_count = %d, want 42", loaded.World.FoodCount)
	}
}
