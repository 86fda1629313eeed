package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

func createValidConfig(name string, pairs int) *engine.DeckConfig {
	config := engine.DefaultDeckConfig()
	config.Name = name
	config.Pairs = pairs
	return config
}

func writeJSONConfig(t *testing.T, dir, file string, config *engine.DeckConfig) {
	t.Helper()
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestNewManager_MissingDirectory(t *testing.T) {
	if _, err := NewManager(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing config directory")
	}
}

func TestManager_RepositoryConfigs(t *testing.T) {
	m, err := NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if m.DefaultName() != "classic" {
		t.Errorf("Expected classic default, got %s", m.DefaultName())
	}
	if m.GetDefault().Pairs != engine.DefaultPairs {
		t.Errorf("Expected %d pairs in classic deck, got %d", engine.DefaultPairs, m.GetDefault().Pairs)
	}

	configs, err := m.ListConfigs()
	if err != nil {
		t.Fatalf("ListConfigs failed: %v", err)
	}
	ids := make(map[string]bool)
	for _, c := range configs {
		ids[c.ConfigID] = true
	}
	for _, want := range []string{"classic", "easy", "forgetful"} {
		if !ids[want] {
			t.Errorf("Expected deck %s to be listed, got %v", want, ids)
		}
	}

	easy, err := m.LoadConfig("easy")
	if err != nil {
		t.Fatalf("Failed to load YAML deck: %v", err)
	}
	if easy.Pairs != 8 || easy.OpponentMemory != 4 {
		t.Errorf("Unexpected easy deck: %+v", easy)
	}
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeJSONConfig(t, dir, "small.json", createValidConfig("Small", 3))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	config, err := m.LoadConfig("small")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.Name != "Small" {
		t.Errorf("Expected Small, got %s", config.Name)
	}

	again, err := m.LoadConfig("small.json")
	if err != nil {
		t.Fatalf("Failed to load config by file name: %v", err)
	}
	if again != config {
		t.Error("Expected cached config to be returned")
	}

	_, err = m.LoadConfig("missing")
	if !errors.Is(err, ErrConfigNotFound) || !errors.Is(err, service.ErrDeckNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}

	_, err = m.LoadConfig("../small")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected path traversal to be refused, got %v", err)
	}
}

func TestManager_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeJSONConfig(t, dir, "broken.json", createValidConfig("Broken", 0))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := m.LoadConfig("broken"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	configs, err := m.ListConfigs()
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 0 {
		t.Errorf("Expected invalid configs to be skipped, got %d", len(configs))
	}
}

func TestManager_DefaultFallbacks(t *testing.T) {
	t.Run("empty directory uses built-in deck", func(t *testing.T) {
		m, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if m.DefaultName() != DefaultConfigName {
			t.Errorf("Expected %s, got %s", DefaultConfigName, m.DefaultName())
		}
		if m.GetDefault().Pairs != engine.DefaultPairs {
			t.Error("Expected built-in classic deck")
		}
		if _, err := m.LoadConfig(DefaultConfigName); err != nil {
			t.Errorf("Expected built-in deck to be loadable, got %v", err)
		}
	})

	t.Run("first deck on disk when classic is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeJSONConfig(t, dir, "beta.json", createValidConfig("Beta", 4))
		writeJSONConfig(t, dir, "alpha.json", createValidConfig("Alpha", 2))

		m, err := NewManager(dir)
		if err != nil {
			t.Fatal(err)
		}
		if m.DefaultName() != "alpha" {
			t.Errorf("Expected alpha, got %s", m.DefaultName())
		}
	})
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeJSONConfig(t, dir, "small.json", createValidConfig("Small", 3))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault("small"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if m.DefaultName() != "small" || m.GetDefault().Name != "Small" {
		t.Error("Expected small to be the default")
	}
	if err := m.SetDefault("missing"); err == nil {
		t.Error("Expected error for missing default")
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SaveConfig("saved", createValidConfig("Saved", 5)); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if err := m.SaveConfig("other.yaml", createValidConfig("Other", 6)); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
		t.Errorf("Expected saved.json on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.yaml")); err != nil {
		t.Errorf("Expected other.yaml on disk: %v", err)
	}

	// a fresh manager reads both back from disk
	fresh, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	other, err := fresh.LoadConfig("other")
	if err != nil {
		t.Fatalf("Failed to reload YAML deck: %v", err)
	}
	if other.Pairs != 6 {
		t.Errorf("Expected 6 pairs, got %d", other.Pairs)
	}

	if err := m.SaveConfig("bad", createValidConfig("Bad", 0)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if err := m.SaveConfig("../escape", createValidConfig("Escape", 2)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for bad name, got %v", err)
	}
}

func TestManager_RefreshCache(t *testing.T) {
	dir := t.TempDir()
	writeJSONConfig(t, dir, "classic.json", createValidConfig("Classic A", 3))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeJSONConfig(t, dir, "classic.json", createValidConfig("Classic B", 4))

	if m.GetDefault().Name != "Classic A" {
		t.Error("Expected cached default before refresh")
	}
	m.RefreshCache()
	if m.GetDefault().Name != "Classic B" {
		t.Errorf("Expected reloaded default, got %s", m.GetDefault().Name)
	}
}

func TestManager_ConcurrentLoads(t *testing.T) {
	m, err := NewManager("../../configs")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.LoadConfig("forgetful"); err != nil {
				t.Errorf("LoadConfig failed: %v", err)
			}
			if _, err := m.ListConfigs(); err != nil {
				t.Errorf("ListConfigs failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
