package cfg_test

import (
	"testing"

	"github.com/openmedrec/medrec-go/internal/cfg"
)

type sampleConfig struct {
	Name  string `mapstructure:"name"`
	Count int    `mapstructure:"count"`
}

func (c *sampleConfig) ApplyDefaults() {
	if c.Count == 0 {
		c.Count = 7
	}
}

func TestDecode(t *testing.T) {
	var c sampleConfig
	err := cfg.Decode(map[string]any{"name": "alpha", "count": 3}, &c)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Name != "alpha" || c.Count != 3 {
		t.Errorf("unexpected decode result: %+v", c)
	}
}

func TestDecode_AppliesDefaults(t *testing.T) {
	var c sampleConfig
	err := cfg.Decode(map[string]any{"name": "alpha"}, &c)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Count != 7 {
		t.Errorf("expected default count 7, got %d", c.Count)
	}
}

func TestDecodeWithUnused(t *testing.T) {
	var c sampleConfig
	unused, err := cfg.DecodeWithUnused(map[string]any{"name": "alpha", "zeta": 1, "beta": 2}, &c)
	if err != nil {
		t.Fatalf("DecodeWithUnused failed: %v", err)
	}
	if len(unused) != 2 || unused[0] != "beta" || unused[1] != "zeta" {
		t.Errorf("expected sorted unused keys [beta zeta], got %v", unused)
	}
}

func TestMustDecodeStrict(t *testing.T) {
	var c sampleConfig
	if err := cfg.MustDecodeStrict(map[string]any{"name": "alpha"}, &c); err != nil {
		t.Errorf("clean input should decode strictly: %v", err)
	}
	if err := cfg.MustDecodeStrict(map[string]any{"name": "alpha", "typo": true}, &c); err == nil {
		t.Error("expected error for unused key")
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	var c sampleConfig
	if err := cfg.Decode(map[string]any{"count": "many"}, &c); err == nil {
		t.Error("expected error for type mismatch")
	}
}
