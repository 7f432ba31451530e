package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestWatcherSeedsSnapshot(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("retrieval.semantic_weight", 0.55)

	w := NewWatcher("", zap.NewNop())
	if got := w.Current().SemanticWeight; got != 0.55 {
		t.Errorf("seeded semantic_weight = %v, want 0.55", got)
	}
}

func TestWatcherReloadSwapsCalibration(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	write("retrieval:\n  semantic_weight: 0.7\n  keyword_weight: 0.3\n")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	w := NewWatcher(path, zap.NewNop())
	before := w.Current()
	if before.SemanticWeight != 0.7 {
		t.Fatalf("initial snapshot = %v", before.SemanticWeight)
	}

	write("retrieval:\n  semantic_weight: 0.5\n  keyword_weight: 0.5\n")
	w.reload()

	after := w.Current()
	if after.SemanticWeight != 0.5 || after.KeywordWeight != 0.5 {
		t.Errorf("reloaded snapshot = %v/%v, want 0.5/0.5", after.SemanticWeight, after.KeywordWeight)
	}
	if before.SemanticWeight != 0.7 {
		t.Error("earlier snapshot must stay untouched after a swap")
	}
}

func TestWatcherStartStopWithoutPath(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	w := NewWatcher("", zap.NewNop())
	if err := w.Start(); err != nil {
		t.Fatalf("start without a path must be a no-op: %v", err)
	}
	w.Stop()
}
