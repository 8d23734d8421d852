package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/sqlengine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
engines:
  - name: mem
    kind: iteration
    options:
      pairwise_joins_only: true
  - name: warehouse
    kind: sql
db: data.db
leaf_cache_size: 16
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "data.db", cfg.DB)
	assert.Equal(t, 16, cfg.LeafCacheSize)
	require.Len(t, cfg.Engines, 2)

	mem, ok := cfg.Engine("mem")
	require.True(t, ok)
	assert.Equal(t, KindIteration, mem.Kind)
	require.NotNil(t, mem.Options)
	assert.Equal(t, relation.EngineOptions{PairwiseJoinsOnly: true}, *mem.Options)

	wh, ok := cfg.Engine("warehouse")
	require.True(t, ok)
	assert.Equal(t, KindSQL, wh.Kind)
	assert.Nil(t, wh.Options)

	_, ok = cfg.Engine("iteration")
	assert.False(t, ok, "declared engines replace the defaults")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "db: file.db\n")
	t.Setenv("RELIR_DB", "env.db")
	t.Setenv("RELIR_LEAF_CACHE_SIZE", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.DB)
	assert.Equal(t, 7, cfg.LeafCacheSize)
	assert.Equal(t, defaultEngines(), cfg.Engines)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown kind",
			content: "engines: [{name: x, kind: spark}]\n",
			want:    `unknown kind "spark"`,
		},
		{
			name:    "duplicate engine",
			content: "engines: [{name: x, kind: sql}, {name: x, kind: iteration}]\n",
			want:    `duplicate engine "x"`,
		},
		{
			name:    "missing name",
			content: "engines: [{kind: sql}]\n",
			want:    "missing name",
		},
		{
			name:    "cache size",
			content: "leaf_cache_size: 0\n",
			want:    "leaf_cache_size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestBuildEngines(t *testing.T) {
	opts := relation.EngineOptions{CanSort: true}
	cfg := &Config{
		Engines: []EngineConfig{
			{Name: "mem", Kind: KindIteration, Options: &opts},
			{Name: "db", Kind: KindSQL},
		},
		LeafCacheSize: 8,
	}

	set, err := cfg.BuildEngines(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, set.All(), 2)
	assert.Nil(t, set.Store())

	mem, ok := set.Lookup("mem")
	require.True(t, ok)
	assert.IsType(t, &iteration.Engine{}, mem)
	assert.Equal(t, KindIteration, set.Kind(mem))
	assert.Equal(t, opts, mem.Options())

	db, ok := set.Lookup("db")
	require.True(t, ok)
	assert.IsType(t, &sqlengine.Engine{}, db)
	assert.Equal(t, KindSQL, set.Kind(db))
	assert.Equal(t, sqlengine.Options(), db.Options())

	_, ok = set.Lookup("other")
	assert.False(t, ok)
}
