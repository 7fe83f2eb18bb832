package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
)

// TestModule_Lifecycle 测试 Fx 模块启动与关闭
func TestModule_Lifecycle(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.DataDir = t.TempDir()

	var eng engine.Engine
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&eng),
	)
	app.RequireStart()

	require.NotNil(t, eng)
	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	v, err := eng.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	app.RequireStop()

	_, err = eng.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.DirExists(t, filepath.Join(cfg.Storage.DataDir, "tcflink.db"))
}

// TestNewMemory 测试内存引擎与记录集合
func TestNewMemory(t *testing.T) {
	eng, err := NewMemory()
	require.NoError(t, err)
	defer eng.Close()

	store := NewKVStore(eng, []byte("l/p/"))
	require.NoError(t, store.Put("a", map[string]int{"port": 1534}))

	raw, err := eng.Get([]byte("l/p/a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":1534}`, string(raw))
}

// TestEngineConfig 测试存储配置映射
func TestEngineConfig(t *testing.T) {
	sc := config.DefaultStorageConfig()
	sc.DataDir = "/var/lib/tcflink"
	sc.SyncWrites = false

	cfg := EngineConfig(sc)
	assert.Equal(t, filepath.Join("/var/lib/tcflink", "tcflink.db"), cfg.Path)
	assert.False(t, cfg.SyncWrites)
	assert.Equal(t, sc.GCInterval.Duration(), cfg.GCInterval)

	mem := EngineConfig(config.StorageConfig{InMemory: true, GCInterval: sc.GCInterval})
	assert.True(t, mem.InMemory)
	assert.Zero(t, mem.GCInterval)
	assert.NoError(t, mem.Validate())
}
