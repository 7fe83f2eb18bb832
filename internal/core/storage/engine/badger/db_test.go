package badger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := engine.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// TestEngine_CRUD 测试基本读写
func TestEngine_CRUD(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Get([]byte("missing"))
	assert.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, e.Put([]byte("a"), []byte("1")))
	v, err := e.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	ok, err := e.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.Delete([]byte("a")))
	ok, err = e.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, e.Put(nil, []byte("x")), engine.ErrEmptyKey)
}

// TestEngine_Scan 测试前缀遍历
func TestEngine_Scan(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Put([]byte("p/1"), []byte("one")))
	require.NoError(t, e.Put([]byte("p/2"), []byte("two")))
	require.NoError(t, e.Put([]byte("q/1"), []byte("other")))

	var keys []string
	require.NoError(t, e.Scan([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}))
	assert.Equal(t, []string{"p/1", "p/2"}, keys)

	count := 0
	require.NoError(t, e.Scan(nil, func(_, _ []byte) bool {
		count++
		return false
	}))
	assert.Equal(t, 1, count)
}

// TestEngine_UpdateAtomic 测试事务失败时丢弃写入
func TestEngine_UpdateAtomic(t *testing.T) {
	e := newTestEngine(t)

	boom := errors.New("boom")
	err := e.Update(func(w engine.Writer) error {
		require.NoError(t, w.Put([]byte("x"), []byte("1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := e.Has([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestEngine_InMemory 测试内存模式
func TestEngine_InMemory(t *testing.T) {
	cfg := engine.DefaultConfig("")
	cfg.InMemory = true
	e, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Put([]byte("k"), []byte("v")))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)
}
