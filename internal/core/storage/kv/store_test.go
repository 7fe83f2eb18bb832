package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine/badger"
)

func newStore(t *testing.T, prefix string) (*Store, engine.Engine) {
	t.Helper()
	cfg := engine.DefaultConfig("")
	cfg.InMemory = true
	cfg.GCInterval = 0
	eng, err := badger.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return New(eng, []byte(prefix)), eng
}

type record struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

// TestStore_PrefixIsolation 测试前缀隔离
func TestStore_PrefixIsolation(t *testing.T) {
	s, eng := newStore(t, "l/p/")
	other := New(eng, []byte("x/"))

	require.NoError(t, s.Put("a", record{Name: "mine"}))
	require.NoError(t, other.Put("a", record{Name: "other"}))

	var r record
	require.NoError(t, s.Get("a", &r))
	assert.Equal(t, "mine", r.Name)

	ids, err := s.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	ok, err := eng.Has([]byte("l/p/a"))
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestStore_Records 测试记录读写、遍历与清空
func TestStore_Records(t *testing.T) {
	s, _ := newStore(t, "l/p/")

	require.NoError(t, s.Put("n1", record{Name: "one", Port: 1534}))
	require.NoError(t, s.Put("n2", record{Name: "two", Port: 1535}))

	var r record
	require.NoError(t, s.Get("n1", &r))
	assert.Equal(t, record{Name: "one", Port: 1534}, r)

	seen := map[string]bool{}
	require.NoError(t, s.ForEach(func(id string, _ []byte) bool {
		seen[id] = true
		return true
	}))
	assert.Equal(t, map[string]bool{"n1": true, "n2": true}, seen)

	require.NoError(t, s.Delete("n2"))
	has, err := s.Has("n2")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Clear())
	assert.ErrorIs(t, s.Get("n1", &r), engine.ErrNotFound)
}

// TestStore_DecodeError 测试损坏记录的解码错误
func TestStore_DecodeError(t *testing.T) {
	s, eng := newStore(t, "l/p/")
	require.NoError(t, eng.Put([]byte("l/p/bad"), []byte("{")))

	var r record
	err := s.Get("bad", &r)
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrNotFound)
}
