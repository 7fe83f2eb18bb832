// Package kv 在存储引擎上提供按前缀隔离的 JSON 记录集合
//
//	peers := kv.New(eng, []byte("l/p/"))
//	peers.Put("agent-1", peer)  // 实际键: l/p/agent-1
package kv

import (
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
)

// maxConflictRetries Clear 遇到事务冲突时的重试次数
const maxConflictRetries = 3

// Store 一个前缀下的记录集合，键为记录 ID
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建记录集合
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{engine: eng, prefix: append([]byte(nil), prefix...)}
}

func (s *Store) key(id string) []byte {
	out := make([]byte, 0, len(s.prefix)+len(id))
	out = append(out, s.prefix...)
	return append(out, id...)
}

// Put 以 JSON 写入记录
func (s *Store) Put(id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return s.engine.Put(s.key(id), data)
}

// Get 读取并解码记录，不存在时返回 engine.ErrNotFound
func (s *Store) Get(id string, v interface{}) error {
	data, err := s.engine.Get(s.key(id))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	return nil
}

// Delete 删除记录
func (s *Store) Delete(id string) error {
	return s.engine.Delete(s.key(id))
}

// Has 记录是否存在
func (s *Store) Has(id string) (bool, error) {
	return s.engine.Has(s.key(id))
}

// ForEach 遍历所有记录，raw 仅在回调期间有效
func (s *Store) ForEach(fn func(id string, raw []byte) bool) error {
	return s.engine.Scan(s.prefix, func(k, v []byte) bool {
		return fn(string(k[len(s.prefix):]), v)
	})
}

// IDs 返回所有记录 ID
func (s *Store) IDs() ([]string, error) {
	var ids []string
	err := s.ForEach(func(id string, _ []byte) bool {
		ids = append(ids, id)
		return true
	})
	return ids, err
}

// Clear 在一个事务中删除全部记录
func (s *Store) Clear() error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if err = s.clearOnce(); !engine.Retryable(err) {
			return err
		}
	}
	return err
}

func (s *Store) clearOnce() error {
	ids, err := s.IDs()
	if err != nil {
		return err
	}
	return s.engine.Update(func(w engine.Writer) error {
		for _, id := range ids {
			if err := w.Delete(s.key(id)); err != nil {
				return err
			}
		}
		return nil
	})
}
