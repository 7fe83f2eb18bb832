package stepper

import "sync"

// Properties 步骤之间传递数据的属性容器
type Properties struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewProperties 创建属性容器
func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// Set 设置属性
func (p *Properties) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// Get 获取属性
func (p *Properties) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Delete 删除属性
func (p *Properties) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

// Has 属性是否存在
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Value 按类型获取属性
//
// 属性不存在或类型不匹配时返回零值和 false。
func Value[T any](p *Properties, key string) (T, bool) {
	var zero T
	v, ok := p.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
