// Package engine 定义存储引擎接口
//
// 所有实现必须是并发安全的。Update 中的写入在提交前对其他操作不可见。
package engine

// Engine 键值存储引擎
type Engine interface {
	// Get 获取键值，键不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值
	Put(key, value []byte) error

	// Delete 删除键，键不存在时不报错
	Delete(key []byte) error

	// Has 键是否存在
	Has(key []byte) (bool, error)

	// Scan 按前缀遍历，fn 返回 false 时停止
	//
	// 传给 fn 的切片仅在回调期间有效。
	Scan(prefix []byte, fn func(key, value []byte) bool) error

	// Update 在一个读写事务中执行 fn，fn 返回错误时丢弃全部写入
	Update(fn func(w Writer) error) error

	// Start 启动后台任务
	Start() error

	// Close 关闭引擎
	Close() error
}

// Writer 事务写入器
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}
