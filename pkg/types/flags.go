package types

// OpenFlags 通道打开标志
//
// nil 与零值等价，表示请求共享（引用计数）通道。
type OpenFlags struct {
	// ForceNew 强制打开新的私有通道
	ForceNew bool

	// NoValueAdd 不启动 value-add 代理进程，直连目标
	NoValueAdd bool

	// NoPathMap 不下发路径映射
	NoPathMap bool
}

// Shared 是否走共享通道路径
//
// NoValueAdd 与 NoPathMap 都会得到与共享通道配置不同的通道，
// 因此与 ForceNew 一样强制使用私有通道。
func (f *OpenFlags) Shared() bool {
	if f == nil {
		return true
	}
	return !f.ForceNew && !f.NoValueAdd && !f.NoPathMap
}

// SkipValueAdd 是否跳过 value-add
func (f *OpenFlags) SkipValueAdd() bool {
	return f != nil && f.NoValueAdd
}

// SkipPathMap 是否跳过路径映射
func (f *OpenFlags) SkipPathMap() bool {
	return f != nil && f.NoPathMap
}
