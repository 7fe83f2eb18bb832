package types

// StreamKey 流事件标识
//
// 用于对延迟的 created 事件去重。
type StreamKey struct {
	// Type 流类型，例如 "ProcessesV1"
	Type string
	// ID 流 ID
	ID string
	// Context 关联的上下文 ID，空值表示对端未提供
	Context string
}

// Matches 是否匹配指定的 (type, id)
func (k StreamKey) Matches(streamType, id string) bool {
	return k.Type == streamType && k.ID == id
}
