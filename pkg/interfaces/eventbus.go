package interfaces

// EventBus 进程内事件总线
//
// 事件类型以指针传入（如 new(types.EvtChannelClosed)），按元素类型路由。
// channelmgr 发布通道打开/关闭事件，locator 发布节点增删与连接状态变化，
// 并订阅通道关闭事件以驱动状态机。
type EventBus interface {
	Subscribe(eventType interface{}, opts ...SubscribeOption) (Subscription, error)
	Emitter(eventType interface{}, opts ...EmitterOption) (Emitter, error)
}

// Subscription 一个订阅者
//
// Out 在 Close 后关闭；订阅缓冲满时事件被丢弃，不阻塞发布方。
type Subscription interface {
	Out() <-chan interface{}
	Close() error
}

// Emitter 一个事件类型的发布端
type Emitter interface {
	Emit(event interface{}) error
	Close() error
}

// SubscribeConfig 订阅参数
type SubscribeConfig struct {
	// Buffer 订阅通道容量
	Buffer int
	// Name 订阅者名称，出现在慢消费者告警中
	Name string
}

// EmitterConfig 发布端参数
type EmitterConfig struct {
	// ReplayLast 新订阅者立即收到最后一次发布的事件
	ReplayLast bool
}

// SubscribeOption 订阅选项
type SubscribeOption func(*SubscribeConfig)

// EmitterOption 发布端选项
type EmitterOption func(*EmitterConfig)

// WithBuffer 设置订阅通道容量
func WithBuffer(size int) SubscribeOption {
	return func(c *SubscribeConfig) { c.Buffer = size }
}

// WithSubscriberName 设置订阅者名称
func WithSubscriberName(name string) SubscribeOption {
	return func(c *SubscribeConfig) { c.Name = name }
}

// ReplayLast 新订阅者补收最后一个事件
func ReplayLast() EmitterOption {
	return func(c *EmitterConfig) { c.ReplayLast = true }
}
