package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

var (
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("event type must be a pointer")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("emitter closed")
)

const (
	defaultBuffer = 16

	// dropWarnEvery 每丢弃多少个事件告警一次
	dropWarnEvery = 100
)

var _ pkgif.EventBus = (*Bus)(nil)

// Bus 事件总线
type Bus struct {
	mu     sync.Mutex
	topics map[reflect.Type]*topic
}

// topic 单个事件类型
//
// subs 只在 topic.mu 下修改；publish 持锁发送，Close 先摘除再关闭通道。
type topic struct {
	mu         sync.Mutex
	typ        reflect.Type
	subs       []*Subscription
	publishers int
	replayLast bool
	last       interface{}
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]*topic)}
}

func eventTypeOf(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// lockTopic 返回已加锁的 topic，不存在时创建
func (b *Bus) lockTopic(typ reflect.Type) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[typ]
	if !ok {
		t = &topic{typ: typ}
		b.topics[typ] = t
	}
	t.mu.Lock()
	return t
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscribeOption) (pkgif.Subscription, error) {
	typ, err := eventTypeOf(eventType)
	if err != nil {
		return nil, err
	}

	cfg := pkgif.SubscribeConfig{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Name == "" {
		cfg.Name = typ.String()
	}

	sub := &Subscription{
		bus:  b,
		typ:  typ,
		name: cfg.Name,
		out:  make(chan interface{}, cfg.Buffer),
	}

	t := b.lockTopic(typ)
	t.subs = append(t.subs, sub)
	if t.replayLast && t.last != nil {
		sub.deliver(t.last)
	}
	t.mu.Unlock()
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOption) (pkgif.Emitter, error) {
	typ, err := eventTypeOf(eventType)
	if err != nil {
		return nil, err
	}

	var cfg pkgif.EmitterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t := b.lockTopic(typ)
	t.publishers++
	t.replayLast = t.replayLast || cfg.ReplayLast
	t.mu.Unlock()
	return &Emitter{bus: b, topic: t}, nil
}

// release 在 topic 既无订阅者也无发布端时回收
func (b *Bus) release(t *topic, mutate func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t.mu.Lock()
	mutate()
	idle := len(t.subs) == 0 && t.publishers == 0 && !t.replayLast
	t.mu.Unlock()

	if idle && b.topics[t.typ] == t {
		delete(b.topics, t.typ)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	t, ok := b.topics[sub.typ]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.release(t, func() {
		for i, s := range t.subs {
			if s == sub {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return
			}
		}
	})
}

func (t *topic) publish(event interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.replayLast {
		t.last = event
	}
	for _, sub := range t.subs {
		sub.deliver(event)
	}
}

// ============================================================================
// Subscription / Emitter
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	name      string
	out       chan interface{}
	dropped   atomic.Int64
	closeOnce sync.Once
}

// deliver 非阻塞投递，调用方持有 topic 锁
func (s *Subscription) deliver(event interface{}) {
	select {
	case s.out <- event:
	default:
		if n := s.dropped.Add(1); n%dropWarnEvery == 1 {
			logger.Warn("订阅者消费过慢，事件被丢弃", "subscriber", s.name, "type", s.typ.String(), "dropped", n)
		}
	}
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Dropped 返回因缓冲区满被丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close 取消订阅，可以多次调用
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.unsubscribe(s)
		close(s.out)
	})
	return nil
}

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	topic     *topic
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	e.topic.publish(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.bus.release(e.topic, func() { e.topic.publishers-- })
	})
	return nil
}
