package streamproxy

import (
	"context"
	"fmt"
	"time"

	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// Registry 按通道管理流代理
//
// 所有方法必须在派发协程上调用，done 回调也在派发协程上执行。
type Registry struct {
	inv         Invoker
	callTimeout time.Duration
	entries     map[types.ChannelID]map[string]*entry
}

// entry 单个代理及其订阅状态
type entry struct {
	proxy *Proxy
	svc   pkgif.StreamsService

	// subscribing 为 true 时服务级订阅尚未完成，新请求排队
	subscribing bool
	subWaiters  []waiter
	unsubQueue  []waiter
}

type waiter struct {
	listener pkgif.StreamListener
	done     func(error)
}

// NewRegistry 创建注册表
func NewRegistry(inv Invoker, callTimeout time.Duration) *Registry {
	return &Registry{
		inv:         inv,
		callTimeout: callTimeout,
		entries:     make(map[types.ChannelID]map[string]*entry),
	}
}

// Subscribe 为监听器订阅通道上的流类型
//
// 第一个订阅者触发服务级 Subscribe，之后到达的订阅者排队等待同一结果。
func (r *Registry) Subscribe(ch pkgif.Channel, streamType string, l pkgif.StreamListener, done func(error)) {
	done = orNop(done)
	if ch.State() != types.ChannelOpen {
		done(types.ErrChannelClosed)
		return
	}

	chID := ch.ID()
	if e := r.lookup(chID, streamType); e != nil {
		if e.subscribing {
			e.proxy.AddListener(l)
			e.subWaiters = append(e.subWaiters, waiter{l, done})
			return
		}
		e.proxy.AddListener(l)
		done(nil)
		return
	}

	svc, err := streamsService(ch)
	if err != nil {
		done(err)
		return
	}

	// 监听器先于服务级订阅加入代理，订阅应答之前到达的事件也能送达
	e := &entry{
		proxy:       NewProxy(r.inv, svc, streamType, r.callTimeout),
		svc:         svc,
		subscribing: true,
		subWaiters:  []waiter{{l, done}},
	}
	e.proxy.AddListener(l)
	byType, ok := r.entries[chID]
	if !ok {
		byType = make(map[string]*entry)
		r.entries[chID] = byType
	}
	byType[streamType] = e

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		err := svc.Subscribe(ctx, streamType, e.proxy)
		r.post(func() { r.subscribed(chID, streamType, e, err) })
	}()
}

// subscribed 服务级订阅完成
func (r *Registry) subscribed(chID types.ChannelID, streamType string, e *entry, err error) {
	waiters := e.subWaiters
	unsubs := e.unsubQueue
	e.subWaiters, e.unsubQueue = nil, nil
	e.subscribing = false

	// 期间通道已关闭
	if r.lookup(chID, streamType) != e {
		for _, w := range waiters {
			w.done(types.ErrChannelClosed)
		}
		for _, w := range unsubs {
			w.done(nil)
		}
		return
	}

	if err != nil {
		logger.Warn("订阅流服务失败", "channel", chID, "type", streamType, "error", err)
		r.remove(chID, streamType)
		e.proxy.detach()
		for _, w := range waiters {
			w.done(err)
		}
		for _, w := range unsubs {
			w.done(nil)
		}
		return
	}

	for _, w := range waiters {
		w.done(nil)
	}
	for _, w := range unsubs {
		r.unsubscribe(chID, streamType, e, w)
	}
}

// Unsubscribe 取消监听器的订阅，最后一个监听器离开时取消服务级订阅
func (r *Registry) Unsubscribe(ch pkgif.Channel, streamType string, l pkgif.StreamListener, done func(error)) {
	done = orNop(done)
	chID := ch.ID()
	e := r.lookup(chID, streamType)
	if e == nil {
		done(nil)
		return
	}
	if e.subscribing {
		e.unsubQueue = append(e.unsubQueue, waiter{l, done})
		return
	}
	r.unsubscribe(chID, streamType, e, waiter{l, done})
}

func (r *Registry) unsubscribe(chID types.ChannelID, streamType string, e *entry, w waiter) {
	e.proxy.RemoveListener(w.listener)
	if e.proxy.Len() > 0 {
		w.done(nil)
		return
	}

	r.remove(chID, streamType)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		err := e.svc.Unsubscribe(ctx, streamType, e.proxy)
		r.post(func() { w.done(err) })
	}()
}

// ProcessDelayedCreatedEvents 重放通道上某个流类型的缓存事件
func (r *Registry) ProcessDelayedCreatedEvents(chID types.ChannelID, streamType string) error {
	e := r.lookup(chID, streamType)
	if e == nil {
		return fmt.Errorf("%w: %s on %s", ErrNotSubscribed, streamType, chID)
	}
	e.proxy.ProcessDelayedCreatedEvents()
	return nil
}

// Proxy 返回代理，不存在时返回 nil
func (r *Registry) Proxy(chID types.ChannelID, streamType string) *Proxy {
	if e := r.lookup(chID, streamType); e != nil {
		return e.proxy
	}
	return nil
}

// ChannelClosed 通道关闭：释放所有代理，排队中的订阅收到 ErrChannelClosed
func (r *Registry) ChannelClosed(chID types.ChannelID) {
	byType, ok := r.entries[chID]
	if !ok {
		return
	}
	delete(r.entries, chID)

	for _, e := range byType {
		e.proxy.Dispose()
		// subscribing 的 entry 由 subscribed 通知等待者
	}
}

// Len 返回代理数量
func (r *Registry) Len() int {
	n := 0
	for _, byType := range r.entries {
		n += len(byType)
	}
	return n
}

func (r *Registry) lookup(chID types.ChannelID, streamType string) *entry {
	if byType, ok := r.entries[chID]; ok {
		return byType[streamType]
	}
	return nil
}

func (r *Registry) remove(chID types.ChannelID, streamType string) {
	byType, ok := r.entries[chID]
	if !ok {
		return
	}
	delete(byType, streamType)
	if len(byType) == 0 {
		delete(r.entries, chID)
	}
}

func (r *Registry) post(fn func()) {
	if err := r.inv.InvokeLater(fn); err != nil {
		logger.Debug("回调投递失败", "error", err)
	}
}

// streamsService 查找通道的远端流服务
func streamsService(ch pkgif.Channel) (pkgif.StreamsService, error) {
	svc, ok := ch.RemoteService(pkgif.StreamsServiceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrServiceUnavailable, pkgif.StreamsServiceName)
	}
	ss, ok := svc.(pkgif.StreamsService)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrServiceUnavailable, pkgif.StreamsServiceName)
	}
	return ss, nil
}

func orNop(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
