package streamproxy

import (
	"context"
	"time"

	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/streamproxy")

// Invoker 把任务投递到派发协程
type Invoker interface {
	InvokeLater(fn func()) error
}

// Proxy 单个 (通道, 流类型) 的流监听器代理
type Proxy struct {
	inv         Invoker
	svc         pkgif.StreamsService
	streamType  string
	callTimeout time.Duration

	listeners []pkgif.StreamListener
	delayed   []types.StreamKey
	disposed  bool
}

var _ pkgif.StreamsServiceListener = (*Proxy)(nil)

// NewProxy 创建代理
func NewProxy(inv Invoker, svc pkgif.StreamsService, streamType string, callTimeout time.Duration) *Proxy {
	return &Proxy{
		inv:         inv,
		svc:         svc,
		streamType:  streamType,
		callTimeout: callTimeout,
	}
}

// StreamType 返回流类型
func (p *Proxy) StreamType() string {
	return p.streamType
}

// ============================================================================
//                              远端回调（任意协程）
// ============================================================================

// Created 远端通知流已创建
func (p *Proxy) Created(streamType, streamID, contextID string) {
	p.post(func() { p.HandleCreated(streamType, streamID, contextID) })
}

// Disposed 远端通知流已销毁
func (p *Proxy) Disposed(streamType, streamID string) {
	p.post(func() { p.HandleDisposed(streamType, streamID) })
}

func (p *Proxy) post(fn func()) {
	if err := p.inv.InvokeLater(fn); err != nil {
		logger.Debug("流事件投递失败", "type", p.streamType, "error", err)
	}
}

// ============================================================================
//                              派发协程
// ============================================================================

// AddListener 添加监听器，重复添加返回 false
func (p *Proxy) AddListener(l pkgif.StreamListener) bool {
	for _, existing := range p.listeners {
		if existing == l {
			return false
		}
	}
	p.listeners = append(p.listeners, l)
	return true
}

// RemoveListener 移除监听器，不存在时返回 false
func (p *Proxy) RemoveListener(l pkgif.StreamListener) bool {
	for i, existing := range p.listeners {
		if existing == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len 返回监听器数量
func (p *Proxy) Len() int {
	return len(p.listeners)
}

// Delayed 返回缓存的 created 事件副本
func (p *Proxy) Delayed() []types.StreamKey {
	return append([]types.StreamKey(nil), p.delayed...)
}

// HandleCreated 处理 created 事件
func (p *Proxy) HandleCreated(streamType, streamID, contextID string) {
	if p.disposed {
		return
	}
	if streamType != p.streamType {
		logger.Debug("忽略其他类型的流事件", "want", p.streamType, "got", streamType)
		return
	}

	// 不带上下文的旧版本远端不受支持
	if contextID == "" {
		p.disconnect(streamID)
		return
	}

	key := types.StreamKey{Type: streamType, ID: streamID, Context: contextID}
	if !p.allHaveContext() {
		p.delay(key)
		return
	}
	p.deliver(key)
}

// HandleDisposed 处理 disposed 事件
func (p *Proxy) HandleDisposed(streamType, streamID string) {
	if p.disposed {
		return
	}

	kept := p.delayed[:0]
	for _, k := range p.delayed {
		if !k.Matches(streamType, streamID) {
			kept = append(kept, k)
		}
	}
	p.delayed = kept

	for _, l := range p.listeners {
		l.Disposed(streamType, streamID)
	}
}

// ProcessDelayedCreatedEvents 按原始顺序重放缓存的 created 事件
//
// 每个事件只重放一次；重放时仍有监听器缺少上下文的事件会重新进入缓存。
func (p *Proxy) ProcessDelayedCreatedEvents() {
	if p.disposed || len(p.delayed) == 0 {
		return
	}

	pending := p.delayed
	p.delayed = nil
	for _, k := range pending {
		p.HandleCreated(k.Type, k.ID, k.Context)
	}
}

// Dispose 释放代理：实现了 Disposable 的监听器会被释放，缓存被清空
func (p *Proxy) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true

	for _, l := range p.listeners {
		if d, ok := l.(pkgif.Disposable); ok {
			d.Dispose()
		}
	}
	p.listeners = nil
	p.delayed = nil
}

// detach 停用代理但不释放监听器，用于服务级订阅失败
func (p *Proxy) detach() {
	p.disposed = true
	p.listeners = nil
	p.delayed = nil
}

// IsDisposed 是否已释放
func (p *Proxy) IsDisposed() bool {
	return p.disposed
}

func (p *Proxy) allHaveContext() bool {
	for _, l := range p.listeners {
		if !l.HasContext() {
			return false
		}
	}
	return true
}

// delay 缓存事件，相同 (type, id, context) 只保留第一个
func (p *Proxy) delay(key types.StreamKey) {
	for _, k := range p.delayed {
		if k == key {
			return
		}
	}
	p.delayed = append(p.delayed, key)
}

// deliver 投递给所有监听器，无人消费时断开流
func (p *Proxy) deliver(key types.StreamKey) {
	consumed := false
	for _, l := range p.listeners {
		l.Created(key.Type, key.ID, key.Context)
		if l.IsCreatedConsumed(key.Type, key.ID, key.Context) {
			consumed = true
		}
	}
	if !consumed {
		p.disconnect(key.ID)
	}
}

// disconnect 异步断开远端流，释放服务端资源
func (p *Proxy) disconnect(streamID string) {
	logger.Debug("断开未消费的流", "type", p.streamType, "stream", streamID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.callTimeout)
		defer cancel()
		if err := p.svc.Disconnect(ctx, streamID); err != nil {
			logger.Warn("断开流失败", "type", p.streamType, "stream", streamID, "error", err)
		}
	}()
}
