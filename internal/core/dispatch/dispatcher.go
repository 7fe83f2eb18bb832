package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/dispatch")

// Dispatcher 单协程任务派发器
type Dispatcher struct {
	clock clock.Clock

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// Option 派发器选项
type Option func(*Dispatcher)

// WithClock 设置时钟（测试中使用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// New 创建并启动派发器
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock: clock.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

// Clock 返回派发器使用的时钟
func (d *Dispatcher) Clock() clock.Clock {
	return d.clock
}

// InvokeLater 投递任务，不等待执行
func (d *Dispatcher) InvokeLater(fn func()) error {
	if fn == nil {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// InvokeAndWait 投递任务并等待执行完毕
//
// ctx 取消时返回 ctx.Err()，任务仍可能在之后执行。
func (d *Dispatcher) InvokeAndWait(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := d.InvokeLater(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-d.done:
		// 关闭时队列会被排空，再检查一次
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvokeAfter 在 delay 之后投递任务
//
// 返回的 cancel 在任务尚未投递时阻止投递，并返回 true。
func (d *Dispatcher) InvokeAfter(delay time.Duration, fn func()) (cancel func() bool) {
	timer := d.clock.AfterFunc(delay, func() {
		if err := d.InvokeLater(fn); err != nil {
			logger.Debug("延迟任务投递失败", "error", err)
		}
	})
	return timer.Stop
}

// Close 关闭派发器
//
// 已投递的任务会在关闭前执行完毕。重复调用是安全的。
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
	return nil
}

// Done 返回派发协程退出时关闭的 channel
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// loop 派发主循环
func (d *Dispatcher) loop() {
	defer close(d.done)

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			d.run(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

// run 执行单个任务，任务 panic 不会终止派发协程
func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("派发任务 panic", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
