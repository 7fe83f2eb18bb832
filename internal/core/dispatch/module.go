package dispatch

import (
	"context"

	"go.uber.org/fx"
)

// Result Fx 模块输出
type Result struct {
	fx.Out

	Dispatcher *Dispatcher
}

// Module 返回派发器 Fx 模块
//
// 派发器在构造时启动，OnStop 时关闭并执行完剩余任务。
func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(ProvideDispatcher),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideDispatcher 提供派发器
func ProvideDispatcher() Result {
	return Result{Dispatcher: New()}
}

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				_ = d.Close()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				logger.Warn("派发器关闭超时")
				return ctx.Err()
			}
		},
	})
}
