// Package stepper 提供可回滚的多步骤异步作业
//
// Job 按顺序执行一组 Step，步骤之间通过 Properties 传递数据。
// 任一步骤失败时，已执行的步骤按逆序回滚（实现了 Rollbacker 的步骤）。
// 取消是协作式的：每个步骤开始前检查 ctx。
//
//	job := stepper.NewJob("open-channel", []stepper.Step{launch, dial, redirect}, props)
//	job.Start(ctx, func(err error) { ... })
package stepper
