// Package metrics 提供通道管理的监控指标
//
// 指标基于 prometheus client_golang，注册到独立的 Registry，
// 由调用者决定如何暴露（例如挂到 promhttp.HandlerFor）。
//
//	reg := prometheus.NewRegistry()
//	r := metrics.NewCollector("tcflink", reg)
//	r.ChannelOpened(true, 120*time.Millisecond)
//
// 关闭指标时使用 metrics.Noop()，所有方法都是空操作。
package metrics
