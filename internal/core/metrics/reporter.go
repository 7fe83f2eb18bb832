package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// 通道关闭原因
const (
	// CloseRequested 引用计数归零后的正常关闭
	CloseRequested = "requested"
	// CloseForced Shutdown / CloseAll 强制关闭
	CloseForced = "forced"
	// CloseUnsolicited 传输层主动关闭
	CloseUnsolicited = "unsolicited"
)

// Reporter 通道管理指标
type Reporter interface {
	// ChannelOpened 记录一次成功的底层打开
	ChannelOpened(shared bool, took time.Duration)

	// ChannelOpenFailed 记录一次失败的打开
	ChannelOpenFailed(shared bool)

	// ChannelClosed 记录一次底层关闭
	ChannelClosed(shared bool, reason string)

	// RefCountChanged 记录共享通道引用计数的变化量
	RefCountChanged(delta int)

	// ValueAddLaunched 记录 value-add 启动结果
	ValueAddLaunched(id string, ok bool)

	// ConnectStateChanged 记录节点进入某个连接状态
	ConnectStateChanged(to types.ConnectState)
}

// Collector prometheus 实现
type Collector struct {
	open         *prometheus.GaugeVec
	opened       *prometheus.CounterVec
	openFailed   *prometheus.CounterVec
	closed       *prometheus.CounterVec
	openDuration prometheus.Histogram
	refs         prometheus.Gauge
	valueAdds    *prometheus.CounterVec
	states       *prometheus.CounterVec
}

var _ Reporter = (*Collector)(nil)

// NewCollector 创建并注册指标
//
// reg 为 nil 时不注册，指标仍可通过 Collector 读取。
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		open: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "open",
			Help:      "Number of open channels.",
		}, []string{"kind"}),
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "opened_total",
			Help:      "Underlying channel opens that succeeded.",
		}, []string{"kind"}),
		openFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "open_failed_total",
			Help:      "Underlying channel opens that failed.",
		}, []string{"kind"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "closed_total",
			Help:      "Underlying channel closes by reason.",
		}, []string{"kind", "reason"}),
		openDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "open_duration_seconds",
			Help:      "Time spent in the open sequence.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		refs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "shared_refs",
			Help:      "Sum of reference counts over shared channels.",
		}),
		valueAdds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valueadd",
			Name:      "launches_total",
			Help:      "Value-add launches by id and result.",
		}, []string{"id", "result"}),
		states: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "connect_state_total",
			Help:      "Connect state transitions by target state.",
		}, []string{"state"}),
	}

	if reg != nil {
		reg.MustRegister(c.open, c.opened, c.openFailed, c.closed,
			c.openDuration, c.refs, c.valueAdds, c.states)
	}
	return c
}

func kind(shared bool) string {
	if shared {
		return "shared"
	}
	return "forced"
}

// ChannelOpened 实现 Reporter
func (c *Collector) ChannelOpened(shared bool, took time.Duration) {
	c.open.WithLabelValues(kind(shared)).Inc()
	c.opened.WithLabelValues(kind(shared)).Inc()
	c.openDuration.Observe(took.Seconds())
}

// ChannelOpenFailed 实现 Reporter
func (c *Collector) ChannelOpenFailed(shared bool) {
	c.openFailed.WithLabelValues(kind(shared)).Inc()
}

// ChannelClosed 实现 Reporter
func (c *Collector) ChannelClosed(shared bool, reason string) {
	c.open.WithLabelValues(kind(shared)).Dec()
	c.closed.WithLabelValues(kind(shared), reason).Inc()
}

// RefCountChanged 实现 Reporter
func (c *Collector) RefCountChanged(delta int) {
	c.refs.Add(float64(delta))
}

// ValueAddLaunched 实现 Reporter
func (c *Collector) ValueAddLaunched(id string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.valueAdds.WithLabelValues(id, result).Inc()
}

// ConnectStateChanged 实现 Reporter
func (c *Collector) ConnectStateChanged(to types.ConnectState) {
	c.states.WithLabelValues(to.String()).Inc()
}

// ============================================================================
//                              Noop
// ============================================================================

type noop struct{}

// Noop 返回空实现
func Noop() Reporter {
	return noop{}
}

func (noop) ChannelOpened(bool, time.Duration)      {}
func (noop) ChannelOpenFailed(bool)                 {}
func (noop) ChannelClosed(bool, string)             {}
func (noop) RefCountChanged(int)                    {}
func (noop) ValueAddLaunched(string, bool)          {}
func (noop) ConnectStateChanged(types.ConnectState) {}
