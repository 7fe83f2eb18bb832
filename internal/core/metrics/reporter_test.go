package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestCollector_Channels 测试通道指标
func TestCollector_Channels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.ChannelOpened(true, 10*time.Millisecond)
	c.ChannelOpened(false, 20*time.Millisecond)
	c.ChannelOpenFailed(true)
	c.ChannelClosed(true, CloseUnsolicited)
	c.RefCountChanged(2)
	c.RefCountChanged(-1)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.open.WithLabelValues("shared")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.open.WithLabelValues("forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.openFailed.WithLabelValues("shared")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.closed.WithLabelValues("shared", CloseUnsolicited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refs))

	n, err := testutil.GatherAndCount(reg, "test_channel_opened_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestCollector_ValueAddAndStates 测试 value-add 与状态指标
func TestCollector_ValueAddAndStates(t *testing.T) {
	c := NewCollector("test", nil)

	c.ValueAddLaunched("tcf-agent", true)
	c.ValueAddLaunched("tcf-agent", false)
	c.ConnectStateChanged(types.StateConnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.valueAdds.WithLabelValues("tcf-agent", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.states.WithLabelValues("connected")))
}

// TestModule_Disabled 测试关闭指标时返回空实现
func TestModule_Disabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enable = false

	var r Reporter
	app := fxtest.New(t, fx.Supply(cfg), Module(), fx.Populate(&r))
	app.RequireStart().RequireStop()

	assert.Equal(t, Noop(), r)
}

// TestModule_CustomRegisterer 测试注入 Registerer
func TestModule_CustomRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()

	var r Reporter
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module(),
		fx.Populate(&r),
	)
	app.RequireStart().RequireStop()

	r.ChannelOpened(true, time.Millisecond)
	n, err := testutil.GatherAndCount(reg, "tcflink_channel_opened_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
