package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tcflink/config"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestNewTransportManager 测试按配置创建传输
func TestNewTransportManager(t *testing.T) {
	cfg := config.DefaultTransportConfig()
	tm, err := NewTransportManager(cfg)
	require.NoError(t, err)
	defer tm.Close()

	kinds := make([]types.TransportKind, 0, 2)
	for _, tr := range tm.GetTransports() {
		kinds = append(kinds, tr.Kind())
	}
	assert.Equal(t, []types.TransportKind{types.TransportTCP, types.TransportQUIC}, kinds)

	cfg.EnableQUIC = false
	tm2, err := NewTransportManager(cfg)
	require.NoError(t, err)
	assert.Len(t, tm2.GetTransports(), 1)
	require.NoError(t, tm2.Close())

	cfg.EnableTCP = false
	_, err = NewTransportManager(cfg)
	assert.ErrorIs(t, err, ErrNoTransport)
}

type transportsIn struct {
	fx.In

	Transports []pkgif.Transport `group:"transports"`
}

// TestModule 测试 Fx 模块向 group 提供传输
func TestModule(t *testing.T) {
	var got []pkgif.Transport

	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Invoke(func(in transportsIn) { got = in.Transports }),
	)
	app.RequireStart()
	app.RequireStop()

	assert.Len(t, got, 2)
}
