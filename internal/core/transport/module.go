package transport

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/transport/quic"
	"github.com/dep2p/go-tcflink/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// TransportManager 传输管理器
type TransportManager struct {
	config     config.TransportConfig
	transports []pkgif.Transport
}

// NewTransportManager 按配置创建传输
func NewTransportManager(cfg config.TransportConfig) (*TransportManager, error) {
	logger.Debug("创建传输管理器", "enableQUIC", cfg.EnableQUIC, "enableTCP", cfg.EnableTCP)

	tm := &TransportManager{config: cfg}
	if cfg.EnableTCP {
		tm.transports = append(tm.transports, tcp.New(cfg))
	}
	if cfg.EnableQUIC {
		tm.transports = append(tm.transports, quic.New(cfg))
	}
	if len(tm.transports) == 0 {
		return nil, ErrNoTransport
	}

	logger.Info("传输管理器创建成功", "transportCount", len(tm.transports))
	return tm, nil
}

// GetTransports 获取所有传输
func (tm *TransportManager) GetTransports() []pkgif.Transport {
	return tm.transports
}

// Close 关闭所有传输
func (tm *TransportManager) Close() error {
	var err error
	for _, t := range tm.transports {
		err = multierr.Append(err, t.Close())
	}
	return err
}

// Params 传输模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// TransportOutput Fx 输出
type TransportOutput struct {
	fx.Out

	TransportManager *TransportManager
	Transports       []pkgif.Transport `group:"transports,flatten"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransports),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransports 提供 TransportManager 和 Transport 列表
func ProvideTransports(p Params) (TransportOutput, error) {
	cfg := config.DefaultTransportConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Transport
	}

	tm, err := NewTransportManager(cfg)
	if err != nil {
		return TransportOutput{}, err
	}
	return TransportOutput{
		TransportManager: tm,
		Transports:       tm.GetTransports(),
	}, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, tm *TransportManager) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return tm.Close()
		},
	})
}
