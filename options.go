package tcflink

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config      *config.Config
	registerer  prometheus.Registerer
	staticPeers []types.Peer
	userFx      []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithStaticPeers 追加静态节点
//
// 与配置文件中的静态节点合并，ID 重复时启动失败。
func WithStaticPeers(peers ...types.Peer) Option {
	return func(o *options) error {
		o.staticPeers = append(o.staticPeers, peers...)
		return nil
	}
}

// WithRegisterer 指定 prometheus 注册器
//
// 未指定时注册到 prometheus.DefaultRegisterer。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithFxOptions 追加用户 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFx = append(o.userFx, opts...)
		return nil
	}
}

// resolvedConfig 返回合并静态节点后的配置副本
func (o *options) resolvedConfig() *config.Config {
	cfg := *o.config
	if len(o.staticPeers) > 0 {
		peers := make([]types.Peer, 0, len(cfg.Locator.StaticPeers)+len(o.staticPeers))
		peers = append(peers, cfg.Locator.StaticPeers...)
		peers = append(peers, o.staticPeers...)
		cfg.Locator.StaticPeers = peers
	}
	return &cfg
}
