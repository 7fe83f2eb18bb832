package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dep2p/go-tcflink/config"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════

// 子命令
const (
	cmdVersion = "version"
	cmdList    = "list"
	cmdConnect = "connect"
	cmdDial    = "dial"
	cmdServe   = "serve"
)

// cliOptions 解析后的命令行参数
type cliOptions struct {
	configFile  string
	connectPeer string
	dialAddr    string
	transport   string
	listPeers   bool

	serveAddr string
	agentID   string

	introspectAddr string

	timeout     time.Duration
	showVersion bool
}

// parseFlags 解析参数，-h 时返回 flag.ErrHelp
func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	o := &cliOptions{}
	fs := flag.NewFlagSet("tcflink", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configFile, "config", "", "配置文件路径")
	fs.StringVar(&o.connectPeer, "connect", "", "连接 Locator 中的节点（按 ID）并保持到退出")
	fs.StringVar(&o.dialAddr, "dial", "", "打开到 host:port 的临时共享通道并保持到退出")
	fs.StringVar(&o.transport, "transport", "TCP", "-dial 使用的传输 (TCP/QUIC)")
	fs.BoolVar(&o.listPeers, "list", false, "列出 Locator 中的节点")

	fs.StringVar(&o.serveAddr, "serve", "", "以 Agent 身份在 TCP 地址上监听")
	fs.StringVar(&o.agentID, "agent-id", "tcflink-agent", "-serve 模式的 Agent 标识")

	fs.StringVar(&o.introspectAddr, "introspect", "", "启用自省 HTTP 服务的监听地址")

	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "连接超时")
	fs.BoolVar(&o.showVersion, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("多余的参数: %s", strings.Join(fs.Args(), " "))
	}
	if o.timeout <= 0 {
		return nil, errors.New("-timeout 必须为正数")
	}
	return o, nil
}

// command 返回要执行的子命令，-list/-connect/-dial/-serve 必须恰好指定一个
func (o *cliOptions) command() (string, error) {
	if o.showVersion {
		return cmdVersion, nil
	}

	var cmds []string
	if o.listPeers {
		cmds = append(cmds, cmdList)
	}
	if o.connectPeer != "" {
		cmds = append(cmds, cmdConnect)
	}
	if o.dialAddr != "" {
		cmds = append(cmds, cmdDial)
	}
	if o.serveAddr != "" {
		cmds = append(cmds, cmdServe)
	}

	switch len(cmds) {
	case 0:
		return "", errors.New("需要 -list、-connect、-dial 或 -serve 之一")
	case 1:
		return cmds[0], nil
	default:
		return "", fmt.Errorf("-%s 不能同时使用", strings.Join(cmds, "、-"))
	}
}

// loadConfig 加载配置文件并应用命令行覆盖
func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if o.configFile != "" {
		loaded, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.introspectAddr != "" {
		cfg.Diagnostics.EnableIntrospect = true
		cfg.Diagnostics.IntrospectAddr = o.introspectAddr
	}
	return cfg, cfg.Validate()
}
