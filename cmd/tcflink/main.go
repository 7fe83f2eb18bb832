// Package main 提供 tcflink 命令行入口
//
//	tcflink -config tcflink.json -list
//	tcflink -config tcflink.json -connect agent-1
//	tcflink -dial 127.0.0.1:1534
//	tcflink -serve 127.0.0.1:1534 -agent-id agent-1
//	tcflink -config tcflink.json -connect agent-1 -introspect 127.0.0.1:6060
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dep2p/go-tcflink"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
	"github.com/dep2p/go-tcflink/internal/core/transport/tcp"
	"github.com/dep2p/go-tcflink/internal/util/logger"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var cliLogger = log.Logger("tcflink/cmd")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cmd, err := o.command()
	if err != nil {
		return err
	}

	if cmd == cmdVersion {
		fmt.Fprintln(stdout, tcflink.VersionInfo())
		return nil
	}

	// TCFLINK_LOG_LEVEL / TCFLINK_LOG_FORMAT / TCFLINK_LOG_SOURCE
	logger.Install(stderr, logger.ConfigFromEnv())

	if cmd == cmdServe {
		return serve(stdout, o.serveAddr, o.agentID)
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	node, err := tcflink.Start(ctx, tcflink.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	if addr := node.IntrospectAddr(); addr != "" {
		fmt.Fprintf(stdout, "自省服务: http://%s/debug/introspect\n", addr)
	}

	switch cmd {
	case cmdList:
		return printPeers(stdout, node)
	case cmdConnect:
		return connect(ctx, stdout, node, types.PeerID(o.connectPeer), o.timeout)
	default:
		return dial(ctx, stdout, node, o.dialAddr, o.transport, o.timeout)
	}
}

func printPeers(w io.Writer, node *tcflink.Node) error {
	type row struct {
		types.Peer
		Static bool `json:"static"`
	}
	rows := make([]row, 0)
	for _, p := range node.Locator().Peers() {
		rows = append(rows, row{Peer: p, Static: node.Locator().IsStatic(p.ID)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func connect(ctx context.Context, w io.Writer, node *tcflink.Node, id types.PeerID, timeout time.Duration) error {
	if _, ok := node.Locator().Peer(id); !ok {
		return fmt.Errorf("未知节点 %q", id)
	}
	if err := node.Connect(ctx, id); err != nil {
		return fmt.Errorf("连接 %s 失败: %w", id, err)
	}

	pn, _ := node.Locator().Node(id)
	fmt.Fprintf(w, "已连接 %s，服务: %v\n", id, pn.Services())
	cliLogger.Info("节点已连接", "peer", id.ShortString())

	waitForSignal()

	discCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return node.Disconnect(discCtx, id)
}

func dial(ctx context.Context, w io.Writer, node *tcflink.Node, addr, transport string, timeout time.Duration) error {
	peer, err := parsePeer(addr, transport)
	if err != nil {
		return err
	}

	ch, err := node.OpenChannel(ctx, peer, nil)
	if err != nil {
		return fmt.Errorf("打开通道失败: %w", err)
	}
	fmt.Fprintf(w, "通道 %s 已打开，服务: %v\n", ch.ID(), ch.Services())

	waitForSignal()

	closeCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return node.CloseChannel(closeCtx, ch)
}

// serve 以 Agent 身份监听，打印控制请求直到退出
func serve(w io.Writer, addr, agentID string) error {
	h := &session.AgentHandler{ID: agentID}
	l, err := tcp.Listen(addr, h)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	fmt.Fprintf(w, "Agent %s 正在监听 %s\n", agentID, l.Addr())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case a, ok := <-l.Agents():
			if !ok {
				return nil
			}
			go func() {
				<-a.Done()
				cliLogger.Info("客户端已断开", "client", a.ClientID(), "subscriptions", a.Subscriptions(), "err", a.Err())
			}()
			cliLogger.Info("客户端已连接", "client", a.ClientID())
		case <-signals:
			return nil
		}
	}
}

func parsePeer(addr, kind string) (types.Peer, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return types.Peer{}, fmt.Errorf("地址 %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return types.Peer{}, fmt.Errorf("端口 %q: %w", portStr, err)
	}
	tk, err := types.ParseTransportKind(kind)
	if err != nil {
		return types.Peer{}, err
	}

	peer := types.Peer{
		ID:        types.PeerID(fmt.Sprintf("%s:%s:%d", tk, host, port)),
		Host:      host,
		Port:      port,
		Transport: tk,
	}
	return peer, peer.Validate()
}

func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}
