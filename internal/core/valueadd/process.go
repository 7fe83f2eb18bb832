package valueadd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// killWait 杀死进程后等待退出的上限
const killWait = 5 * time.Second

// process 一个运行中的 value-add 进程
type process struct {
	cmd    *exec.Cmd
	proxy  types.Peer
	exited chan struct{}

	mu      sync.Mutex
	exitErr error
}

// alive 进程是否仍在运行
func (p *process) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// kill 杀死进程并等待退出
func (p *process) kill() error {
	if !p.alive() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill value-add: %w", err)
	}
	select {
	case <-p.exited:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("value-add pid %d did not exit", p.cmd.Process.Pid)
	}
}

// readyLine 就绪行
type readyLine struct {
	ID        types.PeerID        `json:"id,omitempty"`
	Host      string              `json:"host"`
	Port      int                 `json:"port"`
	Transport types.TransportKind `json:"transport"`
	Attrs     map[string]string   `json:"attrs,omitempty"`
}

// parseReady 把就绪行转换为代理节点
func parseReady(line []byte, vaID string, target types.Peer) (types.Peer, error) {
	var r readyLine
	if err := json.Unmarshal(line, &r); err != nil {
		return types.Peer{}, fmt.Errorf("%w: %v", ErrBadReadyLine, err)
	}

	proxy := types.Peer{
		ID:        r.ID,
		Name:      vaID,
		Host:      r.Host,
		Port:      r.Port,
		Transport: r.Transport,
		Attrs:     r.Attrs,
	}
	if proxy.ID.IsEmpty() {
		proxy.ID = types.PeerID(string(target.ID) + "/" + vaID)
	}
	if proxy.Host == "" {
		proxy.Host = "127.0.0.1"
	}
	if proxy.Transport == types.TransportUnknown {
		proxy.Transport = types.TransportTCP
	}
	if err := proxy.Validate(); err != nil {
		return types.Peer{}, fmt.Errorf("%w: %v", ErrBadReadyLine, err)
	}
	return proxy, nil
}

// expandArgs 替换参数中的占位符
func expandArgs(args []string, target types.Peer) []string {
	r := strings.NewReplacer(
		"{host}", target.Host,
		"{port}", strconv.Itoa(target.Port),
		"{id}", string(target.ID),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// readFirstLine 读取第一行，之后持续丢弃输出以免进程阻塞在写管道
func readFirstLine(r io.Reader, lines chan<- []byte) {
	br := bufio.NewReader(r)
	line, err := br.ReadBytes('\n')
	if err == nil || (err == io.EOF && len(line) > 0) {
		lines <- []byte(strings.TrimSpace(string(line)))
	}
	_, _ = io.Copy(io.Discard, br)
}
