package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/locator"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

const shutdownTimeout = 5 * time.Second

// ChannelSource 通道快照来源，由 *channelmgr.Manager 实现
type ChannelSource interface {
	Channels() []channelmgr.ChannelInfo
}

// PeerSource 节点快照来源，由 *locator.Locator 实现
type PeerSource interface {
	Snapshot() []locator.PeerInfo
}

// Config 服务配置，Channels 与 Peers 均可为空
type Config struct {
	Addr     string
	Channels ChannelSource
	Peers    PeerSource

	// Gatherer 默认 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
	started  time.Time
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{config: cfg}
}

// routes 只注册 GET，其他方法由 ServeMux 回复 405
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /debug/introspect", s.handleReport)
	mux.HandleFunc("GET /debug/introspect/channels", s.handleChannels)
	mux.HandleFunc("GET /debug/introspect/peers", s.handlePeers)
	mux.HandleFunc("GET /debug/introspect/runtime", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, readRuntime())
	})
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	return mux
}

// Start 开始监听，重复调用无效果
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// pprof/profile 默认采样 30 秒
		WriteTimeout: 45 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.listener, s.server = ln, srv
	s.running = true
	s.started = time.Now()
	logger.Info("自省服务已启动", "addr", ln.Addr().String())
	return nil
}

// Stop 关闭服务，重复调用无效果
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.running = false
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址，未启动时返回配置地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

func (s *Server) uptime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.started).Round(time.Millisecond).String()
}

// ════════════════════════════════════════════════════════════════════════════
// 响应
// ════════════════════════════════════════════════════════════════════════════

// Report /debug/introspect 的完整报告
type Report struct {
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Channels  []channelmgr.ChannelInfo `json:"channels,omitempty"`
	Peers     []locator.PeerInfo       `json:"peers,omitempty"`
	Runtime   RuntimeInfo              `json:"runtime"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	Sys          uint64 `json:"sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse /health 响应
//
// 没有通道来源时 Status 为 degraded。
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	OpenChannels   int    `json:"open_channels"`
	ConnectedPeers int    `json:"connected_peers"`
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	report := Report{
		Timestamp: time.Now(),
		Uptime:    s.uptime(),
		Runtime:   readRuntime(),
	}
	if s.config.Channels != nil {
		report.Channels = s.config.Channels.Channels()
	}
	if s.config.Peers != nil {
		report.Peers = s.config.Peers.Snapshot()
	}
	writeJSON(w, report)
}

// handleChannels 支持 ?peer=<id> 过滤
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.config.Channels == nil {
		http.Error(w, "channel manager not available", http.StatusServiceUnavailable)
		return
	}
	infos := s.config.Channels.Channels()
	if peer := r.URL.Query().Get("peer"); peer != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if string(info.Peer) == peer {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	writeJSON(w, infos)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	if s.config.Peers == nil {
		http.Error(w, "locator not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.config.Peers.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := HealthResponse{Status: "ok", Uptime: s.uptime()}
	if s.config.Channels == nil {
		health.Status = "degraded"
	} else {
		for _, info := range s.config.Channels.Channels() {
			if info.State == types.ChannelOpen && !info.Closing {
				health.OpenChannels++
			}
		}
	}
	if s.config.Peers != nil {
		for _, p := range s.config.Peers.Snapshot() {
			if p.State == types.StateConnected {
				health.ConnectedPeers++
			}
		}
	}
	writeJSON(w, health)
}

func readRuntime() RuntimeInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    ms.HeapAlloc,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Warn("写入响应失败", "error", err)
	}
}
