package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

// Install 安装按子系统分级的默认 logger
//
//	logger.Install(os.Stderr, logger.ConfigFromEnv())
func Install(w io.Writer, cfg *Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	l := slog.New(NewHandler(w, cfg))
	log.SetDefault(l)
	return l
}
