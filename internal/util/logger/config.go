// Package logger 安装按子系统分级的 slog handler
//
// 环境变量：
//   - TCFLINK_LOG_LEVEL: 子系统=级别,...,默认级别
//     示例: core/transport=debug,core/locator=warn,info
//     子系统按路径前缀匹配，core/transport 同时作用于 core/transport/tcp。
//   - TCFLINK_LOG_FORMAT: text（默认）、json 或 pretty（终端彩色单行）
//   - TCFLINK_LOG_SOURCE: 非空时输出源码位置
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
	FormatPretty
)

// Config 日志配置
type Config struct {
	DefaultLevel slog.Level

	// SubsystemLevels 键为组件名或组件名前缀
	SubsystemLevels map[string]slog.Level

	Format    LogFormat
	AddSource bool
}

// LevelForSubsystem 返回组件的级别，取最长匹配的前缀
func (c *Config) LevelForSubsystem(component string) slog.Level {
	for name := component; name != ""; {
		if level, ok := c.SubsystemLevels[name]; ok {
			return level
		}
		i := strings.LastIndexByte(name, '/')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return c.DefaultLevel
}

// MinLevel 返回所有配置中最低的级别
func (c *Config) MinLevel() slog.Level {
	lowest := c.DefaultLevel
	for _, l := range c.SubsystemLevels {
		if l < lowest {
			lowest = l
		}
	}
	return lowest
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() *Config {
	cfg := ParseConfig(os.Getenv("TCFLINK_LOG_LEVEL"), os.Getenv("TCFLINK_LOG_FORMAT"))
	cfg.AddSource = os.Getenv("TCFLINK_LOG_SOURCE") != ""
	return cfg
}

// ParseConfig 解析级别与格式字符串，无法识别的片段被忽略
func ParseConfig(levels, format string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			levelName = name
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(levelName))); err != nil {
			continue
		}
		if scoped {
			cfg.SubsystemLevels[strings.Trim(strings.TrimSpace(name), "/")] = level
		} else {
			cfg.DefaultLevel = level
		}
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		cfg.Format = FormatJSON
	case "pretty":
		cfg.Format = FormatPretty
	}
	return cfg
}
