package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("core/channelmgr=debug, core/transport=warn,error", "JSON")

	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("core/channelmgr"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("core/transport"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("core/locator"))
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelDebug, cfg.MinLevel())
}

func TestLevelForSubsystem_Prefix(t *testing.T) {
	cfg := ParseConfig("core/transport=debug,core/transport/quic=error", "")

	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("core/transport/tcp"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("core/transport/quic"))
	assert.Equal(t, slog.LevelInfo, cfg.LevelForSubsystem("core/transportx"))
	assert.Equal(t, slog.LevelInfo, cfg.LevelForSubsystem(""))
}

func TestParseConfig_IgnoresGarbage(t *testing.T) {
	cfg := ParseConfig("nonsense,core/x=loud", "")
	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Empty(t, cfg.SubsystemLevels)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestHandler_SubsystemLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := slog.New(NewHandler(buf, ParseConfig("core/channelmgr=debug,warn", "")))

	l.With("component", "core/channelmgr").Debug("visible")
	l.With("component", "core/locator").Info("hidden")
	l.With("component", "core/locator").Warn("shown")

	out := buf.String()
	assert.True(t, strings.Contains(out, "visible"))
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}

func TestInstall(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	buf := &bytes.Buffer{}
	Install(buf, ParseConfig("core/locator=error", "json"))

	l := log.Logger("core/locator")
	l.Warn("dropped")
	l.Error("kept", "peer", "p1")
	log.Logger("core/channelmgr").Info("default level")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"component":"core/locator"`)
	assert.Contains(t, out, "default level")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true
	buf := &bytes.Buffer{}
	l := slog.New(NewHandler(buf, ParseConfig("debug", "pretty")))

	l.With("component", "core/channelmgr").WithGroup("ch").Info("通道已打开", "peer", "agent-1", "refs", 2)

	out := buf.String()
	assert.Contains(t, out, "INFO  core/channelmgr 通道已打开")
	assert.Contains(t, out, "ch.peer=agent-1")
	assert.Contains(t, out, "ch.refs=2")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
