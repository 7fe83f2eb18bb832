package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
}

// TestFromJSON 测试从 JSON 加载
func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"channel": {"open_timeout": "5s"},
		"locator": {"static_peers": [
			{"id": "agent-1", "host": "127.0.0.1", "port": 1534, "transport": "tcp"}
		]},
		"path_map": {"rules": [{"source": "/build", "destination": "/home/me/src"}]}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Channel.OpenTimeout.Duration())
	// 未出现的字段保持默认值
	assert.Equal(t, DefaultChannelConfig().CloseTimeout, cfg.Channel.CloseTimeout)
	require.Len(t, cfg.Locator.StaticPeers, 1)
	assert.Equal(t, types.TransportTCP, cfg.Locator.StaticPeers[0].Transport)
	assert.Len(t, cfg.PathMap.RulesFor(cfg.Locator.StaticPeers[0]), 1)
}

// TestFromJSON_Invalid 测试无效配置
func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte(`{"channel": {"open_timeout": "soon"}}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"transport": {"enable_tcp": false, "enable_quic": false}}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"locator": {"static_peers": [
		{"id": "a", "host": "h", "port": 1, "transport": "tcp"},
		{"id": "a", "host": "h", "port": 2, "transport": "tcp"}]}}`))
	assert.Error(t, err)
}

// TestValueAddConfig_Validate 测试 value-add 配置校验
func TestValueAddConfig_Validate(t *testing.T) {
	cfg := DefaultValueAddConfig()
	cfg.Entries = []ValueAddEntry{{ID: "proxy", Command: "/usr/bin/proxy"}}
	require.NoError(t, cfg.Validate())

	cfg.Entries = append(cfg.Entries, ValueAddEntry{ID: "proxy", Command: "/bin/other"})
	assert.Error(t, cfg.Validate())

	cfg.Entries = []ValueAddEntry{{ID: "no-command"}}
	assert.Error(t, cfg.Validate())
}

// TestPathMapConfig_RulesFor 测试按主机过滤规则
func TestPathMapConfig_RulesFor(t *testing.T) {
	cfg := PathMapConfig{Rules: []types.PathMapRule{
		{Source: "/a", Destination: "/b"},
		{Source: "/c", Destination: "/d", Host: "10.0.0.1"},
	}}

	assert.Len(t, cfg.RulesFor(types.Peer{Host: "10.0.0.1"}), 2)
	assert.Len(t, cfg.RulesFor(types.Peer{Host: "10.0.0.2"}), 1)
}

// TestLoadFile 测试从文件加载并回写
func TestLoadFile(t *testing.T) {
	cfg := NewConfig()
	cfg.Metrics.Enable = false

	data, err := cfg.ToJSON()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tcflink.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, loaded.Metrics.Enable)
	assert.Equal(t, cfg.Transport.DialTimeout, loaded.Transport.DialTimeout)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TestDuration_JSON 测试 Duration 的两种 JSON 格式
func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())

	out, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())
}

// TestDiagnosticsConfig_Validate 测试自省地址校验
func TestDiagnosticsConfig_Validate(t *testing.T) {
	cfg := DefaultDiagnosticsConfig()
	cfg.IntrospectAddr = "not-an-address"
	// 未启用时不校验地址
	assert.NoError(t, cfg.Validate())

	cfg.EnableIntrospect = true
	assert.Error(t, cfg.Validate())

	cfg.IntrospectAddr = "127.0.0.1:0"
	assert.NoError(t, cfg.Validate())
}

// TestLocatorConfig_Validate 测试状态变更超时校验
func TestLocatorConfig_Validate(t *testing.T) {
	cfg := DefaultLocatorConfig()
	assert.Equal(t, 2*time.Minute, cfg.StateChangeTimeout.Duration())
	require.NoError(t, cfg.Validate())

	cfg.StateChangeTimeout = 0
	assert.NoError(t, cfg.Validate())

	cfg.StateChangeTimeout = Duration(-time.Second)
	assert.Error(t, cfg.Validate())
}
