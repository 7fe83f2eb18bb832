package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink"
	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestParseFlags_Defaults 测试默认参数
func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags([]string{"-list"}, io.Discard)
	require.NoError(t, err)

	assert.True(t, o.listPeers)
	assert.Equal(t, "TCP", o.transport)
	assert.Equal(t, "tcflink-agent", o.agentID)
	assert.Equal(t, 30*time.Second, o.timeout)
	assert.Empty(t, o.configFile)
}

// TestParseFlags_Errors 测试非法参数
func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus"}},
		{"extra args", []string{"-list", "agent-1"}},
		{"zero timeout", []string{"-list", "-timeout", "0s"}},
		{"bad duration", []string{"-timeout", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}

	_, err := parseFlags([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

// TestCommand 测试子命令选择
func TestCommand(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{[]string{"-version", "-list"}, cmdVersion, false},
		{[]string{"-list"}, cmdList, false},
		{[]string{"-connect", "agent-1"}, cmdConnect, false},
		{[]string{"-dial", "127.0.0.1:1534", "-transport", "QUIC"}, cmdDial, false},
		{[]string{"-serve", "127.0.0.1:0"}, cmdServe, false},
		{nil, "", true},
		{[]string{"-list", "-connect", "agent-1"}, "", true},
	}
	for _, tt := range tests {
		o, err := parseFlags(tt.args, io.Discard)
		require.NoError(t, err)

		got, err := o.command()
		if tt.wantErr {
			assert.Error(t, err, "args %v", tt.args)
			continue
		}
		require.NoError(t, err, "args %v", tt.args)
		assert.Equal(t, tt.want, got)
	}
}

// TestLoadConfig 测试配置文件与 -introspect 覆盖
func TestLoadConfig(t *testing.T) {
	o, err := parseFlags([]string{"-list", "-introspect", "127.0.0.1:0"}, io.Discard)
	require.NoError(t, err)

	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Diagnostics.EnableIntrospect)
	assert.Equal(t, "127.0.0.1:0", cfg.Diagnostics.IntrospectAddr)

	o.configFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = o.loadConfig()
	assert.Error(t, err)
}

// TestParsePeer 测试 -dial 地址解析
func TestParsePeer(t *testing.T) {
	peer, err := parsePeer("127.0.0.1:1534", "quic")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", peer.Host)
	assert.Equal(t, 1534, peer.Port)
	assert.Equal(t, types.TransportQUIC, peer.Transport)
	assert.NotEmpty(t, peer.ID)

	_, err = parsePeer("127.0.0.1", "TCP")
	assert.Error(t, err)
	_, err = parsePeer("127.0.0.1:port", "TCP")
	assert.Error(t, err)
	_, err = parsePeer("127.0.0.1:1534", "serial")
	assert.ErrorIs(t, err, types.ErrUnknownTransport)
}

// TestRun_Version 测试 -version 输出
func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-version"}, &out, io.Discard))
	assert.Contains(t, out.String(), tcflink.VersionInfo())
}

// TestRun_NoCommand 测试缺少子命令
func TestRun_NoCommand(t *testing.T) {
	assert.Error(t, run(nil, io.Discard, io.Discard))
}

// TestRun_List 测试 -list 以 JSON 列出静态节点
func TestRun_List(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport.EnableQUIC = false
	cfg.Storage.DataDir = t.TempDir()
	cfg.Locator.StaticPeers = []types.Peer{
		{ID: "agent-1", Host: "10.0.0.1", Port: 1534, Transport: types.TransportTCP},
	}
	data, err := cfg.ToJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tcflink.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", path, "-list", "-timeout", "5s"}, &out, io.Discard))

	var rows []struct {
		ID     string `json:"id"`
		Host   string `json:"host"`
		Port   int    `json:"port"`
		Static bool   `json:"static"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "agent-1", rows[0].ID)
	assert.Equal(t, "10.0.0.1", rows[0].Host)
	assert.Equal(t, 1534, rows[0].Port)
	assert.True(t, rows[0].Static)
}
