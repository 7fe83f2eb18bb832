package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              ChannelState - 通道状态
// ============================================================================

// ChannelState 通道状态
type ChannelState int

const (
	// ChannelOpening 正在打开
	ChannelOpening ChannelState = iota
	// ChannelOpen 已打开
	ChannelOpen
	// ChannelClosed 已关闭
	ChannelClosed
)

// String 返回通道状态名称
func (s ChannelState) String() string {
	switch s {
	case ChannelOpening:
		return "opening"
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s ChannelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *ChannelState) UnmarshalText(text []byte) error {
	for v := ChannelOpening; v <= ChannelClosed; v++ {
		if strings.EqualFold(string(text), v.String()) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown channel state %q", text)
}

// ============================================================================
//                              ConnectState - 节点连接状态
// ============================================================================

// ConnectState 节点连接状态
//
// 状态之间的合法迁移由 peernode 包中的迁移表约束，
// 任何迁移都必须经过 *Scheduled / *ing 中间态。
type ConnectState int

const (
	// StateUnknown 未知
	StateUnknown ConnectState = iota
	// StateDisconnected 已断开
	StateDisconnected
	// StateDisconnectScheduled 已计划断开
	StateDisconnectScheduled
	// StateDisconnecting 正在断开
	StateDisconnecting
	// StateConnectScheduled 已计划连接
	StateConnectScheduled
	// StateConnecting 正在连接
	StateConnecting
	// StateConnected 已连接
	StateConnected
)

// String 返回连接状态名称
func (s ConnectState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateDisconnected:
		return "disconnected"
	case StateDisconnectScheduled:
		return "disconnect_scheduled"
	case StateDisconnecting:
		return "disconnecting"
	case StateConnectScheduled:
		return "connect_scheduled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("invalid(%d)", int(s))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s ConnectState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *ConnectState) UnmarshalText(text []byte) error {
	for v := StateUnknown; v <= StateConnected; v++ {
		if strings.EqualFold(string(text), v.String()) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown connect state %q", text)
}

// IsTransient 是否为中间态
func (s ConnectState) IsTransient() bool {
	switch s {
	case StateConnectScheduled, StateConnecting, StateDisconnectScheduled, StateDisconnecting:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              Action - 连接动作
// ============================================================================

// Action 连接状态变更动作
type Action int

const (
	// ActionConnect 连接
	ActionConnect Action = iota + 1
	// ActionDisconnect 断开
	ActionDisconnect
)

// String 返回动作名称
func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}
