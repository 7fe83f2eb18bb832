package peernode

import "github.com/dep2p/go-tcflink/pkg/types"

// transitions 合法迁移表
var transitions = map[types.ConnectState][]types.ConnectState{
	types.StateUnknown:             {types.StateDisconnected, types.StateConnectScheduled, types.StateDisconnectScheduled},
	types.StateDisconnected:        {types.StateConnectScheduled},
	types.StateConnectScheduled:    {types.StateConnecting, types.StateDisconnected},
	types.StateConnecting:          {types.StateConnected, types.StateDisconnected},
	types.StateConnected:           {types.StateDisconnectScheduled, types.StateDisconnected},
	types.StateDisconnectScheduled: {types.StateDisconnecting, types.StateConnected},
	types.StateDisconnecting:       {types.StateDisconnected, types.StateConnected},
}

// allowedActions 各状态允许发起的动作
var allowedActions = map[types.ConnectState][]types.Action{
	types.StateUnknown:      {types.ActionConnect, types.ActionDisconnect},
	types.StateDisconnected: {types.ActionConnect},
	types.StateConnected:    {types.ActionDisconnect},
}

// CanTransition 是否允许从 from 迁移到 to
func CanTransition(from, to types.ConnectState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsActionAllowed 当前状态是否允许动作
func IsActionAllowed(state types.ConnectState, action types.Action) bool {
	for _, a := range allowedActions[state] {
		if a == action {
			return true
		}
	}
	return false
}

// AllowedActions 返回状态允许的动作
func AllowedActions(state types.ConnectState) []types.Action {
	return append([]types.Action(nil), allowedActions[state]...)
}

// actionStates 返回动作对应的计划态、执行态与成功终态
func actionStates(action types.Action) (scheduled, running, done types.ConnectState) {
	if action == types.ActionConnect {
		return types.StateConnectScheduled, types.StateConnecting, types.StateConnected
	}
	return types.StateDisconnectScheduled, types.StateDisconnecting, types.StateDisconnected
}
