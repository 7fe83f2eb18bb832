package testutil

import (
	"testing"
	"time"

	"github.com/dep2p/go-tcflink/internal/core/transport/session"
)

// PollInterval Eventually 的轮询间隔
const PollInterval = 50 * time.Millisecond

// WaitForCondition 轮询 condition 直到返回 true 或超过 timeout
func WaitForCondition(t *testing.T, timeout, interval time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// Eventually 与 WaitForCondition 相同，超时时 fail 测试
//
//	testutil.Eventually(t, 5*time.Second, func() bool {
//	    return !va.IsAlive(peer.ID)
//	}, "value-add 应该退出")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	if !WaitForCondition(t, timeout, PollInterval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// WaitClosed 等待 Agent 会话结束
func WaitClosed(t *testing.T, a *session.Agent) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(DefaultTimeout):
		t.Fatalf("Agent %s 会话未关闭", a.ClientID())
	}
}
