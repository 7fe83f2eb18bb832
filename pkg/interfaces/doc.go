// Package interfaces 定义 go-tcflink 公共接口
//
// 接口分为三组：
//   - 上游协作者：Transport、Channel、Service（远端协议抽象）
//   - 通道管理：ChannelManager、StreamListener、ValueAdd
//   - 基础设施：EventBus、Locator
//
// 实现位于 internal/core 下对应的包中。
package interfaces
