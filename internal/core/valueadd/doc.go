// Package valueadd 管理 value-add 代理进程
//
// value-add 是位于本地与目标节点之间的中间进程（例如协议转换器）。
// 每个 (value-add, 节点) 至多运行一个进程：
//
//  1. 以配置的命令启动进程，参数中的 {host} {port} {id} 替换为目标节点
//  2. 进程在 stdout 输出一行 JSON 描述自己的监听地址，即视为就绪
//  3. 超过启动超时、进程提前退出或输出无法解析时启动失败并杀死进程
//
// 进程退出由后台协程观察，之后 IsAlive 返回 false，下一次 Launch 会重新启动。
// 同一节点两次启动之间受 RelaunchInterval 限速。
//
// 就绪行示例:
//
//	{"host":"127.0.0.1","port":41234,"transport":"tcp","attrs":{"AgentID":"proxy-1"}}
package valueadd
