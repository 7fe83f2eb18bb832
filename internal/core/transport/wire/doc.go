// Package wire 实现控制流的消息编解码
//
// 每个通道在建立后打开一条控制流，双方在其上交换长度前缀的消息：
//
//	+----------------+---------------------------+
//	| uvarint length | protobuf-encoded Message  |
//	+----------------+---------------------------+
//
// 消息使用 protowire 手工编码，字段编号：
//
//	1  kind        varint
//	2  seq         varint
//	3  error       string
//	4  services    repeated string
//	5  agent_id    string
//	6  peer        Peer
//	7  rules       repeated Rule
//	8  stream_type string
//	9  stream_id   string
//	10 context_id  string
//
// Peer: 1 id, 2 host, 3 port, 4 transport, 5 attrs (repeated {1 key, 2 value})
// Rule: 1 source, 2 destination, 3 host
//
// 未知字段被跳过，便于双方独立演进。
package wire
