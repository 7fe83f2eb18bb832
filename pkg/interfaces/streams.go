package interfaces

import "context"

// StreamsServiceName 远端流服务名
const StreamsServiceName = "Streams"

// StreamsService 远端流服务
//
// 每个 (通道, 流类型) 只应存在一个服务级订阅，
// 多个上层监听器通过 ChannelManager 的流代理复用。
type StreamsService interface {
	Service

	// Subscribe 订阅指定类型的流事件
	Subscribe(ctx context.Context, streamType string, listener StreamsServiceListener) error

	// Unsubscribe 取消订阅
	Unsubscribe(ctx context.Context, streamType string, listener StreamsServiceListener) error

	// Disconnect 断开指定流，释放远端资源
	Disconnect(ctx context.Context, streamID string) error
}

// StreamsServiceListener 服务级流事件监听器
type StreamsServiceListener interface {
	// Created 流已创建
	Created(streamType, streamID, contextID string)

	// Disposed 流已销毁
	Disposed(streamType, streamID string)
}

// StreamListener 上层流监听器
type StreamListener interface {
	StreamsServiceListener

	// HasContext 监听器是否已拥有判断 created 事件所需的上下文
	HasContext() bool

	// IsCreatedConsumed 监听器是否消费该流
	IsCreatedConsumed(streamType, streamID, contextID string) bool
}

// Disposable 可释放对象
//
// 通道关闭时，流代理会释放实现了该接口的监听器。
type Disposable interface {
	Dispose()
}
