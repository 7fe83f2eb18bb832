package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// MaxMessageSize 单条消息上限
const MaxMessageSize = 1 << 20

const (
	fieldKind       protowire.Number = 1
	fieldSeq        protowire.Number = 2
	fieldError      protowire.Number = 3
	fieldServices   protowire.Number = 4
	fieldAgentID    protowire.Number = 5
	fieldPeer       protowire.Number = 6
	fieldRules      protowire.Number = 7
	fieldStreamType protowire.Number = 8
	fieldStreamID   protowire.Number = 9
	fieldContextID  protowire.Number = 10
)

// ============================================================================
//                              编码
// ============================================================================

// Marshal 编码消息
func Marshal(m *Message) []byte {
	var b []byte
	b = appendVarint(b, fieldKind, uint64(m.Kind))
	b = appendVarint(b, fieldSeq, m.Seq)
	b = appendString(b, fieldError, m.Error)
	for _, s := range m.Services {
		b = protowire.AppendTag(b, fieldServices, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	b = appendString(b, fieldAgentID, m.AgentID)
	if m.Peer != nil {
		b = protowire.AppendTag(b, fieldPeer, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPeer(*m.Peer))
	}
	for _, r := range m.Rules {
		b = protowire.AppendTag(b, fieldRules, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRule(r))
	}
	b = appendString(b, fieldStreamType, m.StreamType)
	b = appendString(b, fieldStreamID, m.StreamID)
	b = appendString(b, fieldContextID, m.ContextID)
	return b
}

func marshalPeer(p types.Peer) []byte {
	var b []byte
	b = appendString(b, 1, string(p.ID))
	b = appendString(b, 2, p.Host)
	b = appendVarint(b, 3, uint64(p.Port))
	b = appendVarint(b, 4, uint64(p.Transport))

	keys := make([]string, 0, len(p.Attrs))
	for k := range p.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var kv []byte
		kv = appendString(kv, 1, k)
		kv = appendString(kv, 2, p.Attrs[k])
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, kv)
	}
	return b
}

func marshalRule(r types.PathMapRule) []byte {
	var b []byte
	b = appendString(b, 1, r.Source)
	b = appendString(b, 2, r.Destination)
	b = appendString(b, 3, r.Host)
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// ============================================================================
//                              解码
// ============================================================================

// fieldFunc 处理一个字段，返回消费的字节数
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk 遍历消息字段
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			// 跳过未知字段
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

// Unmarshal 解码消息
func Unmarshal(b []byte) (*Message, error) {
	m := &Message{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldKind:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			m.Kind = Kind(v)
			return n, err
		case fieldSeq:
			return consumeVarint(typ, b, &m.Seq)
		case fieldError:
			return consumeString(typ, b, &m.Error)
		case fieldServices:
			var s string
			n, err := consumeString(typ, b, &s)
			if n > 0 {
				m.Services = append(m.Services, s)
			}
			return n, err
		case fieldAgentID:
			return consumeString(typ, b, &m.AgentID)
		case fieldPeer:
			raw, n, err := consumeBytes(typ, b)
			if n == 0 || err != nil {
				return n, err
			}
			p, err := unmarshalPeer(raw)
			if err != nil {
				return 0, err
			}
			m.Peer = &p
			return n, nil
		case fieldRules:
			raw, n, err := consumeBytes(typ, b)
			if n == 0 || err != nil {
				return n, err
			}
			r, err := unmarshalRule(raw)
			if err != nil {
				return 0, err
			}
			m.Rules = append(m.Rules, r)
			return n, nil
		case fieldStreamType:
			return consumeString(typ, b, &m.StreamType)
		case fieldStreamID:
			return consumeString(typ, b, &m.StreamID)
		case fieldContextID:
			return consumeString(typ, b, &m.ContextID)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if m.Kind == 0 || m.Kind > kindMax {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint64(m.Kind))
	}
	return m, nil
}

func unmarshalPeer(b []byte) (types.Peer, error) {
	var p types.Peer
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var s string
			n, err := consumeString(typ, b, &s)
			p.ID = types.PeerID(s)
			return n, err
		case 2:
			return consumeString(typ, b, &p.Host)
		case 3:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			p.Port = int(v)
			return n, err
		case 4:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			p.Transport = types.TransportKind(v)
			return n, err
		case 5:
			raw, n, err := consumeBytes(typ, b)
			if n == 0 || err != nil {
				return n, err
			}
			var k, v string
			if err := walk(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeString(typ, b, &k)
				case 2:
					return consumeString(typ, b, &v)
				}
				return 0, nil
			}); err != nil {
				return 0, err
			}
			if p.Attrs == nil {
				p.Attrs = make(map[string]string)
			}
			p.Attrs[k] = v
			return n, nil
		}
		return 0, nil
	})
	return p, err
}

func unmarshalRule(b []byte) (types.PathMapRule, error) {
	var r types.PathMapRule
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.Source)
		case 2:
			return consumeString(typ, b, &r.Destination)
		case 3:
			return consumeString(typ, b, &r.Host)
		}
		return 0, nil
	})
	return r, err
}

// ============================================================================
//                              帧
// ============================================================================

// WriteMessage 写入一帧
func WriteMessage(w io.Writer, m *Message) error {
	body := Marshal(m)
	if len(body) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	frame := binary.AppendUvarint(make([]byte, 0, len(body)+binary.MaxVarintLen32), uint64(len(body)))
	frame = append(frame, body...)
	_, err := w.Write(frame)
	return err
}

// Reader 帧读取器
type Reader struct {
	br *bufio.Reader
}

// NewReader 创建读取器
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage 读取一帧
func (r *Reader) ReadMessage() (*Message, error) {
	size, err := binary.ReadUvarint(r.br)
	if err != nil {
		return nil, err
	}
	if size > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, err
	}
	return Unmarshal(body)
}
