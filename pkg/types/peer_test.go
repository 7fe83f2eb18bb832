package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeer_ValueAdds(t *testing.T) {
	p := Peer{ID: "p1", Attrs: map[string]string{AttrValueAdds: " lldb , ,gdbproxy"}}
	assert.Equal(t, []string{"lldb", "gdbproxy"}, p.ValueAdds())

	assert.Nil(t, Peer{ID: "p2"}.ValueAdds())
}

func TestPeer_CloneIsDeep(t *testing.T) {
	p := Peer{ID: "p1", Host: "127.0.0.1", Port: 1534, Transport: TransportTCP,
		Attrs: map[string]string{"k": "v"}}
	c := p.Clone()
	c.Attrs["k"] = "changed"

	assert.Equal(t, "v", p.Attrs["k"])
	assert.False(t, p.Equal(c))
	assert.True(t, p.Equal(p.Clone()))
}

func TestPeer_Validate(t *testing.T) {
	ok := Peer{ID: "p1", Host: "localhost", Port: 1534, Transport: TransportTCP}
	require.NoError(t, ok.Validate())

	assert.ErrorIs(t, Peer{Host: "h", Port: 1, Transport: TransportTCP}.Validate(), ErrEmptyPeerID)
	assert.ErrorIs(t, Peer{ID: "p", Port: 1, Transport: TransportTCP}.Validate(), ErrInvalidPeer)
	assert.ErrorIs(t, Peer{ID: "p", Host: "h", Port: 70000, Transport: TransportTCP}.Validate(), ErrInvalidPeer)
	assert.ErrorIs(t, Peer{ID: "p", Host: "h", Port: 1}.Validate(), ErrUnknownTransport)
}

func TestTransportKind_Text(t *testing.T) {
	var k TransportKind
	require.NoError(t, k.UnmarshalText([]byte("QUIC")))
	assert.Equal(t, TransportQUIC, k)

	require.Error(t, k.UnmarshalText([]byte("serial")))
}

func TestOpenFlags_Shared(t *testing.T) {
	var nilFlags *OpenFlags
	assert.True(t, nilFlags.Shared())
	assert.True(t, (&OpenFlags{}).Shared())
	assert.False(t, (&OpenFlags{ForceNew: true}).Shared())
	assert.False(t, (&OpenFlags{NoValueAdd: true}).Shared())
	assert.False(t, (&OpenFlags{NoPathMap: true}).Shared())

	assert.False(t, nilFlags.SkipValueAdd())
	assert.False(t, nilFlags.SkipPathMap())
	assert.True(t, (&OpenFlags{NoValueAdd: true}).SkipValueAdd())
	assert.False(t, (&OpenFlags{NoValueAdd: true}).SkipPathMap())
	assert.True(t, (&OpenFlags{NoPathMap: true}).SkipPathMap())
}

func TestStates_TextRoundTrip(t *testing.T) {
	var cs ChannelState
	require.NoError(t, cs.UnmarshalText([]byte("OPEN")))
	assert.Equal(t, ChannelOpen, cs)
	assert.Error(t, cs.UnmarshalText([]byte("half-open")))

	var st ConnectState
	require.NoError(t, st.UnmarshalText([]byte("disconnect_scheduled")))
	assert.Equal(t, StateDisconnectScheduled, st)
	assert.Error(t, st.UnmarshalText([]byte("invalid(9)")))
}
