package wire_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/wire"
)

func TestFHeaderRoundTrip(t *testing.T) {
	h := wire.FHeader{Mcnt: 123456789, FirstChannel: 42, Antenna: 7}
	got := wire.DecodeFHeader(h.Encode())
	require.Equal(t, h, got)
}

func TestXHeaderRoundTrip(t *testing.T) {
	h := wire.XHeader{
		Mcnt:          1 << 40,
		Bcnt:          987654,
		ChannelOffset: 256,
		Ant0:          3,
		Ant1:          9,
		XengID:        2,
		PayloadLen:    1024,
	}
	got := wire.DecodeXHeader(h.Encode())
	require.Equal(t, h, got)
}

func TestXPacketSetsPayloadLen(t *testing.T) {
	h := wire.XHeader{Mcnt: 1, Bcnt: 2}
	payload := make([]byte, 32)

	pkt := wire.XPacket(h, payload)
	got := wire.DecodeXHeader(pkt[:wire.XHeaderSize])
	require.EqualValues(t, len(payload), got.PayloadLen)
	require.Len(t, pkt, wire.XHeaderSize+len(payload))
}

func TestEthernetUDPFrame(t *testing.T) {
	srcMAC, _ := net.ParseMAC("00:11:22:33:44:55")
	dstMAC, _ := net.ParseMAC("66:77:88:99:aa:bb")

	payload := wire.XPacket(wire.XHeader{Mcnt: 5, Bcnt: 6}, []byte{1, 2, 3, 4})
	frame, err := wire.EthernetUDPFrame(srcMAC, dstMAC, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 10000, 10001, payload)
	require.NoError(t, err)
	require.NotEmpty(t, frame)
}
