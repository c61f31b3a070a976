package wire

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// XPacket builds the wire bytes (header + payload) for one X-engine
// packet, as the reassembler would receive it after the RDMA source has
// stripped Ethernet/IP/UDP framing.
func XPacket(h XHeader, payload []byte) []byte {
	h.PayloadLen = uint16(len(payload))
	return append(h.Encode(), payload...)
}

// FPacket builds the wire bytes (header + payload) for one F-engine
// packet.
func FPacket(h FHeader, payload []byte) []byte {
	return append(h.Encode(), payload...)
}

// EthernetUDPFrame wraps an already-built packet (header+payload, as
// produced by XPacket/FPacket) in an Ethernet/IPv4/UDP frame, matching the
// framing the out-of-scope raw-socket source receives off the wire. It
// exists for integration tests that want to exercise a more realistic
// capture path before handing bytes to the reassembler, which itself never
// looks past the UDP payload.
func EthernetUDPFrame(srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
