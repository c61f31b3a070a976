// Package wire decodes the big-endian F-engine and X-engine packet headers
// of spec.md §6.
package wire

import "encoding/binary"

// FHeaderSize is the wire size of an F-engine packet header in bytes.
const FHeaderSize = 8

// FHeader is the decoded F-engine packet header: a single 64-bit
// big-endian word where bits [63:29] are mcnt, bits [28:16] are the first
// channel, and bits [15:0] are the antenna.
type FHeader struct {
	Mcnt         uint64
	FirstChannel uint16
	Antenna      uint16
}

// DecodeFHeader parses an F-engine packet header from its wire
// representation.
func DecodeFHeader(raw []byte) FHeader {
	word := binary.BigEndian.Uint64(raw[:FHeaderSize])

	return FHeader{
		Mcnt:         word >> 29,
		FirstChannel: uint16((word >> 16) & 0x1FFF),
		Antenna:      uint16(word & 0xFFFF),
	}
}

// Encode serializes the header back to its wire representation, primarily
// for test fixtures.
func (m FHeader) Encode() []byte {
	word := (m.Mcnt << 29) | (uint64(m.FirstChannel&0x1FFF) << 16) | uint64(m.Antenna)

	buf := make([]byte, FHeaderSize)
	binary.BigEndian.PutUint64(buf, word)
	return buf
}

// XHeaderSize is the wire size of an X-engine packet header in bytes.
const XHeaderSize = 8 + 4 + 4 + 2 + 2 + 2 + 2

// XHeader is the decoded X-engine packet header.
type XHeader struct {
	Mcnt          uint64
	Bcnt          uint32
	ChannelOffset uint32
	Ant0          uint16
	Ant1          uint16
	XengID        uint16
	PayloadLen    uint16
}

// DecodeXHeader parses an X-engine packet header from its wire
// representation.
func DecodeXHeader(raw []byte) XHeader {
	return XHeader{
		Mcnt:          binary.BigEndian.Uint64(raw[0:8]),
		Bcnt:          binary.BigEndian.Uint32(raw[8:12]),
		ChannelOffset: binary.BigEndian.Uint32(raw[12:16]),
		Ant0:          binary.BigEndian.Uint16(raw[16:18]),
		Ant1:          binary.BigEndian.Uint16(raw[18:20]),
		XengID:        binary.BigEndian.Uint16(raw[20:22]),
		PayloadLen:    binary.BigEndian.Uint16(raw[22:24]),
	}
}

// Encode serializes the header back to its wire representation, primarily
// for test fixtures.
func (m XHeader) Encode() []byte {
	buf := make([]byte, XHeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], m.Mcnt)
	binary.BigEndian.PutUint32(buf[8:12], m.Bcnt)
	binary.BigEndian.PutUint32(buf[12:16], m.ChannelOffset)
	binary.BigEndian.PutUint16(buf[16:18], m.Ant0)
	binary.BigEndian.PutUint16(buf[18:20], m.Ant1)
	binary.BigEndian.PutUint16(buf[20:22], m.XengID)
	binary.BigEndian.PutUint16(buf[22:24], m.PayloadLen)
	return buf
}

// RawFrame is one padded network frame as delivered by the out-of-scope
// RDMA/raw-socket packet source into the first ring buffer.
type RawFrame struct {
	Data []byte
}
