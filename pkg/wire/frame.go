package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/myriadmesh/myriadmesh/pkg/codec/cborcanon"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
)

// FrameHeaderSize is the fixed size in bytes of a serialized FrameHeader:
// 4 (magic) + 1 (version) + 1 (flags) + 4 (payload_length) + 4 (checksum).
const FrameHeaderSize = 4 + 1 + 1 + 4 + 4

// Flag bits carried in the frame header (§4.1).
const (
	FlagNone uint8 = 0
)

// FrameHeader is the fixed-size preamble that precedes every frame's
// canonical-CBOR payload on the wire (§4.1, §6).
type FrameHeader struct {
	Magic         [4]byte
	Version       uint8
	Flags         uint8
	PayloadLength uint32
	Checksum      uint32
}

// Frame is a Message wrapped in the transport-level envelope: a fixed
// header followed by the canonical CBOR encoding of the Message, checksummed
// with CRC32 so a single-transport-agnostic format can ride Ethernet,
// Bluetooth, LoRaWAN or an overlay socket alike (§4.1, §6).
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// FromMessage builds a Frame by canonically encoding m.
func FromMessage(m *Message) (*Frame, error) {
	payload, err := cborcanon.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode message: %w", err)
	}
	if len(payload) > constants.MaxPayloadSize {
		return nil, NewProtocolError(CodeMessageTooLarge, fmt.Sprintf("encoded message %d exceeds max %d", len(payload), constants.MaxPayloadSize))
	}
	return &Frame{
		Header: FrameHeader{
			Magic:         constants.FrameMagic,
			Version:       constants.ProtocolVersion,
			Flags:         FlagNone,
			PayloadLength: uint32(len(payload)),
			Checksum:      crc32.ChecksumIEEE(payload),
		},
		Payload: payload,
	}, nil
}

// ToMessage decodes the frame's payload back into a Message.
func (f *Frame) ToMessage() (*Message, error) {
	var m Message
	if err := cborcanon.Unmarshal(f.Payload, &m); err != nil {
		return nil, NewProtocolError(CodeInvalidMessageFormat, err.Error())
	}
	return &m, nil
}

// Serialize renders the frame as header || payload.
func (f *Frame) Serialize() ([]byte, error) {
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	copy(buf[0:4], f.Header.Magic[:])
	buf[4] = f.Header.Version
	buf[5] = f.Header.Flags
	binary.LittleEndian.PutUint32(buf[6:10], f.Header.PayloadLength)
	binary.LittleEndian.PutUint32(buf[10:14], f.Header.Checksum)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf, nil
}

// Deserialize parses header || payload, validating magic, version, declared
// length and checksum before the payload is handed to a CBOR decoder (§4.1:
// header fields are checked in full before the payload is trusted).
func Deserialize(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, NewProtocolError(CodeInvalidFrameFormat, "frame shorter than header")
	}

	var hdr FrameHeader
	copy(hdr.Magic[:], data[0:4])
	if hdr.Magic != constants.FrameMagic {
		return nil, NewProtocolError(CodeInvalidFrameFormat, "bad magic")
	}

	hdr.Version = data[4]
	if hdr.Version != constants.ProtocolVersion {
		return nil, NewProtocolError(CodeUnsupportedVersion, fmt.Sprintf("unsupported version %d", hdr.Version))
	}

	hdr.Flags = data[5]
	hdr.PayloadLength = binary.LittleEndian.Uint32(data[6:10])
	hdr.Checksum = binary.LittleEndian.Uint32(data[10:14])

	if hdr.PayloadLength > constants.MaxPayloadSize {
		return nil, NewProtocolError(CodeMessageTooLarge, fmt.Sprintf("declared payload length %d exceeds max %d", hdr.PayloadLength, constants.MaxPayloadSize))
	}

	rest := data[FrameHeaderSize:]
	if uint32(len(rest)) != hdr.PayloadLength {
		return nil, NewProtocolError(CodeInvalidFrameFormat, fmt.Sprintf("payload length mismatch: header says %d, got %d", hdr.PayloadLength, len(rest)))
	}

	if crc32.ChecksumIEEE(rest) != hdr.Checksum {
		return nil, NewProtocolError(CodeChecksumMismatch, "payload checksum mismatch")
	}

	payload := make([]byte, len(rest))
	copy(payload, rest)
	return &Frame{Header: hdr, Payload: payload}, nil
}
