package wire

import (
	"testing"
	"time"
)

func sampleMessage() *Message {
	var src, dst NodeId
	src[0] = 0x01
	dst[0] = 0x02
	var id MessageId
	id[0] = 0xAA
	return &Message{
		ID:          id,
		Source:      src,
		Destination: dst,
		Type:        MessageTypeData,
		Priority:    200,
		TTL:         32,
		Timestamp:   time.Now().Unix(),
		Sequence:    7,
		Payload:     []byte("hello mesh"),
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	msg := sampleMessage()

	frame, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}

	data, err := frame.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	decoded, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	got, err := decoded.ToMessage()
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	if got.ID != msg.ID || got.Source != msg.Source || got.Destination != msg.Destination {
		t.Fatalf("round-tripped message mismatch: %+v vs %+v", got, msg)
	}
	if got.Sequence != msg.Sequence || got.TTL != msg.TTL || string(got.Payload) != string(msg.Payload) {
		t.Fatalf("round-tripped message mismatch: %+v vs %+v", got, msg)
	}
}

func TestFrame_DeterministicEncoding(t *testing.T) {
	msg := sampleMessage()

	f1, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	f2, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}

	d1, _ := f1.Serialize()
	d2, _ := f2.Serialize()
	if string(d1) != string(d2) {
		t.Fatal("identical messages produced different frame bytes")
	}
}

func TestFrame_ChecksumTamper(t *testing.T) {
	msg := sampleMessage()
	frame, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	data, err := frame.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Flip a payload byte without touching the header's checksum field.
	data[FrameHeaderSize] ^= 0xFF

	_, err = Deserialize(data)
	if err == nil {
		t.Fatal("expected checksum mismatch error, got nil")
	}
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeChecksumMismatch {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
}

func TestFrame_BadMagic(t *testing.T) {
	msg := sampleMessage()
	frame, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	data, err := frame.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	data[0] = 'X'

	_, err = Deserialize(data)
	if err == nil {
		t.Fatal("expected invalid frame format error, got nil")
	}
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeInvalidFrameFormat {
		t.Fatalf("expected InvalidFrameFormat, got %v", err)
	}
}

func TestFrame_UnsupportedVersion(t *testing.T) {
	msg := sampleMessage()
	frame, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	data, err := frame.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	data[4] = 255

	_, err = Deserialize(data)
	if err == nil {
		t.Fatal("expected unsupported version error, got nil")
	}
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeUnsupportedVersion {
		t.Fatalf("expected UnsupportedVersion, got %v", err)
	}
}

func TestFrame_TruncatedHeader(t *testing.T) {
	_, err := Deserialize([]byte{0x01, 0x02})
	if err == nil {
		t.Fatal("expected invalid frame format error for truncated header")
	}
}

func TestFrame_OversizedPayload(t *testing.T) {
	msg := sampleMessage()
	msg.Payload = make([]byte, 2*1024*1024)

	_, err := FromMessage(msg)
	if err == nil {
		t.Fatal("expected MessageTooLarge error for oversized payload")
	}
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeMessageTooLarge {
		t.Fatalf("expected MessageTooLarge, got %v", err)
	}
}
