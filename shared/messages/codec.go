package messages

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Kind tags a payload so receivers can decode without reflection.
type Kind uint8

const (
	KindSnapshot Kind = iota + 1
	KindWeather

	// Transport-level kinds, used by adapters that frame their own wire
	// format instead of riding on necs.
	KindHello
	KindRoster
	KindEnvelope
	KindReject
)

var mh = &codec.MsgpackHandle{WriteExt: true}

// Encode serializes a payload with a one-byte kind prefix.
func Encode(kind Kind, v any) ([]byte, error) {
	var body []byte
	if err := codec.NewEncoderBytes(&body, mh).Encode(v); err != nil {
		return nil, fmt.Errorf("encode kind %d: %w", kind, err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(kind))
	return append(out, body...), nil
}

// DecodeKind returns the kind prefix and the body of a payload.
func DecodeKind(payload []byte) (Kind, []byte, error) {
	if len(payload) < 2 {
		return 0, nil, fmt.Errorf("payload too short: %d bytes", len(payload))
	}
	return Kind(payload[0]), payload[1:], nil
}

// DecodeBody deserializes a payload body produced by Encode into v.
func DecodeBody(body []byte, v any) error {
	if err := codec.NewDecoderBytes(body, mh).Decode(v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
