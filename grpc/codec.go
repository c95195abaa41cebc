package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype used for JSON framed calls
// (content-type application/grpc+json).
const CodecName = "json"

// Frame carries an already encoded JSON document through gRPC untouched.
type Frame struct {
	Data []byte
}

type frameCodec struct{}

func init() {
	encoding.RegisterCodec(frameCodec{})
}

func (frameCodec) Name() string { return CodecName }

func (frameCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("json codec: cannot marshal %T", v)
	}
	return f.Data, nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("json codec: cannot unmarshal into %T", v)
	}
	f.Data = append(f.Data[:0], data...)
	return nil
}
