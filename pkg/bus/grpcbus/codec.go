package grpcbus

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec carries the small frame envelopes as JSON so no protobuf code
// generation is needed. Message bodies inside frames are D-Bus encoded.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string                            { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
