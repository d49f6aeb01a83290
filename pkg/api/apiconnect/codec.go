// Package apiconnect provides Connect handlers and clients for the estatesale
// services. Messages are plain Go structs carried by a JSON codec.
package apiconnect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// codec encodes messages with encoding/json under the "json" codec name,
// so requests use the application/json content type.
type codec struct{}

func (codec) Name() string { return "json" }

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func withCodec() connect.Option {
	return connect.WithCodec(codec{})
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{withCodec()}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{withCodec()}, opts...)
}
