package grpcadapter

import "encoding/json"

// jsonCodec lets this adapter call arbitrary gRPC methods by name with
// plain Go structs, without protoc-generated message types. Registered
// once via encoding.RegisterCodec in init.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
