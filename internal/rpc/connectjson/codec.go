package connectjson

import (
	"encoding/json"

	"github.com/bufbuild/connect-go"
)

// Codec lets Connect handlers exchange plain Go structs as JSON, without
// generated protobuf types.
type Codec struct{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var _ connect.Codec = (*Codec)(nil)
