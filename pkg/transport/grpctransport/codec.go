package grpctransport

import (
	"bytes"
	"encoding/json"

	"google.golang.org/grpc/encoding"

	"github.com/cloudendpoints/service-control-client-go/pkg/bufpool"
)

// codecName is registered as a gRPC content-subtype so Invoke calls
// made with grpc.CallContentSubtype(codecName) marshal scpb's plain
// structs as JSON instead of requiring generated protobuf code for
// every message this package's three RPCs use.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

// Marshal encodes into a pooled scratch buffer rather than letting
// json.Marshal grow its own slice from scratch on every call; the
// result is copied out before the scratch buffer returns to the pool,
// since gRPC holds onto the returned slice past this call's lifetime.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	buf := bufpool.Get(bufpool.DefaultSmallSize)[:0]
	defer bufpool.Put(buf)

	b := bytes.NewBuffer(buf)
	if err := json.NewEncoder(b).Encode(v); err != nil {
		return nil, err
	}

	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
