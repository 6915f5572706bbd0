package cache

import "encoding/json"

// Codec turns values into the canonical byte form used for size accounting
// and durable spill. Encoding must be deterministic for a value's logical
// content, since admission filtering by MaxItemSize depends on the measured
// length.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec is the default codec.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

var _ Codec[any] = JSONCodec[any]{}
