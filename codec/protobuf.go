package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto messages. Encoding is deterministic, so equal messages
// produce equal payload bytes on every replica.
type Protobuf[T proto.Message] struct {
	newMsg func() T
	enc    proto.MarshalOptions
	dec    proto.UnmarshalOptions
}

// NewProtobuf takes a constructor returning a fresh, empty message, e.g.
// func() *pb.Post { return &pb.Post{} }.
func NewProtobuf[T proto.Message](ctor func() T) (Protobuf[T], error) {
	if ctor == nil {
		return Protobuf[T]{}, errors.New("codec: protobuf constructor is nil")
	}
	return Protobuf[T]{
		newMsg: ctor,
		enc:    proto.MarshalOptions{Deterministic: true},
		dec:    proto.UnmarshalOptions{DiscardUnknown: true},
	}, nil
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	if any(v) == nil || !v.ProtoReflect().IsValid() {
		return nil, errors.New("codec: protobuf: nil message")
	}
	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: protobuf encode: %w", err)
	}
	return b, nil
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	if err := c.dec.Unmarshal(b, m); err != nil {
		var zero T
		return zero, fmt.Errorf("codec: protobuf decode: %w", err)
	}
	return m, nil
}
