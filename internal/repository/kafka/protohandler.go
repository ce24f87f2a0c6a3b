package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrBadPayload marks a message that does not decode into the expected type.
// The consumer commits such messages without retrying them.
var ErrBadPayload = errors.New("bad payload")

// ProtoHandler decodes each message value into a fresh M before calling handle.
func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %T: %v", ErrBadPayload, msg, err)
		}
		return handle(ctx, key, msg)
	}
}
