package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

// WrapKindHandler retries h, except for payloads that can never decode.
func WrapKindHandler(h outbox.KindHandler, p retry.Policy) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		return retry.Do(ctx, func(int) error {
			err := h(ctx, data)
			if undecodable(err) {
				return retry.Permanent{Err: err}
			}
			return err
		}, p)
	}
}

func undecodable(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}
