package server

import (
	"context"
	"encoding/json"

	apperrors "github.com/kbukum/bookingplatform/errors"
)

// Validator is implemented by request types that check their own fields.
type Validator interface {
	Validate() error
}

// Method adapts a typed handler to UnaryFunc. The payload is decoded into
// a new Req (an empty payload decodes as {}); when *Req implements
// Validator it is validated before fn runs. The result is encoded as JSON.
func Method[Req, Resp any](fn func(ctx context.Context, req *Req) (Resp, error)) UnaryFunc {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req := new(Req)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, req); err != nil {
				return nil, apperrors.Validation("Request payload is not valid JSON: " + err.Error())
			}
		}
		if v, ok := any(req).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		return out, nil
	}
}
