package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Business codes with special meaning.
const (
	CodeOK           = 0
	CodeSuccess      = 200
	CodeUnauthorized = 401
)

// Envelope is the body shape every endpoint returns.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// RawEnvelope is an envelope whose data has not been decoded yet.
type RawEnvelope = Envelope[json.RawMessage]

// OK reports whether the code denotes business success.
func (e Envelope[T]) OK() bool {
	return e.Code == CodeOK || e.Code == CodeSuccess
}

// wireEnvelope tells a missing code apart from code 0.
type wireEnvelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (w wireEnvelope) validate() (*RawEnvelope, error) {
	if w.Code == nil {
		return nil, errors.New(`missing "code" field`)
	}
	return &RawEnvelope{Code: *w.Code, Message: w.Message, Data: w.Data}, nil
}

// decodeData unmarshals env.Data into T. Absent or null data yields the zero T.
func decodeData[T any](env *RawEnvelope) (T, error) {
	var out T
	if env == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("decode data: %w", err)
	}
	return out, nil
}
