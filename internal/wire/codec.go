// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package wire

import (
	"encoding/json"

	"github.com/samber/oops"
)

// envelope is the frame every message travels in.
type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes a message into its tagged envelope.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").Errorf("message is nil")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").With("type", string(m.Type())).Wrap(err)
	}
	data, err := json.Marshal(envelope{Type: m.Type(), Payload: payload})
	if err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").With("type", string(m.Type())).Wrap(err)
	}
	return data, nil
}

// Decode parses a tagged envelope into its concrete message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, oops.Code("WIRE_DECODE_FAILED").Wrap(err)
	}

	switch env.Type {
	case TypeAuthRequest:
		var m AuthRequest
		return decodePayload(env, &m)
	case TypeAuthResponse:
		var m AuthResponse
		return decodePayload(env, &m)
	case TypeCharacterSpawn:
		var m CharacterSpawn
		return decodePayload(env, &m)
	default:
		return nil, oops.Code("WIRE_UNKNOWN_TYPE").
			With("type", string(env.Type)).
			Errorf("unknown message type %q", env.Type)
	}
}

func decodePayload[T Message](env envelope, dst *T) (Message, error) {
	if len(env.Payload) == 0 {
		return nil, oops.Code("WIRE_DECODE_FAILED").
			With("type", string(env.Type)).
			Errorf("missing payload")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return nil, oops.Code("WIRE_DECODE_FAILED").With("type", string(env.Type)).Wrap(err)
	}
	return *dst, nil
}
