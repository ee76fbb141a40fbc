package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

// Envelope is the wire form of every message.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeError reports which kind failed to decode, when the kind was readable.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var decoders = map[Kind]func(json.RawMessage) (Message, error){
	KindPing:           decodeAs[Ping],
	KindPong:           decodeAs[Pong],
	KindSwitchAccount:  decodeAs[SwitchAccount],
	KindCheckIdentity:  decodeAs[CheckIdentity],
	KindIdentityReport: decodeAs[IdentityReport],
	KindExecute:        decodeAs[Execute],
	KindActionComplete: decodeAs[ActionComplete],
	KindSyncAccounts:   decodeAs[SyncAccounts],
	KindTestTarget:     decodeAs[TestTarget],
	KindTargetResult:   decodeAs[TargetResult],
	KindCheckAlive:     decodeAs[CheckAlive],
	KindAccountStatus:  decodeAs[AccountStatus],
}

func decodeAs[T Message](payload json.RawMessage) (Message, error) {
	var msg T
	if len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return msg, nil
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode message: nil message")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Kind(), err)
	}

	data, err := json.Marshal(Envelope{Type: msg.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msg.Kind(), err)
	}

	return data, nil
}

// Decode parses an envelope. Unknown kinds wrap ErrUnknownKind and bad payloads
// wrap ErrMalformed, both as *DecodeError.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if env.Type == "" {
		return nil, &DecodeError{Err: fmt.Errorf("%w: missing type", ErrMalformed)}
	}

	decode, ok := decoders[env.Type]
	if !ok {
		return nil, &DecodeError{Kind: env.Type, Err: ErrUnknownKind}
	}

	msg, err := decode(env.Payload)
	if err != nil {
		return nil, &DecodeError{Kind: env.Type, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	return msg, nil
}
