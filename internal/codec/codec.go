// Package codec converts websocket text frames into room events and back.
//
// Inbound frames are JSON objects discriminated by key: an "action" key makes a
// Control event, a "message" key makes a Chat event.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/validator"
)

var (
	// ErrMalformedPayload is the only error that is fatal to a connection.
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrMissingDiscriminator = errors.New("payload has neither action nor message")
	ErrAmbiguousPayload     = errors.New("payload has both action and message")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidSeekTime      = errors.New("invalid seek time")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrUnknownEvent         = errors.New("unknown event")
)

const (
	keyAction  = "action"
	keyTime    = "time"
	keyMessage = "message"
)

type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionSeek  Action = "seek"
)

// Event is either Control or Chat.
type Event interface {
	event()
}

// Control is a playback command. Time is nil when the frame carried no usable time.
type Control struct {
	Action Action
	Time   *float64
}

type Chat struct {
	Message string
}

func (Control) event() {}
func (Chat) event()    {}

type controlInput struct {
	Action string   `json:"action" validate:"oneof=play pause seek"`
	Time   *float64 `json:"time" validate:"required_if=Action seek"`
}

type controlOutput struct {
	Action Action   `json:"action"`
	Time   *float64 `json:"time"`
}

type chatOutput struct {
	Message string `json:"message"`
}

var validate = validator.NewValidator()

// Parse decodes a single inbound frame.
func Parse(frame []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	rawAction, hasAction := fields[keyAction]
	rawMessage, hasMessage := fields[keyMessage]

	switch {
	case hasAction && hasMessage:
		return nil, ErrAmbiguousPayload
	case hasAction:
		return parseControl(rawAction, fields[keyTime])
	case hasMessage:
		return parseChat(rawMessage)
	default:
		return nil, ErrMissingDiscriminator
	}
}

func parseControl(rawAction, rawTime json.RawMessage) (Event, error) {
	var input controlInput
	if err := json.Unmarshal(rawAction, &input.Action); err != nil {
		return nil, fmt.Errorf("%w: action must be a string", ErrInvalidAction)
	}
	input.Time = parseTime(rawTime)

	if errs, ok := validate.Validate(input); !ok {
		for _, e := range errs {
			if e.Field == keyAction {
				return nil, fmt.Errorf("%w: %q", ErrInvalidAction, input.Action)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeekTime, errs[0].Message)
	}

	return Control{Action: Action(input.Action), Time: input.Time}, nil
}

// parseTime returns nil for anything that is not a JSON number, and for
// numbers outside the float64 range.
func parseTime(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var t *float64
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}

	return t
}

func parseChat(raw json.RawMessage) (Event, error) {
	var message *string
	if err := json.Unmarshal(raw, &message); err != nil || message == nil {
		return nil, fmt.Errorf("%w: message must be a string", ErrInvalidMessage)
	}

	return Chat{Message: *message}, nil
}

// Encode produces the outbound frame for e.
func Encode(e Event) ([]byte, error) {
	var out any
	switch e := e.(type) {
	case Control:
		out = controlOutput{Action: e.Action, Time: e.Time}
	case Chat:
		out = chatOutput{Message: e.Message}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}

	frame, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return frame, nil
}

// IsFatal reports whether err must close the connection that produced it.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}
