package evallog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Top-level sample fields read by the decoder.
const (
	fieldID       = "id"
	fieldEpoch    = "epoch"
	fieldMessages = "messages"
)

// messagesInitialCap sizes the slot slice for typical transcripts.
const messagesInitialCap = 16

// wireMessage is the on-disk shape of a messages element.
// Pointers distinguish absent fields from empty ones.
type wireMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

// DecodeSample decodes one sample record, keeping only the messages accepted
// by keep. A nil keep retains every message.
func DecodeSample(data []byte, keep MessagePredicate) (*Sample, error) {
	return DecodeSampleReader(bytes.NewReader(data), keep)
}

// DecodeSampleReader is DecodeSample over a stream.
//
// The top-level object is walked token by token in document order. Unknown
// fields are skipped as raw bytes. Each messages element is decoded, checked,
// offered to keep, and either retained or recorded as a nil slot.
func DecodeSampleReader(r io.Reader, keep MessagePredicate) (*Sample, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	return decodeEnvelope(dec, keep)
}

func decodeEnvelope(dec *json.Decoder, keep MessagePredicate) (*Sample, error) {
	err := expectDelim(dec, '{')
	if err != nil {
		return nil, err
	}

	var (
		sample   Sample
		hasID    bool
		hasEpoch bool
	)

	for dec.More() {
		tok, tokErr := dec.Token()
		if tokErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSample, tokErr)
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", ErrMalformedSample, tok)
		}

		switch key {
		case fieldID:
			sample.ID, err = decodeID(dec)
			hasID = true
		case fieldEpoch:
			err = decodeEpoch(dec, &sample.Epoch)
			hasEpoch = true
		case fieldMessages:
			sample.Messages, err = decodeMessages(dec, keep)
		default:
			err = skipValue(dec)
		}

		if err != nil {
			return nil, err
		}
	}

	err = expectDelim(dec, '}')
	if err != nil {
		return nil, err
	}

	if !hasID {
		return nil, &MissingFieldError{Field: fieldID}
	}

	if !hasEpoch {
		return nil, &MissingFieldError{Field: fieldEpoch}
	}

	if sample.Messages == nil {
		sample.Messages = []*Message{}
	}

	return &sample, nil
}

// decodeMessages reads the messages array, applying keep to every element.
func decodeMessages(dec *json.Decoder, keep MessagePredicate) ([]*Message, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: messages: %w", ErrMalformedSample, err)
	}

	if tok == nil {
		return []*Message{}, nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("%w: messages is not an array", ErrMalformedSample)
	}

	messages := make([]*Message, 0, messagesInitialCap)

	for index := 0; dec.More(); index++ {
		wire, decodeErr := decodeWireMessage(dec)
		if decodeErr != nil {
			return nil, fmt.Errorf("%w at index %d: %w", ErrInvalidMessage, index, decodeErr)
		}

		msg, convErr := wire.toMessage()
		if convErr != nil {
			return nil, fmt.Errorf("%w at index %d: %w", ErrInvalidMessage, index, convErr)
		}

		if keep != nil && !keep(msg) {
			messages = append(messages, nil)

			continue
		}

		messages = append(messages, &msg)
	}

	err = expectDelim(dec, ']')
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// decodeWireMessage reads one array element. The raw bytes are checked for
// UTF-8 first so a bad byte is reported as such rather than as a truncated string.
func decodeWireMessage(dec *json.Decoder) (*wireMessage, error) {
	var raw json.RawMessage

	err := dec.Decode(&raw)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(raw) {
		return nil, ErrInvalidUTF8
	}

	var wire wireMessage

	err = json.Unmarshal(raw, &wire)
	if err != nil {
		return nil, err
	}

	return &wire, nil
}

func (w *wireMessage) toMessage() (Message, error) {
	if w.Role == nil {
		return Message{}, &MissingFieldError{Field: "role"}
	}

	if w.Content == nil {
		return Message{}, &MissingFieldError{Field: "content"}
	}

	role, err := ParseRole(*w.Role)
	if err != nil {
		return Message{}, err
	}

	return Message{Role: role, Content: *w.Content}, nil
}

// decodeID accepts a string id, or a numeric id kept as its decimal text.
func decodeID(dec *json.Decoder) (string, error) {
	var raw any

	err := dec.Decode(&raw)
	if err != nil {
		return "", fmt.Errorf("%w: id: %w", ErrMalformedSample, err)
	}

	switch value := raw.(type) {
	case string:
		return value, nil
	case json.Number:
		return value.String(), nil
	default:
		return "", fmt.Errorf("%w: id must be a string, got %T", ErrMalformedSample, raw)
	}
}

func decodeEpoch(dec *json.Decoder, epoch *int64) error {
	var number json.Number

	err := dec.Decode(&number)
	if err != nil {
		return fmt.Errorf("%w: epoch: %w", ErrMalformedSample, err)
	}

	value, err := number.Int64()
	if err != nil {
		return fmt.Errorf("%w: epoch %q is not an integer", ErrMalformedSample, number.String())
	}

	*epoch = value

	return nil
}

// skipValue consumes the next value without building it.
func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage

	err := dec.Decode(&raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}

	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected end of input, want %q", ErrMalformedSample, want)
		}

		return fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("%w: got %v, want %q", ErrMalformedSample, tok, want)
	}

	return nil
}
