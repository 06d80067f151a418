package genericmsg

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/google/uuid"
)

// Field numbers of GenericMessage and its nested Text message.
const (
	fieldMessageID = 1
	fieldText      = 2

	fieldTextContent = 1
)

// Message is a decoded GenericMessage carrying a text payload.
type Message struct {
	MessageID string
	Text      string
}

// NewText returns a Message wrapping text under a fresh message id.
func NewText(text string) Message {
	return Message{MessageID: uuid.NewString(), Text: text}
}

// Marshal encodes m into protobuf wire format.
func Marshal(m Message) []byte {
	var text []byte
	text = protowire.AppendTag(text, fieldTextContent, protowire.BytesType)
	text = protowire.AppendString(text, m.Text)

	var out []byte
	out = protowire.AppendTag(out, fieldMessageID, protowire.BytesType)
	out = protowire.AppendString(out, m.MessageID)
	out = protowire.AppendTag(out, fieldText, protowire.BytesType)
	out = protowire.AppendBytes(out, text)
	return out
}

// Unmarshal decodes protobuf wire format into a Message. Unknown fields are
// skipped, so envelopes from newer peers still decode.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldMessageID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Message{}, fmt.Errorf("malformed message id: %w", protowire.ParseError(n))
			}
			m.MessageID = v
			b = b[n:]
		case num == fieldText && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, fmt.Errorf("malformed text: %w", protowire.ParseError(n))
			}
			content, err := unmarshalText(v)
			if err != nil {
				return Message{}, err
			}
			m.Text = content
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if m.MessageID == "" {
		return Message{}, errors.New("missing message id")
	}
	return m, nil
}

func unmarshalText(b []byte) (string, error) {
	var content string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", fmt.Errorf("malformed text tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldTextContent && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", fmt.Errorf("malformed text content: %w", protowire.ParseError(n))
			}
			content = v
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return "", fmt.Errorf("malformed text field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return content, nil
}
