package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeTranscript renders messages as the JSON array stored per row.
func EncodeTranscript(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeTranscript parses a stored blob. Anything that is not a non-empty
// array of known roles starting with the system message is ErrCorruptTranscript.
func DecodeTranscript(blob string) ([]Message, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptTranscript)
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(blob), &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTranscript, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrCorruptTranscript)
	}
	if msgs[0].Role != RoleSystem {
		return nil, fmt.Errorf("%w: first message has role %q", ErrCorruptTranscript, msgs[0].Role)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has role %q", ErrCorruptTranscript, i, m.Role)
		}
	}
	return msgs, nil
}
