package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError is a malformed generation envelope: the generator answered, but
// the fenced JSON inside response_text could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing generation envelope: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeGeneratedReply unwraps the generator's envelope: response_text is a
// markdown-fenced JSON document whose own response_text field carries the
// reply with literal \n sequences instead of newlines.
func DecodeGeneratedReply(envelope string) (string, error) {
	text := strings.TrimSpace(envelope)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var inner struct {
		ResponseText *string `json:"response_text"`
	}
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		return "", &ParseError{Err: err}
	}
	if inner.ResponseText == nil {
		return "", &ParseError{Err: fmt.Errorf("inner response_text missing")}
	}
	return strings.ReplaceAll(*inner.ResponseText, `\n`, "\n"), nil
}
