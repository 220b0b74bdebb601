package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Code is a backend response code normalized to its decimal string form.
// The backend sends it as a JSON number on some endpoints and as a string on
// others; both decode to the same Code.
type Code string

// CodeSuccess is the single code meaning "operation succeeded".
const CodeSuccess Code = "2002500"

// IsSuccess reports whether c is the success sentinel.
func (c Code) IsSuccess() bool {
	return c == CodeSuccess
}

func (c Code) String() string {
	if c == "" {
		return "<none>"
	}
	return string(c)
}

// UnmarshalJSON accepts numbers and strings.
func (c *Code) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return fmt.Errorf("api: responseCode: %w", err)
	}
	*c = Code(s)
	return nil
}

// ID is an identifier the backend may send as a number or a string.
type ID string

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

func decodeScalar(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("expected number or string, got %s", trimmed)
	}
	return n.String(), nil
}
