package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque identifier that the backend may send either as a JSON
// string or as a JSON number. The original kind is kept so the value goes
// back on the wire exactly as it arrived.
type ID struct {
	raw     string
	numeric bool
}

// StringID returns an ID that encodes as a JSON string.
func StringID(s string) ID {
	return ID{raw: s}
}

// NumericID returns an ID that encodes as a JSON number.
func NumericID(n int64) ID {
	return ID{raw: strconv.FormatInt(n, 10), numeric: true}
}

// ParseID turns command-line or config input into an ID. Input that is a
// canonical integer becomes numeric; anything that would change when
// re-formatted, such as "007" or "+5", stays a string.
func ParseID(s string) ID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return NumericID(n)
	}
	return StringID(s)
}

func (id ID) String() string { return id.raw }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id.raw == "" }

// IsNumeric reports whether the id encodes as a JSON number.
func (id ID) IsNumeric() bool { return id.numeric }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.raw), nil
	}
	return json.Marshal(id.raw)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID{raw: n.String(), numeric: true}
	return nil
}
