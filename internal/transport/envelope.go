package transport

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var errMalformedEnvelope = errors.New("malformed envelope")

// envelope is the frame every wire event travels in:
//
//	{"event": "message", "data": {...}}
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

// decodeEnvelope peeks at the frame with gjson so the payload is handed on
// without a second decode.
func decodeEnvelope(frame []byte) (string, json.RawMessage, error) {
	if !gjson.ValidBytes(frame) {
		return "", nil, errMalformedEnvelope
	}
	res := gjson.GetManyBytes(frame, "event", "data")
	if res[0].Type != gjson.String || res[0].Str == "" {
		return "", nil, errMalformedEnvelope
	}
	var data json.RawMessage
	if res[1].Exists() {
		data = json.RawMessage(res[1].Raw)
	}
	return res[0].Str, data, nil
}
