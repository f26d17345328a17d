package domain

import "encoding/json"

// ConnectionData is the outcome of parsing a connection's opaque data blob.
// Fields is set when the blob was valid JSON, otherwise Raw carries the blob
// verbatim and the caller treats it as an opaque string.
type ConnectionData struct {
	Fields map[string]any
	Raw    string
}

func ParseConnectionData(blob string) ConnectionData {
	var fields map[string]any
	if err := json.Unmarshal([]byte(blob), &fields); err != nil {
		return ConnectionData{Raw: blob}
	}
	return ConnectionData{Fields: fields}
}

func (d ConnectionData) IsStructured() bool { return d.Fields != nil }

// String returns the named field when the blob was structured, "" otherwise.
func (d ConnectionData) String(key string) string {
	if d.Fields == nil {
		return ""
	}
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return ""
}
