package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Both JSON codecs produce the same wire format, so segments written by one
// can be read by the other. JSON exists for callers that want to avoid the
// go-json dependency at read time.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly written segments and snapshots.
var Default Codec = GoJSON{}
