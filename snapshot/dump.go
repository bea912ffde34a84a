package snapshot

import "encoding/json"

// Entry is one key/value pair in a Dump, in the backend's own physical
// iteration order, which is deterministic for a given sequence of
// operations.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Dump is the payload this package's Encode/Decode frame around: which
// backend produced it, and every live (key, value) pair it held at the
// moment of the snapshot. The framing format treats it as an opaque
// serialized-backend blob; JSON is
// this package's own choice of serialization for that blob, not something
// the framing format requires.
type Dump struct {
	Backend string  `json:"backend"`
	Items   []Entry `json:"items"`
}

// EncodeDump serializes dump to the bytes Encode/WriteFile expect as their
// payload argument.
func EncodeDump(dump Dump) ([]byte, error) {
	return json.Marshal(dump)
}

// DecodeDump parses bytes produced by EncodeDump (after Decode/ReadFile has
// already validated framing and checksum).
func DecodeDump(payload []byte) (Dump, error) {
	var dump Dump
	if err := json.Unmarshal(payload, &dump); err != nil {
		return Dump{}, err
	}
	return dump, nil
}
