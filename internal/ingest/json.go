package ingest

import (
	"encoding/json"
	"fmt"
)

// taggedChunk is the {text, metadata} object shape; a bare JSON string
// element is handled separately since it won't unmarshal into this struct.
type taggedChunk struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ParseJSON accepts a JSON array of either plain strings or
// {text, metadata} objects, and returns one Chunk per element. A mix of
// both shapes in the same array is allowed.
func ParseJSON(data []byte) ([]Chunk, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ingest: json input must be an array: %w", err)
	}

	chunks := make([]Chunk, 0, len(raw))
	for i, elem := range raw {
		var asString string
		if err := json.Unmarshal(elem, &asString); err == nil {
			if asString != "" && !isLowContent(asString) {
				chunks = append(chunks, Chunk{Text: asString})
			}
			continue
		}

		var tagged taggedChunk
		if err := json.Unmarshal(elem, &tagged); err != nil {
			return nil, fmt.Errorf("ingest: element %d is neither a string nor a {text, metadata} object: %w", i, err)
		}
		if tagged.Text == "" || isLowContent(tagged.Text) {
			continue
		}
		chunks = append(chunks, Chunk{Text: tagged.Text, Metadata: tagged.Metadata})
	}

	return chunks, nil
}
