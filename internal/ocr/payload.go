package ocr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// payloadSchema pins down the minimum the OCR engine must return. The
// engine is free to add fields (confidence, boxes, timings); they ride
// along in Result.Raw untouched.
const payloadSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string"}
	},
	"required": ["text"]
}`

var compiledPayloadSchema = jsonschema.MustCompileString("ocr-payload.json", payloadSchema)

// decodePayload validates the raw response and extracts the text.
func decodePayload(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode ocr payload: %w", err)
	}
	if err := compiledPayloadSchema.Validate(v); err != nil {
		return "", fmt.Errorf("ocr payload does not match schema: %w", err)
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("decode ocr payload: %w", err)
	}
	return strings.TrimRight(p.Text, "\n"), nil
}
