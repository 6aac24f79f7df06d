package repository

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

// ocr_raw_data is consumed by the reconciliation views downstream, so the
// snapshot is validated against this schema before it is written.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tracking_id", "amount", "raw_text"],
  "properties": {
    "tracking_id": {"type": ["string", "null"], "pattern": "^(EZ|JO)[A-Z0-9]+$"},
    "amount": {"type": ["number", "null"], "minimum": 0},
    "raw_text": {"type": "string"}
  },
  "additionalProperties": false
}`

var compiledSnapshotSchema = jsonschema.MustCompileString("ocr_raw_data.json", snapshotSchema)

// marshalSnapshot serializes the provenance payload after schema validation.
func marshalSnapshot(extraction entity.OCRResult) ([]byte, error) {
	raw, err := json.Marshal(extraction.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := compiledSnapshotSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("snapshot schema: %w", err)
	}
	return raw, nil
}
