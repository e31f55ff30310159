package journal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema is returned when a stored journal does not match the journal format.
var ErrSchema = errors.New("journal does not match schema")

const journalSchema = `{
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {"type": "integer"},
    "entries": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["removed", "createdAt", "type"],
        "properties": {
          "removed": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["role", "ts"],
              "properties": {
                "role": {"enum": ["user", "assistant"]},
                "content": {"type": ["string", "array", "object", "null"]},
                "ts": {"type": "integer"}
              }
            }
          },
          "boundary": {
            "type": "object",
            "properties": {
              "firstKeptTs": {"type": "integer"},
              "lastKeptTs": {"type": "integer"},
              "summaryTs": {"type": "integer"}
            }
          },
          "createdAt": {"type": "integer"},
          "type": {"enum": ["manual", "auto"]}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(journalSchema)

// validate checks raw journal JSON against the schema.
func validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !result.Valid() {
		var errorMsgs []string
		for _, e := range result.Errors() {
			errorMsgs = append(errorMsgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(errorMsgs, "; "))
	}
	return nil
}
