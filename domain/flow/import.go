package flow

import (
	"docflow/bizerror"
	"docflow/session"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "trigger": {
      "type": "object",
      "properties": {
        "documentTypes": {"type": "array", "items": {"type": "string"}},
        "departments": {"type": "array", "items": {"type": "string"}},
        "sensitivities": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "kind", "assigneeKind", "assigneeValue"],
        "properties": {
          "order": {"type": "integer", "minimum": 0},
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["review", "approve", "sign", "annotate", "verify", "route"]},
          "assigneeKind": {"enum": ["user", "role", "department"]},
          "assigneeValue": {"type": "string", "minLength": 1},
          "optional": {"type": "boolean"},
          "slaHours": {"type": "integer", "minimum": 0},
          "parallelGroup": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  }
}`

var definitionSchemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// ImportDefinition defines a workflow from a json document checked against the definition schema.
func ImportDefinition(data []byte, s *session.Session) (*WorkflowDetail, error) {
	creation, err := ParseDefinitionDocument(data)
	if err != nil {
		return nil, err
	}
	return DefineWorkflowFunc(creation, s)
}

func ParseDefinitionDocument(data []byte) (*WorkflowCreation, error) {
	result, err := gojsonschema.Validate(definitionSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bizerror.ErrInvalidDefinition, err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for i, e := range result.Errors() {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(e.String())
		}
		return nil, fmt.Errorf("%w: %s", bizerror.ErrInvalidDefinition, sb.String())
	}

	creation := WorkflowCreation{}
	if err := json.Unmarshal(data, &creation); err != nil {
		return nil, fmt.Errorf("%w: %v", bizerror.ErrInvalidDefinition, err)
	}
	return &creation, nil
}
