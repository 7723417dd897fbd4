// Package ingest decodes critique/response record dumps produced by the
// agent-orchestration layer. Dumps are validated against a JSON schema
// before any record reaches the ledger, so malformed enum values fail fast
// at the boundary instead of being silently coerced.
package ingest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/rounds"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// RoundSpec declares one debate round in a dump.
type RoundSpec struct {
	Round int         `json:"round"`
	Type  rounds.Type `json:"round_type"`
}

// SectionContext carries per-section rendering context and an optional
// seeded base score.
type SectionContext struct {
	WordCount     int     `json:"word_count,omitempty"`
	RevisionCount int     `json:"revision_count,omitempty"`
	BaseScore     float64 `json:"base_score,omitempty"`
}

// Dump is one run's worth of structured debate records.
type Dump struct {
	Rounds    []RoundSpec        `json:"rounds"`
	Critiques []*debate.Critique `json:"critiques"`
	Responses []*debate.Response `json:"responses,omitempty"`

	Sections map[string]SectionContext `json:"sections,omitempty"`

	// Flags are document-level risk flags attached by the orchestration
	// layer (missing required content, scope mismatch).
	Flags []scoring.RiskFlag `json:"flags,omitempty"`

	ConsensusReached bool `json:"consensus_reached,omitempty"`
}

const dumpSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rounds", "critiques"],
  "properties": {
    "rounds": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["round", "round_type"],
        "properties": {
          "round": {"type": "integer", "minimum": 0},
          "round_type": {"enum": ["BLUE_BUILD", "RED_ATTACK", "BLUE_DEFENSE", "SYNTHESIS"]}
        }
      }
    },
    "critiques": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["critique_id", "section", "challenge_type", "severity", "round"],
        "properties": {
          "critique_id": {"type": "string", "minLength": 1},
          "agent_name": {"type": "string"},
          "section": {"type": "string", "minLength": 1},
          "challenge_type": {"type": "string", "minLength": 1},
          "severity": {"enum": ["CRITICAL", "MAJOR", "MINOR", "OBSERVATION"]},
          "round": {"type": "integer", "minimum": 0}
        }
      }
    },
    "responses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["response_id", "critique_id", "disposition", "round"],
        "properties": {
          "response_id": {"type": "string", "minLength": 1},
          "critique_id": {"type": "string", "minLength": 1},
          "agent_name": {"type": "string"},
          "disposition": {"type": "string", "minLength": 1},
          "round": {"type": "integer", "minimum": 0}
        }
      }
    },
    "sections": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "word_count": {"type": "integer", "minimum": 0},
          "revision_count": {"type": "integer", "minimum": 0},
          "base_score": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "flags": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "consensus_reached": {"type": "boolean"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("dump.schema.json", dumpSchema)
	})
	return schema, schemaErr
}

// Decode validates raw dump JSON against the schema and unmarshals it.
func Decode(data []byte) (*Dump, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("dump schema failed to compile: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("dump is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("dump failed schema validation: %w", err)
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	return &dump, nil
}
