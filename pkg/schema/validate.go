// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigSchema is the JSON schema for ForestConfig, inlined rather than
// loaded from an embedded file (there is exactly one schema here, unlike
// the multi-kind job/cluster/metrics schemas it is adapted from).
const ConfigSchema = `{
	"type": "object",
	"properties": {
		"max-entities-per-node": {
			"description": "Entity count per node above which the node subdivides.",
			"type": "integer",
			"minimum": 1
		},
		"max-depth": {
			"description": "Maximum refinement level, 1-21.",
			"type": "integer",
			"minimum": 1,
			"maximum": 21
		},
		"spanning-policy": {
			"description": "How multi-node-spanning entities are recorded.",
			"type": "string",
			"enum": ["none", "center", "full_bounds"]
		},
		"max-refinement-level": {
			"type": "integer",
			"minimum": 1,
			"maximum": 21
		},
		"heartbeat-interval-ms": {
			"type": "integer",
			"minimum": 1
		},
		"heartbeat-timeout-ms": {
			"type": "integer",
			"minimum": 1
		},
		"barrier-timeout-ms": {
			"type": "integer",
			"minimum": 1
		},
		"failure-confirmation-ms": {
			"type": "integer",
			"minimum": 1
		},
		"max-retries": {
			"type": "integer",
			"minimum": 0
		},
		"cascading-threshold": {
			"type": "integer",
			"minimum": 1
		},
		"recovery-timeout-ms": {
			"type": "integer",
			"minimum": 1
		},
		"enable-ghost-validation": {
			"type": "boolean"
		},
		"alert-thresholds": {
			"type": "object",
			"properties": {
				"failed-partition-percent": {"type": "number"},
				"recovery-success-rate-floor": {"type": "number"},
				"detection-latency-ceiling-ms": {"type": "integer"},
				"recovery-latency-ceiling-ms": {"type": "integer"},
				"expression": {"type": "string"}
			}
		},
		"nats": {
			"type": "object",
			"properties": {
				"address": {"type": "string"},
				"username": {"type": "string"},
				"password": {"type": "string"},
				"creds-file-path": {"type": "string"}
			}
		},
		"checkpoint": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"path": {"type": "string"}
			}
		}
	}
}`

// Validate checks raw (a JSON-encoded ForestConfig) against ConfigSchema.
func Validate(raw json.RawMessage) error {
	sch, err := jsonschema.CompileString("forest-config.json", ConfigSchema)
	if err != nil {
		return fmt.Errorf("schema: compile: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("schema: decode instance: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	return nil
}
