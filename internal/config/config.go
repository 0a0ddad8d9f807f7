// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hellblazer/luciferase/pkg/log"
	"github.com/hellblazer/luciferase/pkg/schema"
)

// Keys holds the process-wide forest configuration, populated by Init.
// Callers that never load a config file get the defaults from schema.Default().
var Keys schema.ForestConfig = schema.Default()

// Init reads, validates and decodes the forest config file at path into Keys.
// A missing file is not an error: the defaults already in Keys are used.
func Init(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("config: %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("config: validate %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}

	if Keys.MaxEntitiesPerNode <= 0 {
		return fmt.Errorf("config: max-entities-per-node must be positive, got %d", Keys.MaxEntitiesPerNode)
	}
	if Keys.MaxDepth <= 0 || Keys.MaxDepth > 21 {
		return fmt.Errorf("config: max-depth must be in (0, 21], got %d", Keys.MaxDepth)
	}

	return nil
}

// Validate checks an arbitrary sub-component config blob (e.g. the NATS or
// checkpoint section carried separately from the main forest config file)
// against its own inline JSON schema.
func Validate(componentSchema string, instance json.RawMessage) error {
	return validateAgainst(componentSchema, instance)
}
