// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nats

import (
	"encoding/json"

	"github.com/hellblazer/luciferase/internal/config"
	"github.com/hellblazer/luciferase/pkg/log"
	"github.com/hellblazer/luciferase/pkg/schema"
)

// Keys holds the global NATS configuration loaded via Init.
var Keys schema.NatsConfig

const ConfigSchema = `{
    "type": "object",
    "description": "Configuration for NATS messaging client.",
    "properties": {
        "address": {
            "description": "Address of the NATS server (e.g., 'nats://localhost:4222').",
            "type": "string"
        },
        "username": {
            "description": "Username for NATS authentication (optional).",
            "type": "string"
        },
        "password": {
            "description": "Password for NATS authentication (optional).",
            "type": "string"
        },
        "creds-file-path": {
            "description": "Path to NATS credentials file for authentication (optional).",
            "type": "string"
        }
    },
    "required": ["address"]
}`

// Init validates and decodes rawConfig into the global Keys.
func Init(rawConfig json.RawMessage) error {
	if rawConfig == nil {
		return nil
	}

	if err := config.Validate(ConfigSchema, rawConfig); err != nil {
		return err
	}

	if err := json.Unmarshal(rawConfig, &Keys); err != nil {
		log.Errorf("nats: failed to decode config: %s", err.Error())
		return err
	}

	return nil
}
