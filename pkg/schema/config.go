// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// SpanningPolicy controls how entities whose bounds straddle more than one
// tetrahedron at the target level are recorded in the node store.
type SpanningPolicy string

const (
	SpanningNone       SpanningPolicy = "none"
	SpanningCenter     SpanningPolicy = "center"
	SpanningFullBounds SpanningPolicy = "full_bounds"
)

// AlertThresholds holds the operator-tunable ceilings/floors the status
// tracker evaluates on every monitoring tick.
type AlertThresholds struct {
	FailedPartitionPercent   float64 `json:"failed-partition-percent"`
	RecoverySuccessRateFloor float64 `json:"recovery-success-rate-floor"`
	DetectionLatencyCeilMs   int64   `json:"detection-latency-ceiling-ms"`
	RecoveryLatencyCeilMs    int64   `json:"recovery-latency-ceiling-ms"`
	// Expression is an optional expr-lang boolean expression evaluated
	// against a status snapshot; when it evaluates true an alert fires in
	// addition to the fixed thresholds above. Empty disables it.
	Expression string `json:"expression,omitempty"`
}

// NatsConfig configures the transport used for the butterfly exchange and
// ghost-layer sync RPCs between partitions.
type NatsConfig struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"creds-file-path,omitempty"`
}

// CheckpointConfig configures the optional sqlite-backed recovery
// checkpoint store.
type CheckpointConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ForestConfig is the root configuration surface for a Luciferase forest:
// the spatial index, the fault detector and the recovery orchestrator.
type ForestConfig struct {
	MaxEntitiesPerNode int            `json:"max-entities-per-node"`
	MaxDepth           int            `json:"max-depth"`
	SpanningPolicy     SpanningPolicy `json:"spanning-policy"`
	MaxRefinementLevel int            `json:"max-refinement-level"`

	HeartbeatIntervalMs   int64 `json:"heartbeat-interval-ms"`
	HeartbeatTimeoutMs    int64 `json:"heartbeat-timeout-ms"`
	BarrierTimeoutMs      int64 `json:"barrier-timeout-ms"`
	FailureConfirmationMs int64 `json:"failure-confirmation-ms"`
	MaxRetries            int   `json:"max-retries"`
	CascadingThreshold    int   `json:"cascading-threshold"`
	RecoveryTimeoutMs     int64 `json:"recovery-timeout-ms"`
	EnableGhostValidation bool  `json:"enable-ghost-validation"`

	AlertThresholds AlertThresholds  `json:"alert-thresholds"`
	Nats            NatsConfig       `json:"nats"`
	Checkpoint      CheckpointConfig `json:"checkpoint"`
}

// Default returns the configuration defaults named for the forest.
func Default() ForestConfig {
	return ForestConfig{
		MaxEntitiesPerNode:    10,
		MaxDepth:              21,
		SpanningPolicy:        SpanningFullBounds,
		MaxRefinementLevel:    21,
		HeartbeatIntervalMs:   500,
		HeartbeatTimeoutMs:    2000,
		BarrierTimeoutMs:      5000,
		FailureConfirmationMs: 1000,
		MaxRetries:            3,
		CascadingThreshold:    2,
		RecoveryTimeoutMs:     5000,
		EnableGhostValidation: true,
		Checkpoint: CheckpointConfig{
			Enabled: false,
			Path:    "./var/luciferase-checkpoints.db",
		},
	}
}
