// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package status

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// expressionEvaluator compiles an operator-supplied boolean expression
// once at construction and evaluates it against a Snapshot on every tick,
// the same compile-once/run-many pattern internal/tagger's classifyJob.go
// uses for job classification rules.
type expressionEvaluator struct {
	program *vm.Program
}

func newExpressionEvaluator(exprSrc string) (*expressionEvaluator, error) {
	if exprSrc == "" {
		return &expressionEvaluator{}, nil
	}
	program, err := expr.Compile(exprSrc, expr.AsBool(), expr.Env(snapshotEnv{}))
	if err != nil {
		return nil, fmt.Errorf("status: compiling alert expression: %w", err)
	}
	return &expressionEvaluator{program: program}, nil
}

// snapshotEnv is the expr evaluation environment: a Snapshot's exported
// fields addressed by name in the expression source.
type snapshotEnv struct {
	TotalPartitions       int
	HealthyPartitions     int
	SuspectedPartitions   int
	FailedPartitions      int
	RecoveringPartitions  int
	RecoverySuccesses     int64
	RecoveryFailures      int64
	RecoverySuccessRate   float64
	AvgDetectionLatencyMs float64
	AvgRecoveryLatencyMs  float64
}

func (e *expressionEvaluator) Run(snap Snapshot) (bool, error) {
	if e.program == nil {
		return false, nil
	}
	env := snapshotEnv{
		TotalPartitions:       snap.TotalPartitions,
		HealthyPartitions:     snap.HealthyPartitions,
		SuspectedPartitions:   snap.SuspectedPartitions,
		FailedPartitions:      snap.FailedPartitions,
		RecoveringPartitions:  snap.RecoveringPartitions,
		RecoverySuccesses:     snap.RecoverySuccesses,
		RecoveryFailures:      snap.RecoveryFailures,
		RecoverySuccessRate:   snap.RecoverySuccessRate,
		AvgDetectionLatencyMs: snap.AvgDetectionLatencyMs,
		AvgRecoveryLatencyMs:  snap.AvgRecoveryLatencyMs,
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("status: running alert expression: %w", err)
	}
	fired, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("status: alert expression must evaluate to bool, got %T", out)
	}
	return fired, nil
}
