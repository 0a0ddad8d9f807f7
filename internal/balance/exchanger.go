// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hellblazer/luciferase/internal/sfckey"
	"github.com/hellblazer/luciferase/internal/xerrors"
	"github.com/hellblazer/luciferase/pkg/log"
)

// PeerTransport sends a request to peerRank and returns its response.
// Kept local to this package, structurally identical to
// internal/ghost.PeerTransport, so balance and ghost stay independently
// testable; a production Forest wires both against the same underlying
// pkg/nats.Client.Request.
type PeerTransport interface {
	Request(ctx context.Context, peerRank uint32, req []byte) ([]byte, error)
}

// Config tunes an Exchanger's round behavior.
type Config struct {
	MaxRounds    int
	RoundTimeout time.Duration
	// RetryInterval paces round-to-round sends via a token-bucket
	// limiter; one token is minted every RetryInterval.
	RetryInterval time.Duration
}

// DefaultConfig returns the spec's default round timeout (5s, spec.md
// §4.6); MaxRounds must still be set by the caller from the partition
// count (log2(P)+2).
func DefaultConfig(maxRounds int) Config {
	return Config{MaxRounds: maxRounds, RoundTimeout: 5 * time.Second, RetryInterval: 10 * time.Millisecond}
}

// Exchanger drives the butterfly rounds for one local rank.
type Exchanger struct {
	localRank uint32
	transport PeerTransport
	checker   *Checker
	cfg       Config
	limiter   *rate.Limiter
}

// NewExchanger returns an Exchanger for localRank.
func NewExchanger(localRank uint32, transport PeerTransport, cfg Config) *Exchanger {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 1
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Millisecond
	}
	return &Exchanger{
		localRank: localRank,
		transport: transport,
		checker:   NewChecker(),
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.RetryInterval), 1),
	}
}

// Result summarizes one Run's outcome.
type Result struct {
	Refined      []sfckey.Key
	RoundsRun    int
	RemainingLen int
}

// Run checks pairs for 2:1 violations and iterates butterfly rounds
// (partner = localRank XOR 1<<round) until no violations remain or
// cfg.MaxRounds is exhausted, per spec.md §4.6.
func (e *Exchanger) Run(ctx context.Context, pairs []BoundaryPair) (Result, error) {
	violations := e.checker.Check(pairs)
	var refined []sfckey.Key
	round := 0

	for ; round < e.cfg.MaxRounds && len(violations) > 0; round++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return Result{Refined: refined, RoundsRun: round, RemainingLen: len(violations)}, err
		}

		partner := e.localRank ^ (1 << uint(round))
		mine, rest := partitionBySourceRank(violations, partner)
		if len(mine) == 0 {
			violations = rest
			continue
		}

		got, err := e.runRound(ctx, round, partner, mine)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warnf("balance: round %d to peer %d timed out, continuing with partial results", round, partner)
				violations = rest
				continue
			}
			return Result{Refined: refined, RoundsRun: round + 1, RemainingLen: len(violations)}, err
		}
		refined = append(refined, got...)
		violations = rest
	}

	return Result{Refined: refined, RoundsRun: round, RemainingLen: len(violations)}, nil
}

func partitionBySourceRank(violations []Violation, rank uint32) (matching, rest []Violation) {
	for _, v := range violations {
		if v.SourceRank == rank {
			matching = append(matching, v)
		} else {
			rest = append(rest, v)
		}
	}
	return matching, rest
}

func (e *Exchanger) runRound(ctx context.Context, round int, partner uint32, violations []Violation) ([]sfckey.Key, error) {
	req := RefinementRequest{
		RequesterRank: e.localRank,
		Round:         uint32(round),
		TimestampMs:   time.Now().UnixMilli(),
		Violations:    violations,
	}
	data, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrBalanceRoundFailed, err)
	}

	respData, err := e.send(ctx, partner, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warnf("balance: round %d request to peer %d failed, retrying once: %v", round, partner, err)
		respData, err = e.send(ctx, partner, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", xerrors.ErrPeerUnreachable, err)
		}
	}

	resp, err := DecodeResponse(respData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrBalanceRoundFailed, err)
	}
	return resp.Refined, nil
}

func (e *Exchanger) send(ctx context.Context, partner uint32, data []byte) ([]byte, error) {
	roundCtx, cancel := context.WithTimeout(ctx, e.cfg.RoundTimeout)
	defer cancel()
	return e.transport.Request(roundCtx, partner, data)
}
