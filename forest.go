// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package luciferase wires every subsystem package into a runnable forest
// node: spatial index, forest topology, ghost-layer sync, fault detector,
// recovery orchestrator, cross-partition balancer, status monitor, and an
// optional persisted checkpoint store, all driven over a caller-supplied
// NATS client. There is no CLI surface here (spec.md §6): embedding code
// constructs a Service and owns its lifecycle.
package luciferase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/gops/agent"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/hellblazer/luciferase/internal/balance"
	"github.com/hellblazer/luciferase/internal/checkpoint"
	"github.com/hellblazer/luciferase/internal/clock"
	"github.com/hellblazer/luciferase/internal/fault"
	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/ghost"
	"github.com/hellblazer/luciferase/internal/recovery"
	"github.com/hellblazer/luciferase/internal/redistribute"
	"github.com/hellblazer/luciferase/internal/spatialindex"
	"github.com/hellblazer/luciferase/internal/status"
	"github.com/hellblazer/luciferase/pkg/log"
	natstransport "github.com/hellblazer/luciferase/pkg/nats"
	"github.com/hellblazer/luciferase/pkg/schema"
)

// ghostSyncSubjectPrefix/balanceRefineSubjectPrefix namespace the NATS
// request/reply subjects a peer publishes a rank's sync/refinement
// requests to; each Service subscribes under its own rank's subjects.
const (
	ghostSyncSubjectPrefix     = "luciferase.ghost.sync."
	balanceRefineSubjectPrefix = "luciferase.balance.refine."
)

func ghostSyncSubject(rank uint32) string {
	return ghostSyncSubjectPrefix + strconv.FormatUint(uint64(rank), 10)
}

func balanceRefineSubject(rank uint32) string {
	return balanceRefineSubjectPrefix + strconv.FormatUint(uint64(rank), 10)
}

// natsPeerTransport adapts pkg/nats.Client.Request to both
// internal/ghost.PeerTransport and internal/balance.PeerTransport (two
// structurally identical but intentionally distinct interfaces, one per
// protocol, so neither package needs to import the other's wire format).
type natsPeerTransport struct {
	client        *natstransport.Client
	subjectPrefix string
	timeout       time.Duration
}

func (t *natsPeerTransport) Request(ctx context.Context, peerRank uint32, req []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	subject := t.subjectPrefix + strconv.FormatUint(uint64(peerRank), 10)
	return t.client.Request(subject, req, reqCtx)
}

// Options tunes a Service's optional behavior.
type Options struct {
	// EnableGops starts github.com/google/gops/agent for runtime
	// diagnostics, matching the teacher's own opt-in -gops flag.
	EnableGops bool
}

// Service is one locally hosted partition's fully wired runtime: a
// Forest, fault detector, recovery orchestrator, cross-partition
// balancer, status monitor, and optional checkpoint store, all driven
// over a shared NATS connection.
type Service struct {
	Rank       uint32
	Forest     *forest.Forest
	Faults     *fault.Manager
	Recovery   *recovery.Orchestrator
	Status     *status.Monitor
	Checkpoint *checkpoint.Store

	client    *natstransport.Client
	stopSweep func()
	stopSync  func()
}

// NewService wires a Service for rank, abutting neighbors, over client.
// client's lifecycle (Connect/Close) remains the caller's responsibility;
// NewService only registers subscriptions on it.
func NewService(cfg schema.ForestConfig, rank uint32, neighbors []uint32, client *natstransport.Client, opts Options) (*Service, error) {
	if opts.EnableGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return nil, fmt.Errorf("luciferase: gops/agent.Listen: %w", err)
		}
	}

	ghostTransport := &natsPeerTransport{client: client, subjectPrefix: ghostSyncSubjectPrefix, timeout: time.Duration(cfg.HeartbeatTimeoutMs) * time.Millisecond}
	balanceTransport := &natsPeerTransport{client: client, subjectPrefix: balanceRefineSubjectPrefix, timeout: time.Duration(cfg.BarrierTimeoutMs) * time.Millisecond}

	indexCfg := spatialindex.Config{MaxEntitiesPerNode: cfg.MaxEntitiesPerNode, MaxDepth: uint8(cfg.MaxDepth)}
	f := forest.New(indexCfg, ghostTransport)
	if _, err := f.AddPartition(uuid.New(), rank, neighbors); err != nil {
		return nil, fmt.Errorf("luciferase: AddPartition: %w", err)
	}

	faultCfg := fault.Config{
		FailureConfirmationMs:   cfg.FailureConfirmationMs,
		BarrierTimeoutThreshold: 2,
		SyncFailureThreshold:    2,
	}
	faultMgr := fault.NewManager(faultCfg, clock.System)
	faultMgr.Detector(rank)
	for _, n := range neighbors {
		faultMgr.Detector(n)
	}

	statusMon, err := status.New(cfg.AlertThresholds, clock.System)
	if err != nil {
		return nil, fmt.Errorf("luciferase: status.New: %w", err)
	}
	faultMgr.Detector(rank).AddListener(statusMon.OnFaultTransition)
	for _, n := range neighbors {
		faultMgr.Detector(n).AddListener(statusMon.OnFaultTransition)
	}

	var ckptStore *checkpoint.Store
	if cfg.Checkpoint.Enabled {
		ckptStore, err = checkpoint.Open(cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("luciferase: checkpoint.Open: %w", err)
		}
	}

	// MaxRounds approximates the spec's log2(partition_count)+2 guidance
	// from what this node knows at construction time: its own neighbor
	// count.
	exchanger := balance.NewExchanger(rank, balanceTransport, balance.DefaultConfig(len(neighbors)+2))
	recoveryCfg := recovery.Config{
		MaxRetries:     cfg.MaxRetries,
		BarrierTimeout: time.Duration(cfg.BarrierTimeoutMs) * time.Millisecond,
	}
	if cfg.MaxRetries > 0 {
		recoveryCfg.RetryInterval = time.Duration(cfg.RecoveryTimeoutMs) * time.Millisecond / time.Duration(cfg.MaxRetries)
	}
	alert := func(reason string) { log.Warnf("recovery: %s", reason) }
	orchestrator := recovery.New(recoveryCfg, f, faultMgr, redistribute.New(), balance.NewForestBalancer(exchanger), nil, alert)

	svc := &Service{
		Rank:       rank,
		Forest:     f,
		Faults:     faultMgr,
		Recovery:   orchestrator,
		Status:     statusMon,
		Checkpoint: ckptStore,
		client:     client,
	}

	faultMgr.Detector(rank).AddListener(func(ev fault.PartitionChangeEvent) {
		if ev.New != fault.Failed {
			return
		}
		start := time.Now()
		go func() {
			err := orchestrator.Recover(context.Background(), ev.PartitionID)
			svc.onRecoveryOutcome(ev.PartitionID, err == nil, time.Since(start))
		}()
	})

	if err := svc.registerGhostSyncResponder(); err != nil {
		return nil, fmt.Errorf("luciferase: ghost sync responder: %w", err)
	}
	if err := svc.registerBalanceResponder(); err != nil {
		return nil, fmt.Errorf("luciferase: balance responder: %w", err)
	}

	stopSweep, err := faultMgr.StartSweep(time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("luciferase: fault.StartSweep: %w", err)
	}
	svc.stopSweep = stopSweep
	svc.stopSync = startGhostSyncLoop(f, time.Duration(cfg.HeartbeatIntervalMs)*time.Millisecond)

	return svc, nil
}

func (s *Service) onRecoveryOutcome(rank uint32, success bool, elapsed time.Duration) {
	s.Status.OnRecoveryOutcome(rank, success, elapsed.Milliseconds())
	if s.Checkpoint == nil || !success {
		return
	}
	if err := s.Checkpoint.Delete(context.Background(), rank); err != nil {
		log.Warnf("checkpoint: delete after recovery: %v", err)
	}
}

// Close stops the background sweep/sync loops and the checkpoint store.
// It does not close the NATS client, which the caller owns.
func (s *Service) Close() error {
	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.stopSync != nil {
		s.stopSync()
	}
	if s.Checkpoint != nil {
		return s.Checkpoint.Close()
	}
	return nil
}

// registerGhostSyncResponder answers ghost-sync pull requests on rank's
// subject: any payload in, the local partition's materialized node keys
// out, encoded as ghost.Element values with this rank as origin. This is
// a "replicate everything materialized" simplification; a production
// deployment would instead filter to nodes abutting the requester.
func (s *Service) registerGhostSyncResponder() error {
	conn := s.client.Connection()
	_, err := conn.Subscribe(ghostSyncSubject(s.Rank), func(msg *nats.Msg) {
		p, err := s.Forest.Partition(s.Rank)
		if err != nil {
			return
		}
		keys := p.Index.NodeKeys()
		elems := make([]ghost.Element, 0, len(keys))
		for _, k := range keys {
			elems = append(elems, ghost.Element{OriginRank: s.Rank, Key: k, Level: k.Level()})
		}
		data, err := ghost.EncodeElements(elems)
		if err != nil {
			log.Warnf("ghost responder: encode: %v", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Warnf("ghost responder: respond: %v", err)
		}
	})
	return err
}

// registerBalanceResponder answers cross-partition refinement requests on
// rank's subject by forcing each reported violation's local node to
// subdivide, replying with the resulting child keys.
func (s *Service) registerBalanceResponder() error {
	conn := s.client.Connection()
	_, err := conn.Subscribe(balanceRefineSubject(s.Rank), func(msg *nats.Msg) {
		resp, err := balance.HandleRequest(s.Forest, msg.Data)
		if err != nil {
			log.Warnf("balance responder: %v", err)
			return
		}
		if err := msg.Respond(resp); err != nil {
			log.Warnf("balance responder: respond: %v", err)
		}
	})
	return err
}

// startGhostSyncLoop drives a periodic ghost sync round for every locally
// hosted partition, returning a stop func.
func startGhostSyncLoop(f *forest.Forest, interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.SyncAll(context.Background())
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
