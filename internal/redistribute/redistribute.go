// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package redistribute implements the REDISTRIBUTING phase of recovery
// (spec.md §4.5 step 5): ownership of a failed partition's keys is
// transferred to survivors, spatial proximity preferred.
package redistribute

import (
	"context"
	"fmt"
	"math"

	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/tet"
	"github.com/hellblazer/luciferase/pkg/log"
)

// Strategy transfers a failed partition's entities to the forest's
// remaining partitions. It satisfies internal/recovery.Distributor.
type Strategy struct{}

// New returns a spatial-proximity Strategy.
func New() *Strategy {
	return &Strategy{}
}

// Redistribute moves every entity owned by failedRank's partition into the
// survivor partition whose existing entities are closest, by centroid
// distance, to that entity's position. Survivors are drawn from
// failedRank's recorded neighbors when any remain active, falling back to
// every other active rank otherwise (the failed rank may have been
// surrounded entirely by other now-failed ranks).
func (s *Strategy) Redistribute(ctx context.Context, f *forest.Forest, failedRank uint32) error {
	failed, err := f.Partition(failedRank)
	if err != nil {
		return fmt.Errorf("redistribute: partition %d: %w", failedRank, err)
	}

	survivors := candidateSurvivors(f, failed.Neighbors, failedRank)
	if len(survivors) == 0 {
		return fmt.Errorf("redistribute: no surviving partition available to absorb %d", failedRank)
	}

	centroids := make(map[uint32]tet.Vec3, len(survivors))
	for _, p := range survivors {
		centroids[p.Rank] = centroidOf(p)
	}

	ids := failed.Index.EntityIDs()
	moved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := failed.Index.Lookup(id)
		if err != nil {
			continue
		}

		var level uint8
		for k := range rec.Locations {
			level = k.Level()
			break
		}

		target := nearest(rec.Position, survivors, centroids)
		if err := target.Index.Insert(id, rec.Position, level, rec.Bounds); err != nil {
			log.Warnf("redistribute: partition %d: inserting entity %d into survivor %d: %v", failedRank, id, target.Rank, err)
			continue
		}
		moved++
	}

	log.Infof("redistribute: moved %d/%d entities from partition %d to %d survivor(s)", moved, len(ids), failedRank, len(survivors))
	return nil
}

func candidateSurvivors(f *forest.Forest, neighbors []uint32, failedRank uint32) []*forest.Partition {
	out := make([]*forest.Partition, 0, len(neighbors))
	for _, rank := range neighbors {
		if rank == failedRank {
			continue
		}
		if p, err := f.Partition(rank); err == nil {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, rank := range f.Ranks() {
		if rank == failedRank {
			continue
		}
		p, err := f.Partition(rank)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// centroidOf averages a partition's current entity positions; an empty
// partition centroids at the origin, which only matters relative to other
// candidates' centroids.
func centroidOf(p *forest.Partition) tet.Vec3 {
	ids := p.Index.EntityIDs()
	if len(ids) == 0 {
		return tet.Vec3{}
	}
	var sx, sy, sz int64
	n := 0
	for _, id := range ids {
		rec, err := p.Index.Lookup(id)
		if err != nil {
			continue
		}
		sx += rec.Position.X
		sy += rec.Position.Y
		sz += rec.Position.Z
		n++
	}
	if n == 0 {
		return tet.Vec3{}
	}
	return tet.Vec3{X: sx / int64(n), Y: sy / int64(n), Z: sz / int64(n)}
}

func nearest(pos tet.Vec3, survivors []*forest.Partition, centroids map[uint32]tet.Vec3) *forest.Partition {
	best := survivors[0]
	bestDist := math.MaxFloat64
	for _, p := range survivors {
		d := squaredDistance(pos, centroids[p.Rank])
		if d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best
}

func squaredDistance(a, b tet.Vec3) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return dx*dx + dy*dy + dz*dz
}
