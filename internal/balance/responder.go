// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"fmt"

	"github.com/hellblazer/luciferase/internal/forest"
	"github.com/hellblazer/luciferase/internal/sfckey"
)

// HandleRequest answers an incoming RefinementRequest wire frame on behalf
// of the local Forest, forcing the node each reported violation names as
// its GhostKey (owned here, in the partition for the violation's
// SourceRank) to subdivide so the requester's next 2:1 check sees a
// narrower gap. It
// returns the encoded RefinementResponse frame a PeerTransport should
// deliver back to the requester.
func HandleRequest(f *forest.Forest, data []byte) ([]byte, error) {
	req, err := DecodeRequest(data)
	if err != nil {
		return nil, fmt.Errorf("balance: decode request: %w", err)
	}

	var refined []sfckey.Key
	for _, v := range req.Violations {
		p, err := f.Partition(v.SourceRank)
		if err != nil {
			continue
		}
		children, err := p.Index.ForceSubdivide(v.GhostKey)
		if err != nil {
			continue
		}
		refined = append(refined, children...)
	}

	resp := RefinementResponse{RequesterRank: req.RequesterRank, Round: req.Round, Refined: refined}
	return EncodeResponse(resp)
}
