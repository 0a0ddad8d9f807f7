// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package balance

import (
	"encoding/binary"
	"fmt"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// Wire layout is little-endian throughout, identical byte-for-byte
// across ranks, except for the embedded sfckey.Key blobs which carry
// their own fixed internal format (see sfckey.(Key).MarshalBinary).

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func takeUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("balance: truncated uint32")
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

func takeInt64(data []byte) (int64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("balance: truncated int64")
	}
	return int64(binary.LittleEndian.Uint64(data[:8])), data[8:], nil
}

func encodeViolation(buf []byte, v Violation) ([]byte, error) {
	localBytes, err := v.LocalKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode local key: %w", err)
	}
	ghostBytes, err := v.GhostKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode ghost key: %w", err)
	}
	buf = append(buf, localBytes...)
	buf = append(buf, v.LocalLevel)
	buf = append(buf, ghostBytes...)
	buf = append(buf, v.GhostLevel)
	buf = appendUint32(buf, v.SourceRank)
	return buf, nil
}

func decodeViolation(data []byte) (Violation, []byte, error) {
	if len(data) < keyWireSize+1+keyWireSize+1 {
		return Violation{}, nil, fmt.Errorf("balance: truncated violation")
	}
	var v Violation
	if err := v.LocalKey.UnmarshalBinary(data[:keyWireSize]); err != nil {
		return Violation{}, nil, fmt.Errorf("decode local key: %w", err)
	}
	data = data[keyWireSize:]
	v.LocalLevel = data[0]
	data = data[1:]
	if err := v.GhostKey.UnmarshalBinary(data[:keyWireSize]); err != nil {
		return Violation{}, nil, fmt.Errorf("decode ghost key: %w", err)
	}
	data = data[keyWireSize:]
	v.GhostLevel = data[0]
	data = data[1:]
	rank, rest, err := takeUint32(data)
	if err != nil {
		return Violation{}, nil, err
	}
	v.SourceRank = rank
	return v, rest, nil
}

const keyWireSize = 18

// EncodeRequest serializes a RefinementRequest.
func EncodeRequest(req RefinementRequest) ([]byte, error) {
	buf := make([]byte, 0, 16+len(req.Violations)*(2*keyWireSize+6))
	buf = appendUint32(buf, req.RequesterRank)
	buf = appendUint32(buf, req.Round)
	buf = appendInt64(buf, req.TimestampMs)
	buf = appendUint32(buf, uint32(len(req.Violations)))
	var err error
	for _, v := range req.Violations {
		buf, err = encodeViolation(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeRequest deserializes bytes produced by EncodeRequest.
func DecodeRequest(data []byte) (RefinementRequest, error) {
	var req RefinementRequest
	rank, rest, err := takeUint32(data)
	if err != nil {
		return req, err
	}
	req.RequesterRank = rank

	round, rest, err := takeUint32(rest)
	if err != nil {
		return req, err
	}
	req.Round = round

	ts, rest, err := takeInt64(rest)
	if err != nil {
		return req, err
	}
	req.TimestampMs = ts

	count, rest, err := takeUint32(rest)
	if err != nil {
		return req, err
	}
	req.Violations = make([]Violation, 0, count)
	for i := uint32(0); i < count; i++ {
		var v Violation
		v, rest, err = decodeViolation(rest)
		if err != nil {
			return req, err
		}
		req.Violations = append(req.Violations, v)
	}
	return req, nil
}

// EncodeResponse serializes a RefinementResponse.
func EncodeResponse(resp RefinementResponse) ([]byte, error) {
	buf := make([]byte, 0, 8+len(resp.Refined)*keyWireSize)
	buf = appendUint32(buf, resp.RequesterRank)
	buf = appendUint32(buf, resp.Round)
	buf = appendUint32(buf, uint32(len(resp.Refined)))
	for _, k := range resp.Refined {
		kb, err := k.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode refined key: %w", err)
		}
		buf = append(buf, kb...)
	}
	return buf, nil
}

// DecodeResponse deserializes bytes produced by EncodeResponse.
func DecodeResponse(data []byte) (RefinementResponse, error) {
	var resp RefinementResponse
	rank, rest, err := takeUint32(data)
	if err != nil {
		return resp, err
	}
	resp.RequesterRank = rank

	round, rest, err := takeUint32(rest)
	if err != nil {
		return resp, err
	}
	resp.Round = round

	count, rest, err := takeUint32(rest)
	if err != nil {
		return resp, err
	}
	resp.Refined = make([]sfckey.Key, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < keyWireSize {
			return resp, fmt.Errorf("balance: truncated refined key")
		}
		var k sfckey.Key
		if err := k.UnmarshalBinary(rest[:keyWireSize]); err != nil {
			return resp, fmt.Errorf("decode refined key: %w", err)
		}
		resp.Refined = append(resp.Refined, k)
		rest = rest[keyWireSize:]
	}
	return resp, nil
}
