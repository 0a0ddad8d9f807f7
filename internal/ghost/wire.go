// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ghost

import (
	"encoding/binary"
	"fmt"

	"github.com/hellblazer/luciferase/internal/sfckey"
)

// EncodeElements serializes a slice of ghost elements using the fixed-layout
// frame from spec.md's ghost wire format: a u32 count followed by, for each
// element, (rank:u32, key:18 bytes, payload_len:u32, payload:bytes).
func EncodeElements(elems []Element) ([]byte, error) {
	var buf []byte
	buf = appendUint32(buf, uint32(len(elems)))
	for _, e := range elems {
		keyBytes, err := e.Key.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("ghost: marshal key: %w", err)
		}
		buf = appendUint32(buf, e.OriginRank)
		buf = append(buf, keyBytes...)
		buf = appendUint32(buf, uint32(len(e.Payload)))
		buf = append(buf, e.Payload...)
	}
	return buf, nil
}

// DecodeElements parses a frame produced by EncodeElements. Each element's
// Level is taken from its decoded key.
func DecodeElements(data []byte) ([]Element, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("ghost: frame too short for count")
	}
	count := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	out := make([]Element, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 4+18+4 {
			return nil, fmt.Errorf("ghost: frame truncated at element %d", i)
		}
		rank := binary.BigEndian.Uint32(data[:4])
		data = data[4:]

		var key sfckey.Key
		if err := key.UnmarshalBinary(data[:18]); err != nil {
			return nil, fmt.Errorf("ghost: element %d: %w", i, err)
		}
		data = data[18:]

		payloadLen := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < payloadLen {
			return nil, fmt.Errorf("ghost: element %d: payload truncated", i)
		}
		payload := make([]byte, payloadLen)
		copy(payload, data[:payloadLen])
		data = data[payloadLen:]

		out = append(out, Element{OriginRank: rank, Key: key, Level: key.Level(), Payload: payload})
	}
	return out, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
