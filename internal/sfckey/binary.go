// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sfckey

import (
	"encoding/binary"
	"fmt"
)

// keyWireSize is the fixed encoded length of a Key: kind_tag(1) + low(8) +
// high(8) + level(1), the field order spec.md §6 specifies for
// serialized keys. Morton keys store their payload in low and leave high
// zero, so both Kind members share one layout.
const keyWireSize = 18

// MarshalBinary encodes k into the fixed-width wire layout used by the
// ghost-layer sync protocol and the butterfly balance frames.
func (k Key) MarshalBinary() ([]byte, error) {
	buf := make([]byte, keyWireSize)
	buf[0] = byte(k.kind)
	high := k.high
	low := k.low
	if k.kind == KindMorton {
		low = k.bits
		high = 0
	}
	binary.BigEndian.PutUint64(buf[1:9], low)
	binary.BigEndian.PutUint64(buf[9:17], high)
	buf[17] = k.level
	return buf, nil
}

// UnmarshalBinary decodes a Key previously produced by MarshalBinary.
func (k *Key) UnmarshalBinary(data []byte) error {
	if len(data) != keyWireSize {
		return fmt.Errorf("sfckey: encoded key must be %d bytes, got %d", keyWireSize, len(data))
	}
	kind := Kind(data[0])
	low := binary.BigEndian.Uint64(data[1:9])
	high := binary.BigEndian.Uint64(data[9:17])
	level := data[17]
	switch kind {
	case KindMorton:
		*k = Key{kind: KindMorton, bits: low, level: level}
	case KindTetree:
		*k = Key{kind: KindTetree, low: low, high: high, level: level}
	default:
		return fmt.Errorf("sfckey: unknown kind byte %d", data[0])
	}
	return nil
}
