// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sfckey

import "fmt"

var (
	ErrRootHasNoParent  = fmt.Errorf("root key has no parent")
	ErrMaxLevelExceeded = fmt.Errorf("key already at maximum refinement level")
)
