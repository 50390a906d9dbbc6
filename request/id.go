// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a new request identifier of the form
// REQ-<epoch_ms>-<random8>, with -<suffix> appended if suffix is not
// empty.
func NewID(suffix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	var b strings.Builder
	b.WriteString("REQ-")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(random)
	if suffix != "" {
		b.WriteByte('-')
		b.WriteString(suffix)
	}
	return b.String()
}
