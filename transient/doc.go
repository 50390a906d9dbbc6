// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient sorts transport errors into categories. The
// transport retries transient categories, and the client reports the
// Timeout category as a timeout error and every other failure as a
// network error.
package transient
