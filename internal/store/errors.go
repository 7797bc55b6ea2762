// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsTransient reports whether err is a retryable write failure, such as a
// DuckDB write-write conflict between concurrent transactions. Context
// cancellation is never transient: retrying a canceled write is pointless.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"write-write conflict",
		"transaction conflict",
		"conflict on update",
		"could not set lock",
		"database is locked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
