// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeepseek/homescout/internal/models"
)

// ActivityEvents returns one user's events since the given time, filtered
// to the listed actions. An empty actions slice matches every action.
func (db *DB) ActivityEvents(ctx context.Context, userID int64, since time.Time, actions []models.Action) ([]models.ActivityEvent, error) {
	query := `SELECT user_id, listing_id, action, dong_id, occurred_at
	          FROM activity_event
	          WHERE user_id = ? AND occurred_at >= ?`
	args := []any{userID, since}

	if len(actions) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(actions)), ", ")
		query += fmt.Sprintf(" AND action IN (%s)", placeholders)
		for _, a := range actions {
			args = append(args, string(a))
		}
	}
	query += " ORDER BY occurred_at"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity for user %d: %w", userID, err)
	}
	defer closeQuietly(rows)

	var events []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		if err := rows.Scan(&e.UserID, &e.ListingID, &e.Action, &e.DongID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AllActivity streams every activity event, the training corpus for the
// collaborative filter.
func (db *DB) AllActivity(ctx context.Context) ([]models.ActivityEvent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, listing_id, action, dong_id, occurred_at
		 FROM activity_event ORDER BY occurred_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all activity: %w", err)
	}
	defer closeQuietly(rows)

	var events []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		if err := rows.Scan(&e.UserID, &e.ListingID, &e.Action, &e.DongID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SeenListings returns the set of listings a user has already interacted
// with, used to keep recommendations novel.
func (db *DB) SeenListings(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT listing_id FROM activity_event WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen listings for user %d: %w", userID, err)
	}
	defer closeQuietly(rows)

	seen := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen listing: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}
