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
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
//
// Tables:
//   - listing: real-estate listings (external producer, read-only here)
//   - poi: points of interest with a category tag (read-only here)
//   - listing_score: derived per-category counts and scores (written here)
//   - user_preference: survey answers per user (read-only here)
//   - activity_event: append-only user activity log (read-only here)
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	// listing_score has a count and score column per category, generated
	// from the canonical ordering so the schema can never drift from it.
	var scoreCols strings.Builder
	for _, col := range scoreColumns() {
		typ := "INTEGER NOT NULL DEFAULT 0"
		if strings.HasSuffix(col, "_score") {
			typ = "DOUBLE NOT NULL DEFAULT 0"
		}
		fmt.Fprintf(&scoreCols, ",\n\t\t\t%s %s", col, typ)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS listing (
			listing_id BIGINT PRIMARY KEY,
			dong_id INTEGER NOT NULL,
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL,
			price BIGINT NOT NULL DEFAULT 0,
			room_type TEXT NOT NULL DEFAULT '',
			contract_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS poi (
			poi_id BIGINT,
			category TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS listing_score (
			listing_id BIGINT PRIMARY KEY%s,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, scoreCols.String()),
		`CREATE TABLE IF NOT EXISTS user_preference (
			user_id BIGINT PRIMARY KEY,
			gender TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL DEFAULT 0,
			prefer_transport INTEGER NOT NULL DEFAULT 0,
			prefer_restaurant INTEGER NOT NULL DEFAULT 0,
			prefer_health INTEGER NOT NULL DEFAULT 0,
			prefer_convenience INTEGER NOT NULL DEFAULT 0,
			prefer_cafe INTEGER NOT NULL DEFAULT 0,
			prefer_chicken INTEGER NOT NULL DEFAULT 0,
			prefer_leisure INTEGER NOT NULL DEFAULT 0,
			dong_id INTEGER NOT NULL DEFAULT 0,
			office_lat DOUBLE,
			office_lon DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS activity_event (
			user_id BIGINT NOT NULL,
			listing_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			dong_id INTEGER NOT NULL DEFAULT 0,
			occurred_at TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates indexes for the common query patterns: keyset
// pagination over listings, POI lookup by category, and windowed activity
// scans per user.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_listing_dong ON listing(dong_id)`,
		`CREATE INDEX IF NOT EXISTS idx_poi_category ON poi(category)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user_time ON activity_event(user_id, occurred_at)`,
	}
	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
