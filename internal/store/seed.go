// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zeepseek/homescout/internal/geo"
	"github.com/zeepseek/homescout/internal/models"
)

// Insert helpers for the externally-owned tables. Production deployments
// load these tables out of band; the helpers exist for bootstrap imports
// and the test suite.

// InsertListings bulk-inserts listings inside one transaction.
func (db *DB) InsertListings(ctx context.Context, listings []models.Listing) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, l := range listings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO listing (listing_id, dong_id, lat, lon, price, room_type, contract_type)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				l.ID, l.DongID, l.Lat, l.Lon, l.Price, l.RoomType, l.ContractType); err != nil {
				return fmt.Errorf("failed to insert listing %d: %w", l.ID, err)
			}
		}
		return nil
	})
}

// InsertPOIs bulk-inserts POI coordinates under one category.
func (db *DB) InsertPOIs(ctx context.Context, category models.Category, points []geo.Point) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for i, p := range points {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO poi (poi_id, category, lat, lon) VALUES (?, ?, ?, ?)`,
				i+1, category.String(), p.Lat, p.Lon); err != nil {
				return fmt.Errorf("failed to insert POI: %w", err)
			}
		}
		return nil
	})
}

// SavePreference writes or replaces one user's survey answers.
func (db *DB) SavePreference(ctx context.Context, pref models.UserPreference) error {
	var offLat, offLon any
	if pref.HasOffice {
		offLat, offLon = pref.OfficeLat, pref.OfficeLon
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_preference
		 (user_id, gender, age,
		  prefer_transport, prefer_restaurant, prefer_health, prefer_convenience,
		  prefer_cafe, prefer_chicken, prefer_leisure,
		  dong_id, office_lat, office_lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pref.UserID, pref.Gender, pref.Age,
		pref.Flags[0], pref.Flags[1], pref.Flags[2], pref.Flags[3],
		pref.Flags[4], pref.Flags[5], pref.Flags[6],
		pref.DongID, offLat, offLon)
	if err != nil {
		return fmt.Errorf("failed to save preference for user %d: %w", pref.UserID, err)
	}
	return nil
}

// InsertEvents appends activity events inside one transaction.
func (db *DB) InsertEvents(ctx context.Context, events []models.ActivityEvent) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range events {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activity_event (user_id, listing_id, action, dong_id, occurred_at)
				 VALUES (?, ?, ?, ?, ?)`,
				e.UserID, e.ListingID, string(e.Action), e.DongID, e.OccurredAt); err != nil {
				return fmt.Errorf("failed to insert activity event: %w", err)
			}
		}
		return nil
	})
}

// inTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
