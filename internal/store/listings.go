// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeepseek/homescout/internal/geo"
	"github.com/zeepseek/homescout/internal/models"
)

// POIPoints returns the coordinates of every POI in the given category.
// An unknown or empty category yields an empty slice, not an error.
func (db *DB) POIPoints(ctx context.Context, category models.Category) ([]geo.Point, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT lat, lon FROM poi WHERE category = ?`, category.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query POIs for %s: %w", category, err)
	}
	defer closeQuietly(rows)

	var points []geo.Point
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan POI row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CountListings returns the total number of listings.
func (db *DB) CountListings(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM listing`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// ListingPage returns up to limit listings with listing_id greater than
// afterID, ordered by listing_id. Keyset pagination stays stable under
// concurrent inserts, unlike OFFSET scans.
func (db *DB) ListingPage(ctx context.Context, afterID int64, limit int) ([]models.Listing, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT listing_id, dong_id, lat, lon, price, room_type, contract_type
		 FROM listing
		 WHERE listing_id > ?
		 ORDER BY listing_id
		 LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listing page after %d: %w", afterID, err)
	}
	defer closeQuietly(rows)

	return scanListings(rows)
}

// IncompleteListings returns up to limit listings past afterID whose score
// row is missing or has any zero category count, ordered by listing_id.
// These are the rows a partial batch run left behind.
func (db *DB) IncompleteListings(ctx context.Context, afterID int64, limit int) ([]models.Listing, error) {
	var zeroChecks []string
	for _, c := range models.Categories {
		zeroChecks = append(zeroChecks, fmt.Sprintf("s.%s_count = 0", c))
	}

	query := fmt.Sprintf(
		`SELECT l.listing_id, l.dong_id, l.lat, l.lon, l.price, l.room_type, l.contract_type
		 FROM listing l
		 LEFT JOIN listing_score s ON l.listing_id = s.listing_id
		 WHERE l.listing_id > ? AND (s.listing_id IS NULL OR %s)
		 ORDER BY l.listing_id
		 LIMIT ?`, strings.Join(zeroChecks, " OR "))

	rows, err := db.conn.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomplete listings: %w", err)
	}
	defer closeQuietly(rows)

	return scanListings(rows)
}

// Listing returns a single listing by ID, or ErrNotFound.
func (db *DB) Listing(ctx context.Context, listingID int64) (models.Listing, error) {
	var l models.Listing
	err := db.conn.QueryRowContext(ctx,
		`SELECT listing_id, dong_id, lat, lon, price, room_type, contract_type
		 FROM listing WHERE listing_id = ?`, listingID).
		Scan(&l.ID, &l.DongID, &l.Lat, &l.Lon, &l.Price, &l.RoomType, &l.ContractType)
	if err != nil {
		if isNoRows(err) {
			return models.Listing{}, ErrNotFound
		}
		return models.Listing{}, fmt.Errorf("failed to query listing %d: %w", listingID, err)
	}
	return l, nil
}

func scanListings(rows *sql.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.DongID, &l.Lat, &l.Lon, &l.Price, &l.RoomType, &l.ContractType); err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
