// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zeepseek/homescout/internal/models"
)

// Preference returns the stored survey answers for one user, or
// ErrNotFound when the user never filled the survey. The office coordinate
// columns are nullable; HasOffice is set only when both are present.
func (db *DB) Preference(ctx context.Context, userID int64) (models.UserPreference, error) {
	var (
		pref   models.UserPreference
		offLat sql.NullFloat64
		offLon sql.NullFloat64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, gender, age,
		        prefer_transport, prefer_restaurant, prefer_health, prefer_convenience,
		        prefer_cafe, prefer_chicken, prefer_leisure,
		        dong_id, office_lat, office_lon
		 FROM user_preference WHERE user_id = ?`, userID).
		Scan(&pref.UserID, &pref.Gender, &pref.Age,
			&pref.Flags[0], &pref.Flags[1], &pref.Flags[2], &pref.Flags[3],
			&pref.Flags[4], &pref.Flags[5], &pref.Flags[6],
			&pref.DongID, &offLat, &offLon)
	if err != nil {
		if isNoRows(err) {
			return models.UserPreference{}, ErrNotFound
		}
		return models.UserPreference{}, fmt.Errorf("failed to query preference for user %d: %w", userID, err)
	}

	if offLat.Valid && offLon.Valid {
		pref.OfficeLat = offLat.Float64
		pref.OfficeLon = offLon.Float64
		pref.HasOffice = true
	}
	return pref, nil
}
