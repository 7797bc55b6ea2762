// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeepseek/homescout/internal/models"
)

// upsertSQL holds the pre-built UPDATE and INSERT statements for
// listing_score, generated once from the canonical category ordering.
var upsertSQL = buildUpsertSQL()

type upsertStatements struct {
	update string
	insert string
}

func buildUpsertSQL() upsertStatements {
	cols := scoreColumns()

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	update := fmt.Sprintf(
		`UPDATE listing_score SET %s, updated_at = CURRENT_TIMESTAMP WHERE listing_id = ?`,
		strings.Join(sets, ", "))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	insert := fmt.Sprintf(
		`INSERT INTO listing_score (listing_id, %s) VALUES (%s)`,
		strings.Join(cols, ", "), placeholders)

	return upsertStatements{update: update, insert: insert}
}

// scoreArgs flattens a PropertyScore into count/score pairs in canonical
// category order, matching scoreColumns().
func scoreArgs(score models.PropertyScore) []any {
	args := make([]any, 0, 2*models.NumCategories)
	for _, cs := range score.Scores {
		args = append(args, cs.Count, cs.Score)
	}
	return args
}

// UpsertScore writes a score row, updating in place when the row exists
// and inserting otherwise. Update-then-insert keeps the operation
// idempotent: re-running a batch converges to the same row contents.
func (s *Session) UpsertScore(ctx context.Context, score models.PropertyScore) error {
	res, err := s.conn.ExecContext(ctx, upsertSQL.update,
		append(scoreArgs(score), score.ListingID)...)
	if err != nil {
		return fmt.Errorf("failed to update score for listing %d: %w", score.ListingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for listing %d: %w", score.ListingID, err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.conn.ExecContext(ctx, upsertSQL.insert,
		append([]any{score.ListingID}, scoreArgs(score)...)...); err != nil {
		return fmt.Errorf("failed to insert score for listing %d: %w", score.ListingID, err)
	}
	return nil
}

// Score returns the persisted score row for one listing, or ErrNotFound.
func (db *DB) Score(ctx context.Context, listingID int64) (models.PropertyScore, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM listing_score WHERE listing_id = ?`,
		strings.Join(scoreColumns(), ", "))

	row := db.conn.QueryRowContext(ctx, query, listingID)

	score := models.PropertyScore{ListingID: listingID}
	dest := make([]any, 0, 2*models.NumCategories)
	for i := range score.Scores {
		dest = append(dest, &score.Scores[i].Count, &score.Scores[i].Score)
	}
	if err := row.Scan(dest...); err != nil {
		if isNoRows(err) {
			return models.PropertyScore{}, ErrNotFound
		}
		return models.PropertyScore{}, fmt.Errorf("failed to query score for listing %d: %w", listingID, err)
	}
	return score, nil
}

// Candidates returns every scored listing joined with its listing
// attributes, the raw material for the ranking stage. An empty score table
// yields an empty slice.
func (db *DB) Candidates(ctx context.Context) ([]models.Candidate, error) {
	var cols []string
	for _, c := range models.Categories {
		cols = append(cols, fmt.Sprintf("s.%s_score", c))
	}

	query := fmt.Sprintf(
		`SELECT s.listing_id, l.dong_id, l.lat, l.lon, l.price, l.room_type, l.contract_type, %s
		 FROM listing_score s
		 JOIN listing l ON l.listing_id = s.listing_id
		 ORDER BY s.listing_id`, strings.Join(cols, ", "))

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer closeQuietly(rows)

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		dest := []any{&c.ListingID, &c.DongID, &c.Lat, &c.Lon, &c.Price, &c.RoomType, &c.ContractType}
		for i := range c.Scores {
			dest = append(dest, &c.Scores[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ScoreStats computes min, max, mean, and population standard deviation for
// every score column in a single aggregate pass. An empty score table
// returns zero statistics and no error.
func (db *DB) ScoreStats(ctx context.Context) (models.ScoreStats, error) {
	var aggs []string
	for _, c := range models.Categories {
		col := c.String() + "_score"
		aggs = append(aggs,
			fmt.Sprintf("coalesce(min(%s), 0)", col),
			fmt.Sprintf("coalesce(max(%s), 0)", col),
			fmt.Sprintf("coalesce(avg(%s), 0)", col),
			fmt.Sprintf("coalesce(stddev_pop(%s), 0)", col))
	}
	query := fmt.Sprintf(`SELECT %s FROM listing_score`, strings.Join(aggs, ", "))

	var stats models.ScoreStats
	dest := make([]any, 0, 4*models.NumCategories)
	for i := 0; i < models.NumCategories; i++ {
		dest = append(dest, &stats.Min[i], &stats.Max[i], &stats.Mean[i], &stats.Std[i])
	}
	if err := db.conn.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return models.ScoreStats{}, fmt.Errorf("failed to query score stats: %w", err)
	}
	return stats, nil
}
