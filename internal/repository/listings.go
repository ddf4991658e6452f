package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"plantcare/internal/database"
	"plantcare/internal/models"
	"plantcare/pkg/logger"
)

// GetListingCare returns the care fields of a listing. sql.ErrNoRows if it does not exist.
func GetListingCare(ctx context.Context, id string) (*models.Listing, error) {
	db := database.DB(ctx)
	if db == nil {
		return nil, sql.ErrConnDone
	}
	var (
		l       models.Listing
		details sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, species, care_details, care_tips FROM listing WHERE id = $1`, id).
		Scan(&l.ID, &l.Species, &details, pq.Array(&l.CareTips))
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error(ctx, "Repository GetListingCare failed", "error", err, "id", id)
		}
		return nil, err
	}
	l.CareDetails = details.String
	return &l, nil
}

// UpdateCareTips replaces the stored tips of a listing.
func UpdateCareTips(ctx context.Context, id string, tips []string) error {
	db := database.DB(ctx)
	if db == nil {
		return sql.ErrConnDone
	}
	res, err := db.ExecContext(ctx,
		`UPDATE listing SET care_tips = $1, updated_at = NOW() WHERE id = $2`, pq.Array(tips), id)
	if err != nil {
		logger.Error(ctx, "Repository UpdateCareTips failed", "error", err, "id", id)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateListing inserts a listing, replacing its care fields if the id already exists.
func CreateListing(ctx context.Context, l *models.Listing) error {
	db := database.DB(ctx)
	if db == nil {
		return sql.ErrConnDone
	}
	tips := l.CareTips
	if tips == nil {
		tips = []string{}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO listing (id, species, care_details, care_tips) VALUES ($1, $2, NULLIF($3, ''), $4)
		 ON CONFLICT (id) DO UPDATE SET species = EXCLUDED.species, care_details = EXCLUDED.care_details,
		 care_tips = EXCLUDED.care_tips, updated_at = NOW()`,
		l.ID, l.Species, l.CareDetails, pq.Array(tips))
	if err != nil {
		logger.Error(ctx, "Repository CreateListing failed", "error", err, "id", l.ID)
		return err
	}
	return nil
}

// SpeciesByListing maps listing ids to species names.
func SpeciesByListing(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := database.DB(ctx)
	if db == nil {
		return nil, sql.ErrConnDone
	}
	rows, err := db.QueryContext(ctx, `SELECT id, species FROM listing WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		logger.Error(ctx, "Repository SpeciesByListing failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, species string
		if err := rows.Scan(&id, &species); err != nil {
			return nil, err
		}
		out[id] = species
	}
	return out, rows.Err()
}
