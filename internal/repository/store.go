package repository

import (
	"context"
	"time"

	"plantcare/internal/caregen"
	"plantcare/internal/models"
)

// Store exposes the package functions through the interfaces used by caregen and the controllers.
type Store struct{}

func (Store) GetListingCare(ctx context.Context, id string) (*models.Listing, error) {
	return GetListingCare(ctx, id)
}

func (Store) UpdateCareTips(ctx context.Context, id string, tips []string) error {
	return UpdateCareTips(ctx, id, tips)
}

func (Store) InsertCareTasks(ctx context.Context, key caregen.IdempotencyKey, tasks []models.CareTask) (int, error) {
	return InsertCareTasks(ctx, key.EventID, key.ListingID, tasks)
}

func (Store) ListCareTasks(ctx context.Context, userID, listingID string) ([]models.CareTask, error) {
	return ListCareTasks(ctx, userID, listingID)
}

func (Store) SetCareTaskCompleted(ctx context.Context, id, userID string, completed bool, now time.Time) (*models.CareTask, error) {
	return SetCareTaskCompleted(ctx, id, userID, completed, now)
}

func (Store) SpeciesByListing(ctx context.Context, ids []string) (map[string]string, error) {
	return SpeciesByListing(ctx, ids)
}
