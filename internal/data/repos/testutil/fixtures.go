package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDataset(tb testing.TB, ctx context.Context, tx *gorm.DB, authorID uuid.UUID) *types.Dataset {
	tb.Helper()
	ds := &types.Dataset{
		ID:       uuid.New(),
		Name:     "scans",
		AuthorID: authorID,
		Status:   types.DatasetStatusPrivate,
	}
	if err := tx.WithContext(ctx).Create(ds).Error; err != nil {
		tb.Fatalf("seed dataset: %v", err)
	}
	return ds
}

func SeedFolder(tb testing.TB, ctx context.Context, tx *gorm.DB, datasetID, authorID uuid.UUID) *types.Folder {
	tb.Helper()
	f := &types.Folder{
		ID:        uuid.New(),
		DatasetID: datasetID,
		Name:      "raw",
		AuthorID:  authorID,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed folder: %v", err)
	}
	return f
}
