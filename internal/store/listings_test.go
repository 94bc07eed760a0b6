package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/prodaja/internal/db"
	"github.com/erazemk/prodaja/internal/model"
)

func TestAppendAndListListingLogs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ok := &model.ListingLogEntry{
		AttemptID:      "a1",
		PhoneID:        1,
		Platform:       model.PlatformX,
		Success:        true,
		AttemptedPrice: decimal.NewNullDecimal(decimal.RequireFromString("450.00")),
		Fee:            decimal.NewNullDecimal(decimal.RequireFromString("50.00")),
		Message:        "listed",
		ListedBy:       "admin",
	}
	require.NoError(t, AppendListingLog(ctx, database, ok))
	assert.NotZero(t, ok.ID)
	assert.Equal(t, time.UTC, ok.CreatedAt.Location())

	missing := &model.ListingLogEntry{
		AttemptID: "a2",
		PhoneID:   42,
		Platform:  model.PlatformY,
		Message:   "item not found",
	}
	require.NoError(t, AppendListingLog(ctx, database, missing))

	entries, err := ListListingLogs(ctx, database, model.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "a2", entries[0].AttemptID)
	assert.False(t, entries[0].AttemptedPrice.Valid)
	assert.False(t, entries[0].Fee.Valid)
	assert.Empty(t, entries[0].ListedBy)

	assert.Equal(t, "a1", entries[1].AttemptID)
	assert.True(t, entries[1].Success)
	assert.Equal(t, "450", entries[1].AttemptedPrice.Decimal.String())
	assert.Equal(t, "admin", entries[1].ListedBy)
}

func TestListListingLogsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for i, p := range []model.Platform{model.PlatformX, model.PlatformY, model.PlatformX} {
		require.NoError(t, AppendListingLog(ctx, database, &model.ListingLogEntry{
			AttemptID: "a",
			PhoneID:   int64(i + 1),
			Platform:  p,
			Success:   i == 0,
			Message:   "m",
		}))
	}

	byPlatform, err := ListListingLogs(ctx, database, model.ListingFilter{Platform: model.PlatformX})
	require.NoError(t, err)
	assert.Len(t, byPlatform, 2)

	byPhone, err := ListListingLogs(ctx, database, model.ListingFilter{PhoneID: 2})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, model.PlatformY, byPhone[0].Platform)

	succeeded := true
	bySuccess, err := ListListingLogs(ctx, database, model.ListingFilter{Success: &succeeded})
	require.NoError(t, err)
	require.Len(t, bySuccess, 1)
	assert.EqualValues(t, 1, bySuccess[0].PhoneID)

	limited, err := ListListingLogs(ctx, database, model.ListingFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.EqualValues(t, 3, limited[0].PhoneID)
}
