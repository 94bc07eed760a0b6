package audit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/prodaja/internal/db"
	"github.com/erazemk/prodaja/internal/model"
)

// testLog exercises the behaviour every backend must share.
func testLog(t *testing.T, log Log) {
	ctx := context.Background()

	price := decimal.NewNullDecimal(decimal.RequireFromString("450"))
	fee := decimal.NewNullDecimal(decimal.RequireFromString("50"))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	entries := []*model.ListingLogEntry{
		{AttemptID: "a1", PhoneID: 1, Platform: model.PlatformX, Success: true,
			AttemptedPrice: price, Fee: fee, Message: "listed", ListedBy: "admin", CreatedAt: at},
		{AttemptID: "a2", PhoneID: 2, Platform: model.PlatformY, Message: "item not found"},
		{AttemptID: "a3", PhoneID: 1, Platform: model.PlatformY, Message: "out of stock", AttemptedPrice: price},
	}
	for _, e := range entries {
		require.NoError(t, log.Append(ctx, e))
	}
	assert.Less(t, entries[0].ID, entries[1].ID)
	assert.Less(t, entries[1].ID, entries[2].ID)
	assert.True(t, entries[0].CreatedAt.Equal(at))
	assert.Equal(t, time.UTC, entries[0].CreatedAt.Location())

	all, err := log.List(ctx, model.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a3", all[0].AttemptID)
	assert.Equal(t, "a1", all[2].AttemptID)
	assert.True(t, all[2].AttemptedPrice.Decimal.Equal(price.Decimal))
	assert.True(t, all[2].Fee.Decimal.Equal(fee.Decimal))
	assert.True(t, all[2].CreatedAt.Equal(at))
	assert.Equal(t, "admin", all[2].ListedBy)
	assert.False(t, all[1].AttemptedPrice.Valid)
	assert.False(t, all[0].Fee.Valid)

	byPhone, err := log.List(ctx, model.ListingFilter{PhoneID: 1})
	require.NoError(t, err)
	assert.Len(t, byPhone, 2)

	failed := false
	byOutcome, err := log.List(ctx, model.ListingFilter{Platform: model.PlatformY, Success: &failed})
	require.NoError(t, err)
	assert.Len(t, byOutcome, 2)

	limited, err := log.List(ctx, model.ListingFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteLog(t *testing.T) {
	testLog(t, NewSQLite(db.NewTestDB(t)))
}

func TestMongoLog(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx := context.Background()
	dbName := fmt.Sprintf("prodaja_test_%d", time.Now().UnixNano())
	log, err := NewMongo(ctx, uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		log.client.Database(dbName).Drop(ctx)
		log.Close(ctx)
	})

	testLog(t, log)
}

func TestMongoRejectsEmptyMessage(t *testing.T) {
	// Validation happens before any round trip, so no server is needed.
	err := (&Mongo{}).Append(context.Background(), &model.ListingLogEntry{})
	assert.ErrorIs(t, err, model.ErrValidation)
}
