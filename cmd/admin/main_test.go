package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("POSTGRES_DB", path)
	t.Setenv("USAGE_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("STRIPE_PRICE_ID_PRO_MONTHLY", "price_pro_m")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.DBConfig{Driver: "sqlite", Name: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMigrateCmd(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")

	_, err = run(t, "migrate")
	require.NoError(t, err)
}

func TestUsageShowAndReset(t *testing.T) {
	path := setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	st := openStore(t, path)
	require.NoError(t, st.UpsertDailyUsage(context.Background(), models.UsageRecord{
		UserID:          "user-7",
		Date:            "2024-02-29",
		TotalOperations: 6,
		OperationCounts: map[string]int{"grammar": 6},
	}))
	require.NoError(t, st.Close())

	out, err := run(t, "usage", "show", "user-7", "--date", "2024-02-29")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.EqualValues(t, 6, shown["totalOperations"])
	assert.EqualValues(t, 10, shown["dailyLimit"])

	out, err = run(t, "usage", "reset", "user-7", "--date", "2024-02-29")
	require.NoError(t, err)
	assert.Contains(t, out, "reset usage for user-7 on 2024-02-29")

	rec, err := openStore(t, path).GetDailyUsage(context.Background(), "user-7", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TotalOperations)
	assert.Empty(t, rec.OperationCounts)
}

func TestUsageShowRejectsBadDate(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	_, err = run(t, "usage", "show", "user-7", "--date", "29/02/2024")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestSubscriptionShow(t *testing.T) {
	path := setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	ctx := context.Background()
	st := openStore(t, path)
	require.NoError(t, st.UpsertCustomer(ctx, "user-3", "cus_3"))
	require.NoError(t, st.UpsertSubscription(ctx, models.SubscriptionRecord{
		SubscriptionID:   "sub_3",
		CustomerID:       "cus_3",
		PriceID:          "price_pro_m",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().Add(720 * time.Hour),
		UpdatedAt:        time.Now(),
	}))
	require.NoError(t, st.Close())

	out, err := run(t, "subscription", "show", "user-3")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "pro", shown["tier"])
	assert.Equal(t, "Pro", shown["tierName"])

	out, err = run(t, "subscription", "show", "nobody")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "free", shown["tier"])
}
