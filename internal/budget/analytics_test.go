package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendguard/internal/core"
)

func TestSetLimitsUpsert(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultOptions())

	require.NoError(t, svc.SetLimits(ctx, "u1", []LimitInput{{Category: "Food", Cap: cents(500)}}))
	require.NoError(t, svc.SetLimits(ctx, "u1", []LimitInput{{Category: " Food ", Cap: cents(800)}}))
	assert.Equal(t, 1, store.LimitCount())

	cap, ok, err := svc.ResolveLimit(ctx, "u1", "Food")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(800), cap.Cents)
}

func TestSetLimitsRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultOptions())

	err := svc.SetLimits(ctx, "u1", []LimitInput{
		{Category: "Food", Cap: cents(500)},
		{Category: "Fun", Cap: cents(-1)},
	})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrInvalidCap)
	assert.Zero(t, store.LimitCount())

	err = svc.SetLimits(ctx, "u1", []LimitInput{{Category: "Food", Cap: cents(1)}, {Category: "", Cap: cents(1)}})
	assert.ErrorIs(t, err, core.ErrEmptyCategory)
	assert.Zero(t, store.LimitCount())
}

func TestResolveLimitUnset(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultOptions())
	_, ok, err := svc.ResolveLimit(context.Background(), "u1", "Food")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpendInMonthCoversWholeMonth(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultOptions())
	seed(t, store,
		core.Transaction{Owner: "u1", Category: "Food", Payee: "a", Amount: cents(100), Timestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		core.Transaction{Owner: "u1", Category: "Food", Payee: "b", Amount: cents(200), Timestamp: time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)},
		core.Transaction{Owner: "u1", Category: "Food", Payee: "c", Amount: cents(400), Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	)
	total, err := svc.SpendInMonth(ctx, "u1", "Food", 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total.Cents)

	_, err = svc.SpendInMonth(ctx, "u1", "Food", 2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestMonthReport(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultOptions())
	require.NoError(t, svc.SetLimits(ctx, "u1", []LimitInput{
		{Category: "Food", Cap: cents(500)},
		{Category: "Rent", Cap: cents(100_000)},
	}))
	seed(t, store,
		core.Transaction{Owner: "u1", Category: "Food", Payee: "a", Amount: cents(300), Timestamp: fixedNow.Add(-time.Hour)},
		core.Transaction{Owner: "u1", Category: "Food", Payee: "a", Amount: cents(300), Timestamp: fixedNow.Add(-2 * time.Hour)},
		core.Transaction{Owner: "u1", Category: "Coffee", Payee: "b", Amount: cents(50), Timestamp: fixedNow.Add(-3 * time.Hour)},
		core.Transaction{Owner: "u2", Category: "Food", Payee: "a", Amount: cents(999), Timestamp: fixedNow},
	)

	rep, err := svc.MonthReport(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2025, rep.Year)
	assert.Equal(t, 5, rep.Month)
	assert.Equal(t, int64(650), rep.Total.Cents)
	require.Len(t, rep.PerCategory, 3)

	assert.Equal(t, "Coffee", rep.PerCategory[0].Category)
	assert.False(t, rep.PerCategory[0].HasCap)

	food := rep.PerCategory[1]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, int64(600), food.Spent.Cents)
	assert.True(t, food.OverLimit())
	assert.Equal(t, int64(-100), food.Remaining().Cents)

	rent := rep.PerCategory[2]
	assert.Equal(t, "Rent", rent.Category)
	assert.Zero(t, rent.Spent.Cents)
	assert.True(t, rent.HasCap)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultOptions())
	seed(t, store,
		core.Transaction{ID: "old", Owner: "u1", Category: "Food", Payee: "a", Timestamp: fixedNow.Add(-time.Hour)},
		core.Transaction{ID: "new", Owner: "u1", Category: "Food", Payee: "a", Timestamp: fixedNow},
		core.Transaction{ID: "prev", Owner: "u1", Category: "Food", Payee: "a", Timestamp: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	)
	txs, err := svc.ListTransactions(ctx, "u1", 2025, 5)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "new", txs[0].ID)
	assert.Equal(t, "old", txs[1].ID)

	owners, err := svc.Owners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}
