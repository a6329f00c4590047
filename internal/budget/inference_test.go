package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
	"spendguard/internal/ledger/memory"
)

func seed(t *testing.T, store *memory.Store, txs ...core.Transaction) {
	t.Helper()
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = core.NewTransactionID()
		}
		if tx.Amount.Cents == 0 {
			tx.Amount = cents(100)
		}
		require.NoError(t, store.InsertTransaction(context.Background(), tx))
	}
}

func TestInferCategory(t *testing.T) {
	ctx := context.Background()
	base := fixedNow.Add(-48 * time.Hour)

	t.Run("falls back to another owner", func(t *testing.T) {
		svc, store, _ := newTestService(t, DefaultOptions())
		seed(t, store, core.Transaction{Owner: "u2", Category: "Shopping", Payee: "Amazon", Timestamp: base})

		cat, err := svc.InferCategory(ctx, "u1", "Amazon")
		require.NoError(t, err)
		assert.Equal(t, "Shopping", cat)
	})

	t.Run("prefers the owner's own history", func(t *testing.T) {
		svc, store, _ := newTestService(t, DefaultOptions())
		seed(t, store,
			core.Transaction{Owner: "u1", Category: "Books", Payee: "Amazon", Timestamp: base},
			core.Transaction{Owner: "u2", Category: "Shopping", Payee: "Amazon", Timestamp: base.Add(time.Hour)},
		)
		cat, err := svc.InferCategory(ctx, "u1", "Amazon")
		require.NoError(t, err)
		assert.Equal(t, "Books", cat)
	})

	t.Run("most recent wins", func(t *testing.T) {
		svc, store, _ := newTestService(t, DefaultOptions())
		seed(t, store,
			core.Transaction{Owner: "u1", Category: "Books", Payee: "Amazon", Timestamp: base},
			core.Transaction{Owner: "u1", Category: "Electronics", Payee: "Amazon", Timestamp: base.Add(time.Hour)},
		)
		cat, err := svc.InferCategory(ctx, "u1", "Amazon")
		require.NoError(t, err)
		assert.Equal(t, "Electronics", cat)
	})

	t.Run("unknown without history", func(t *testing.T) {
		svc, _, _ := newTestService(t, DefaultOptions())
		cat, err := svc.InferCategory(ctx, "u1", "Nowhere")
		require.NoError(t, err)
		assert.Equal(t, core.UnknownCategory, cat)
	})

	t.Run("cross owner disabled", func(t *testing.T) {
		opts := DefaultOptions()
		opts.CrossOwnerInference = false
		svc, store, _ := newTestService(t, opts)
		seed(t, store, core.Transaction{Owner: "u2", Category: "Shopping", Payee: "Amazon", Timestamp: base})

		cat, err := svc.InferCategory(ctx, "u1", "Amazon")
		require.NoError(t, err)
		assert.Equal(t, core.UnknownCategory, cat)
	})

	t.Run("stable on equal timestamps", func(t *testing.T) {
		svc, store, _ := newTestService(t, DefaultOptions())
		seed(t, store,
			core.Transaction{ID: "a", Owner: "u1", Category: "A", Payee: "Shop", Timestamp: base},
			core.Transaction{ID: "b", Owner: "u1", Category: "B", Payee: "Shop", Timestamp: base},
		)
		first, err := svc.InferCategory(ctx, "u1", "Shop")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := svc.InferCategory(ctx, "u1", "Shop")
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
		assert.Equal(t, "B", first)
	})

	t.Run("empty payee is invalid", func(t *testing.T) {
		svc, _, _ := newTestService(t, DefaultOptions())
		_, err := svc.InferCategory(ctx, "u1", "  ")
		assert.True(t, core.IsValidation(err))
	})
}

// gatedStore holds payee lookups until release is closed.
type gatedStore struct {
	*memory.Store
	entered     chan struct{}
	enteredOnce sync.Once
	release     chan struct{}
}

func (g *gatedStore) FindTransactions(ctx context.Context, f ledger.TransactionFilter, srt ledger.Sort) ([]core.Transaction, error) {
	g.enteredOnce.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Store.FindTransactions(ctx, f, srt)
}

func TestInferCategoryCancelledCallerDoesNotFailOthers(t *testing.T) {
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	seed(t, store.Store, core.Transaction{Owner: "u1", Category: "Books", Payee: "Amazon", Timestamp: fixedNow.Add(-time.Hour)})
	svc := NewService(store, nil, Options{Now: func() time.Time { return fixedNow }, StoreTimeout: 5 * time.Second})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.InferCategory(ctxA, "u1", "Amazon")
		errA <- err
	}()
	<-store.entered

	type result struct {
		cat string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		cat, err := svc.InferCategory(context.Background(), "u1", "Amazon")
		resB <- result{cat, err}
	}()
	// Let the second caller join the in-flight lookup.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.True(t, errors.Is(err, context.Canceled), "cancelled caller got %v", err)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(store.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "Books", r.cat)
	case <-time.After(time.Second):
		t.Fatal("waiting caller did not return")
	}
}
