package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// fakeTx satisfies pgx.Tx; only its presence in the context matters.
type fakeTx struct{ pgx.Tx }

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx for empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil tx for wrong value type")
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn for empty context")
	}
}

func TestResolve_FallsBackToPool(t *testing.T) {
	// A nil pool is still returned as the Querier when nothing else is set.
	q := Resolve(context.Background(), nil)
	if q == nil {
		t.Fatal("expected a querier")
	}
}

func TestWithTx_JoinsExistingTransaction(t *testing.T) {
	r := &poolTxRunner{}
	ctx := context.WithValue(context.Background(), DBTxKey, fakeTx{})

	called := false
	err := r.WithTx(ctx, func(inner context.Context) error {
		called = true
		if TxFromContext(inner) == nil {
			t.Error("expected the outer transaction to be visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to run")
	}

	want := errors.New("boom")
	if err := r.WithTx(ctx, func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected fn error to propagate, got %v", err)
	}
}
