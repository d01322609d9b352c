package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

type countingGate struct {
	entered int
}

func (g *countingGate) Shared(keys ...string) func() {
	g.entered++
	return func() {}
}

func TestService_ImportLedger(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMockRepository()
	gate := &countingGate{}
	svc := NewService(repo, gate, nil)

	input := "id,amount,date\nINV-1,100,2024-03-01\nINV-2,50,2024-03-02\nbad,x,2024-03-02\n"

	result, err := svc.ImportLedger(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, &Result{Kind: KindLedger, Parsed: 2, Imported: 2, Skipped: 1}, result)
	assert.Equal(t, 1, gate.entered)

	invoices, err := repo.ListInvoices(ctx, storage.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	t.Run("re-import skips known external ids", func(t *testing.T) {
		result, err := svc.ImportLedger(ctx, strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Imported)
		assert.Equal(t, 2, result.Duplicates)
	})
}

func TestService_ImportStatement(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMockRepository()
	svc := NewService(repo, nil, nil)

	input := "date,amount,description\n2024-03-01,4.50,Coffee\n2024-03-01,4.50,Coffee\n"

	result, err := svc.Import(ctx, KindStatement, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	result, err = svc.Import(ctx, KindStatement, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Duplicates)

	t.Run("save failure aborts", func(t *testing.T) {
		repo.SaveTransactionErr = errors.New("read-only")
		defer func() { repo.SaveTransactionErr = nil }()

		_, err := svc.ImportStatement(ctx, strings.NewReader("id,date,amount\nNEW,2024-03-01,1\n"))
		assert.ErrorContains(t, err, "read-only")
	})

	t.Run("parse failure", func(t *testing.T) {
		_, err := svc.ImportStatement(ctx, strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ledger")
	require.NoError(t, err)
	assert.Equal(t, KindLedger, k)

	_, err = ParseKind("invoices")
	assert.Error(t, err)
}
