package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

func TestMockRepository_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	inv, _ := seedPair(t, repo)

	inv.Notes = "local change"
	got, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)

	err = repo.SaveInvoice(ctx, testInvoice("INV-1", "1.00"))
	assert.ErrorIs(t, err, reconcile.ErrAlreadyRegistered)
}

func TestMockRepository_CommitErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	inv, tx := seedPair(t, repo)
	repo.CommitErr = errors.New("disk full")

	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)
	_, err := ledger.CreateLink(inv.ID, tx.ID, decimal.RequireFromString("100.00"), reconcile.MatchExact, 100)
	require.NoError(t, err)

	err = repo.Commit(ctx, ledger.Changes())

	assert.Error(t, err)
	assert.Equal(t, 1, repo.CommitCalls)
	links, _ := repo.ListLinks(ctx)
	assert.Empty(t, links)
	stored, _ := repo.GetInvoice(ctx, inv.ID)
	assert.Equal(t, reconcile.InvoiceUnpaid, stored.Status)
}

func TestMockRepository_CommitAppliesChangeset(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	inv, tx := seedPair(t, repo)

	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)
	link, err := ledger.CreateLink(inv.ID, tx.ID, decimal.RequireFromString("40.00"), reconcile.MatchManualOverride, 100)
	require.NoError(t, err)
	cs := ledger.Changes()
	cs.Audit = []reconcile.AuditEntry{{Actor: "bob", Action: "MANUAL_LINK", EntityType: "ReconciliationLink", EntityID: link.ID}}

	require.NoError(t, repo.Commit(ctx, cs))

	links, err := repo.ListLinksByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	stored, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.InvoicePartiallyPaid, stored.Status)
	audit, err := repo.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, int64(1), audit[0].ID)
}
