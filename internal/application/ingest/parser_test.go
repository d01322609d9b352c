package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseLedger(t *testing.T) {
	t.Run("reads aliased columns", func(t *testing.T) {
		input := "Invoice_ID,Reference,Amount,Invoice Date,Description,Client Name\n" +
			`INV-1,REF-1,"1,250.50",2024-03-01,Consulting,Acme` + "\n" +
			"INV-2,,80.00,15/03/2024,Support,Globex\n" +
			"INV-3,REF-3,10,03/25/2024,,\n"

		result, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 3)
		assert.Zero(t, result.Skipped)

		first := result.Records[0]
		assert.Equal(t, "INV-1", first.ExternalID)
		assert.Equal(t, "REF-1", first.Reference)
		assert.Equal(t, "1250.5", first.Amount.String())
		assert.Equal(t, date(2024, 3, 1), first.Date)
		assert.Equal(t, "Consulting", first.Description)
		assert.Equal(t, "Acme", first.CustomerName)
		assert.Equal(t, reconcile.InvoiceUnpaid, first.Status)
		assert.True(t, first.MatchedAmount.IsZero())

		// Reference falls back to the invoice id
		assert.Equal(t, "INV-2", result.Records[1].Reference)
		assert.Equal(t, date(2024, 3, 15), result.Records[1].Date)

		// Not a valid day-first date, parsed month-first
		assert.Equal(t, date(2024, 3, 25), result.Records[2].Date)
	})

	t.Run("day-first wins when ambiguous", func(t *testing.T) {
		input := "id,amount,date\nA,1,05/03/2024\n"
		result, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, date(2024, 3, 5), result.Records[0].Date)
	})

	t.Run("due date is used when no other date exists", func(t *testing.T) {
		input := "id,amount,due_date\nA,1,2024-04-30\n"
		result, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, date(2024, 4, 30), result.Records[0].Date)
	})

	t.Run("skips bad rows", func(t *testing.T) {
		input := "id,amount,date\n" +
			"A,,2024-03-01\n" +
			"B,abc,2024-03-01\n" +
			"C,10,2024/13/45\n" +
			"D,10,2024-03-01\n"

		result, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Skipped)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "D", result.Records[0].ExternalID)
	})

	t.Run("derives ids for rows without one", func(t *testing.T) {
		input := "reference,amount,date\nR,10,2024-03-01\nR,10,2024-03-01\n"
		result, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 2)
		assert.NotEmpty(t, result.Records[0].ExternalID)
		assert.NotEqual(t, result.Records[0].ExternalID, result.Records[1].ExternalID)

		again, err := ParseLedger(strings.NewReader(input), nil)
		require.NoError(t, err)
		assert.Equal(t, result.Records[0].ExternalID, again.Records[0].ExternalID)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ParseLedger(strings.NewReader("id,reference\nA,B\n"), nil)
		assert.ErrorIs(t, err, ErrMissingColumns)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseLedger(strings.NewReader(""), nil)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestParseStatement(t *testing.T) {
	t.Run("reads transactions", func(t *testing.T) {
		input := "Transaction_ID,Transaction Date,Amount,Description,Ref\n" +
			"T1,2024-03-01,100.00,ACME PAYMENT,INV-1\n" +
			"T2,02/03/2024,-25.00,Bank fee,\n"

		result, err := ParseStatement(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 2)

		first := result.Records[0]
		assert.Equal(t, "T1", first.ExternalID)
		assert.Equal(t, "INV-1", first.Reference)
		assert.Equal(t, "ACME PAYMENT", first.Description)
		assert.Equal(t, reconcile.TransactionUnmatched, first.Status)

		second := result.Records[1]
		assert.Equal(t, date(2024, 3, 2), second.Date)
		assert.Equal(t, "-25", second.Amount.String())
		assert.Equal(t, reconcile.TransactionOutgoing, second.Status)
	})

	t.Run("identical lines stay distinct", func(t *testing.T) {
		input := "date,amount,description\n2024-03-01,4.50,Coffee\n2024-03-01,4.50,Coffee\n"
		result, err := ParseStatement(strings.NewReader(input), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 2)
		assert.NotEqual(t, result.Records[0].ExternalID, result.Records[1].ExternalID)
	})

	t.Run("missing date column", func(t *testing.T) {
		_, err := ParseStatement(strings.NewReader("id,amount\nT1,10\n"), nil)
		assert.ErrorIs(t, err, ErrMissingColumns)
	})
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Invoice_ID":     "invoiceid",
		" Customer Name": "customername",
		"\ufeffid":       "id",
		"AMOUNT":         "amount",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}
