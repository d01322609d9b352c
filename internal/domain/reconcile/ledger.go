package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditEntry is one before/after record of a human-initiated change.
type AuditEntry struct {
	ID         int64
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Reason     string
	Before     string
	After      string
	Timestamp  time.Time
}

// Changeset is everything a Ledger mutated since it was built. A store
// applies it as one unit.
type Changeset struct {
	Invoices       []*Invoice
	Transactions   []*BankTransaction
	CreatedLinks   []*Link
	DeletedLinkIDs []string
	Audit          []AuditEntry
}

// IsEmpty reports whether the changeset carries no changes.
func (c Changeset) IsEmpty() bool {
	return len(c.Invoices) == 0 && len(c.Transactions) == 0 &&
		len(c.CreatedLinks) == 0 && len(c.DeletedLinkIDs) == 0 && len(c.Audit) == 0
}

// Ledger owns a working set of invoices, transactions and links and keeps
// every participant's matched amount equal to the credits of its links.
//
// A Ledger is not safe for concurrent use; callers serialise access.
type Ledger struct {
	invoices       map[int64]*Invoice
	invoiceIDs     []int64
	transactions   map[int64]*BankTransaction
	transactionIDs []int64

	links         map[string]*Link
	linkIDs       []string
	byInvoice     map[int64][]string
	byTransaction map[int64][]string

	created             map[string]bool
	deleted             []string
	touchedInvoices     map[int64]bool
	touchedTransactions map[int64]bool

	newID func() string
	now   func() time.Time
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithIDGenerator overrides link id generation (defaults to random UUIDs).
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) { l.newID = gen }
}

// WithClock overrides the link creation timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger builds a ledger over the given records. Invoices and transactions
// are ordered by identity; links keep the order they are given in.
func NewLedger(invoices []*Invoice, transactions []*BankTransaction, links []*Link, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		invoices:            make(map[int64]*Invoice, len(invoices)),
		transactions:        make(map[int64]*BankTransaction, len(transactions)),
		links:               make(map[string]*Link, len(links)),
		byInvoice:           make(map[int64][]string),
		byTransaction:       make(map[int64][]string),
		created:             make(map[string]bool),
		touchedInvoices:     make(map[int64]bool),
		touchedTransactions: make(map[int64]bool),
		newID:               func() string { return uuid.NewString() },
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, inv := range invoices {
		if _, dup := l.invoices[inv.ID]; dup {
			continue
		}
		l.invoices[inv.ID] = inv
		l.invoiceIDs = append(l.invoiceIDs, inv.ID)
	}
	sort.Slice(l.invoiceIDs, func(i, j int) bool { return l.invoiceIDs[i] < l.invoiceIDs[j] })

	for _, tx := range transactions {
		if _, dup := l.transactions[tx.ID]; dup {
			continue
		}
		l.transactions[tx.ID] = tx
		l.transactionIDs = append(l.transactionIDs, tx.ID)
	}
	sort.Slice(l.transactionIDs, func(i, j int) bool { return l.transactionIDs[i] < l.transactionIDs[j] })

	for _, link := range links {
		l.index(link)
	}

	return l
}

// Invoice returns the invoice with the given id, or nil.
func (l *Ledger) Invoice(id int64) *Invoice { return l.invoices[id] }

// Transaction returns the transaction with the given id, or nil.
func (l *Ledger) Transaction(id int64) *BankTransaction { return l.transactions[id] }

// Link returns the link with the given id, or nil.
func (l *Ledger) Link(id string) *Link { return l.links[id] }

// Invoices returns all invoices ordered by id.
func (l *Ledger) Invoices() []*Invoice {
	out := make([]*Invoice, 0, len(l.invoiceIDs))
	for _, id := range l.invoiceIDs {
		out = append(out, l.invoices[id])
	}
	return out
}

// Transactions returns all transactions ordered by id.
func (l *Ledger) Transactions() []*BankTransaction {
	out := make([]*BankTransaction, 0, len(l.transactionIDs))
	for _, id := range l.transactionIDs {
		out = append(out, l.transactions[id])
	}
	return out
}

// Links returns all live links in creation order.
func (l *Ledger) Links() []*Link {
	out := make([]*Link, 0, len(l.linkIDs))
	for _, id := range l.linkIDs {
		out = append(out, l.links[id])
	}
	return out
}

// FindByInvoice returns the links of an invoice in creation order.
func (l *Ledger) FindByInvoice(invoiceID int64) []*Link {
	return l.resolve(l.byInvoice[invoiceID])
}

// FindByTransaction returns the links of a transaction in creation order.
func (l *Ledger) FindByTransaction(transactionID int64) []*Link {
	return l.resolve(l.byTransaction[transactionID])
}

// FindBetween returns the links joining one invoice and one transaction.
func (l *Ledger) FindBetween(invoiceID, transactionID int64) []*Link {
	var out []*Link
	for _, link := range l.FindByInvoice(invoiceID) {
		if link.TransactionID == transactionID {
			out = append(out, link)
		}
	}
	return out
}

// Unclaimed returns the part of a transaction not yet credited to any
// invoice: its effective amount less its own matched amount and the invoice
// credits of overpayment links drawn on it. Never negative.
func (l *Ledger) Unclaimed(transactionID int64) decimal.Decimal {
	tx := l.transactions[transactionID]
	if tx == nil {
		return decimal.Zero
	}
	left := tx.EffectiveAmount().Sub(tx.MatchedAmount)
	for _, link := range l.FindByTransaction(transactionID) {
		if link.MatchType == MatchOverpayment {
			left = left.Sub(link.InvoiceCredit)
		}
	}
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// CreateLink allocates amount from a transaction to an invoice and credits
// both sides. Overpayment links credit the invoice with whatever the
// transaction has left unclaimed and leave the transaction uncredited, so
// the invoice credits drawn on one transaction never exceed its amount.
func (l *Ledger) CreateLink(invoiceID, transactionID int64, amount decimal.Decimal, matchType MatchType, confidence int) (*Link, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("link amount %s: %w", amount.String(), ErrInvalidAmount)
	}
	inv := l.invoices[invoiceID]
	if inv == nil {
		return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
	}
	tx := l.transactions[transactionID]
	if tx == nil {
		return nil, fmt.Errorf("transaction %d: %w", transactionID, ErrNotFound)
	}

	invoiceCredit, transactionCredit := amount, amount
	if matchType == MatchOverpayment {
		unclaimed := l.Unclaimed(transactionID)
		if unclaimed.LessThan(amount) {
			return nil, fmt.Errorf("overpayment of %s exceeds the %s left on transaction %d: %w",
				amount.StringFixed(2), unclaimed.StringFixed(2), transactionID, ErrInvalidAmount)
		}
		invoiceCredit = unclaimed
		transactionCredit = decimal.Zero
	}

	link := &Link{
		ID:                l.newID(),
		InvoiceID:         invoiceID,
		TransactionID:     transactionID,
		Amount:            amount,
		InvoiceCredit:     invoiceCredit,
		TransactionCredit: transactionCredit,
		MatchType:         matchType,
		Confidence:        confidence,
		CreatedAt:         l.now().UTC(),
	}
	l.index(link)
	l.created[link.ID] = true

	inv.MatchedAmount = inv.MatchedAmount.Add(invoiceCredit)
	inv.RefreshStatus()
	l.touchedInvoices[inv.ID] = true

	tx.MatchedAmount = tx.MatchedAmount.Add(transactionCredit)
	tx.RefreshStatus()
	l.touchedTransactions[tx.ID] = true

	return link, nil
}

// DeleteLink removes a link and reverses the credits it applied. Sides that
// are not loaded in this ledger are left alone.
func (l *Ledger) DeleteLink(linkID string) error {
	link := l.links[linkID]
	if link == nil {
		return fmt.Errorf("link %s: %w", linkID, ErrNotFound)
	}

	if inv := l.invoices[link.InvoiceID]; inv != nil {
		inv.MatchedAmount = inv.MatchedAmount.Sub(link.InvoiceCredit)
		inv.RefreshStatus()
		l.touchedInvoices[inv.ID] = true
	}
	if tx := l.transactions[link.TransactionID]; tx != nil {
		tx.MatchedAmount = tx.MatchedAmount.Sub(link.TransactionCredit)
		tx.RefreshStatus()
		l.touchedTransactions[tx.ID] = true
	}

	l.unindex(link)
	if l.created[linkID] {
		delete(l.created, linkID)
	} else {
		l.deleted = append(l.deleted, linkID)
	}
	return nil
}

// ResetAutomatic deletes every non-manual link, then recomputes each
// participant's matched amount from the surviving manual links and clears
// invoice confidence. It must only be called on a ledger holding the full
// invoice, transaction and link collections. Returns the number of links removed.
func (l *Ledger) ResetAutomatic() (int, error) {
	removed := 0
	for _, link := range l.Links() {
		if !link.MatchType.IsAutomatic() {
			continue
		}
		if err := l.DeleteLink(link.ID); err != nil {
			return removed, err
		}
		removed++
	}

	invoiceCredits := make(map[int64]decimal.Decimal)
	transactionCredits := make(map[int64]decimal.Decimal)
	for _, link := range l.Links() {
		invoiceCredits[link.InvoiceID] = invoiceCredits[link.InvoiceID].Add(link.InvoiceCredit)
		transactionCredits[link.TransactionID] = transactionCredits[link.TransactionID].Add(link.TransactionCredit)
	}

	for _, inv := range l.Invoices() {
		inv.MatchedAmount = invoiceCredits[inv.ID]
		inv.Confidence = nil
		inv.RefreshStatus()
		l.touchedInvoices[inv.ID] = true
	}
	for _, tx := range l.Transactions() {
		tx.MatchedAmount = transactionCredits[tx.ID]
		tx.RefreshStatus()
		l.touchedTransactions[tx.ID] = true
	}
	return removed, nil
}

// RefreshStatuses recomputes the status of every loaded participant.
func (l *Ledger) RefreshStatuses() {
	for _, inv := range l.Invoices() {
		before := inv.Status
		inv.RefreshStatus()
		if inv.Status != before {
			l.touchedInvoices[inv.ID] = true
		}
	}
	for _, tx := range l.Transactions() {
		before := tx.Status
		tx.RefreshStatus()
		if tx.Status != before {
			l.touchedTransactions[tx.ID] = true
		}
	}
}

// TouchInvoice marks an invoice as changed outside link bookkeeping (notes).
func (l *Ledger) TouchInvoice(id int64) {
	if _, ok := l.invoices[id]; ok {
		l.touchedInvoices[id] = true
	}
}

// Changes returns the accumulated changeset in deterministic order.
func (l *Ledger) Changes() Changeset {
	var cs Changeset
	for _, id := range l.invoiceIDs {
		if l.touchedInvoices[id] {
			cs.Invoices = append(cs.Invoices, l.invoices[id])
		}
	}
	for _, id := range l.transactionIDs {
		if l.touchedTransactions[id] {
			cs.Transactions = append(cs.Transactions, l.transactions[id])
		}
	}
	for _, id := range l.linkIDs {
		if l.created[id] {
			cs.CreatedLinks = append(cs.CreatedLinks, l.links[id])
		}
	}
	cs.DeletedLinkIDs = append(cs.DeletedLinkIDs, l.deleted...)
	return cs
}

func (l *Ledger) index(link *Link) {
	if _, dup := l.links[link.ID]; dup {
		return
	}
	l.links[link.ID] = link
	l.linkIDs = append(l.linkIDs, link.ID)
	l.byInvoice[link.InvoiceID] = append(l.byInvoice[link.InvoiceID], link.ID)
	l.byTransaction[link.TransactionID] = append(l.byTransaction[link.TransactionID], link.ID)
}

func (l *Ledger) unindex(link *Link) {
	delete(l.links, link.ID)
	l.linkIDs = removeID(l.linkIDs, link.ID)
	l.byInvoice[link.InvoiceID] = removeID(l.byInvoice[link.InvoiceID], link.ID)
	l.byTransaction[link.TransactionID] = removeID(l.byTransaction[link.TransactionID], link.ID)
}

func (l *Ledger) resolve(ids []string) []*Link {
	out := make([]*Link, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.links[id])
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
