package sheets

import (
	"context"

	"moneymanager/internal/core"
)

// Ports for the spreadsheet mirror of the ledger.
type (
	// LedgerWriter replaces the mirrored ledger with txs and returns the
	// written range reference.
	LedgerWriter interface {
		ReplaceLedger(ctx context.Context, txs []core.Transaction) (rowRef string, err error)
	}

	// LedgerReader returns the ledger as currently mirrored, in sheet order.
	LedgerReader interface {
		ReadLedger(ctx context.Context) ([]core.Transaction, error)
	}

	LedgerMirror interface {
		LedgerWriter
		LedgerReader
	}
)
