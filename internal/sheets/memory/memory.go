// Package memory is an in-process stand-in for the spreadsheet mirror.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"moneymanager/internal/core"
	ports "moneymanager/internal/sheets"
)

type Mirror struct {
	mu     sync.Mutex
	rows   []core.Transaction
	writes int
	err    error
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: []core.Transaction{}}
}

// ReplaceLedger stores a copy of txs and returns a synthetic range.
func (m *Mirror) ReplaceLedger(_ context.Context, txs []core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.rows = append([]core.Transaction{}, txs...)
	m.writes++
	return fmt.Sprintf("mem!A1:H%d", len(txs)+1), nil
}

func (m *Mirror) ReadLedger(_ context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.rows), nil
}

// Writes counts successful ReplaceLedger calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Fail makes every later call return err; nil restores normal operation.
func (m *Mirror) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
