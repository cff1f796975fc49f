// Package memory is an in-process Mirror used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finbot/internal/core"
	"finbot/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	rows  []core.Transaction
	added int
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// AppendTransaction stores the row and returns a synthetic reference.
func (m *Mirror) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, tx)
	m.added++
	return fmt.Sprintf("mem:%d", m.added), nil
}

func (m *Mirror) RemoveUser(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	removed := 0
	for _, tx := range m.rows {
		if tx.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, tx)
	}
	m.rows = kept
	return removed, nil
}

// Rows returns a copy of the mirrored rows in append order.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows...)
}
