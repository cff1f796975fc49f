// Package sheets defines the spreadsheet mirror of the ledger.
package sheets

import (
	"context"

	"finbot/internal/core"
)

type (
	TransactionAppender interface {
		// AppendTransaction writes tx as one row and returns a reference to it.
		AppendTransaction(ctx context.Context, tx core.Transaction) (string, error)
	}

	UserRemover interface {
		// RemoveUser deletes every row of the user and reports how many went.
		RemoveUser(ctx context.Context, userID int64) (int, error)
	}

	Mirror interface {
		TransactionAppender
		UserRemover
	}
)
