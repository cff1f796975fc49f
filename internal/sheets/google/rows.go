package google

import (
	"math"
	"strconv"
	"strings"

	"finbot/internal/core"
)

const (
	firstColumn = "A"
	lastColumn  = "F"

	// Position of the user id in a row: Date, User, Type, Category, Amount, ID.
	userColumn = 1

	rowTimeLayout = "2006-01-02 15:04:05"
)

func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.CreatedAt.UTC().Format(rowTimeLayout),
		strconv.FormatInt(tx.UserID, 10),
		tx.Kind.Label(),
		tx.Category,
		tx.Amount.String(),
		strconv.FormatInt(tx.ID, 10),
	}
}

// filterUserRows drops the rows belonging to userID. Rows whose user cell is
// not an integer, such as a header, are kept.
func filterUserRows(rows [][]any, userID int64) ([][]any, int) {
	kept := make([][]any, 0, len(rows))
	removed := 0
	for _, row := range rows {
		if len(row) > userColumn {
			if id, ok := cellInt64(row[userColumn]); ok && id == userID {
				removed++
				continue
			}
		}
		kept = append(kept, row)
	}
	return kept, removed
}

// cellInt64 reads an integer from a cell as the Sheets API returns it: a JSON
// number for unformatted values or a string otherwise.
func cellInt64(v any) (int64, bool) {
	switch c := v.(type) {
	case float64:
		if c != math.Trunc(c) {
			return 0, false
		}
		return int64(c), true
	case int64:
		return c, true
	case int:
		return int64(c), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(c), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
