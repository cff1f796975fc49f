package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"finbot/internal/core"
	"finbot/internal/retry"
	ports "finbot/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Transactions"

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON wins over CredentialsFile; with neither set the standard
// GOOGLE_APPLICATION_CREDENTIALS file is read.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	policy        retry.Policy
}

var _ ports.Mirror = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}

	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror ready", "sheet", sheet)
	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheet:         sheet,
		policy:        retry.DefaultPolicy(isTransient),
	}, nil
}

func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// isTransient reports rate limiting and server-side failures of the Sheets API.
func isTransient(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!%s:%s", c.sheet, firstColumn, lastColumn)
}

func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	var ref string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		if resp.Updates != nil {
			ref = resp.Updates.UpdatedRange
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("append row to sheet %s: %w", c.sheet, err)
	}

	slog.DebugContext(ctx, "Transaction appended to sheet",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"ref", ref)
	return ref, nil
}

// RemoveUser rewrites the sheet without the user's rows.
func (c *Client) RemoveUser(ctx context.Context, userID int64) (int, error) {
	var current [][]any
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		current = resp.Values
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read sheet %s: %w", c.sheet, err)
	}

	kept, removed := filterUserRows(current, userID)
	if removed == 0 {
		return 0, nil
	}

	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.dataRange(), &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear sheet %s: %w", c.sheet, err)
	}

	if len(kept) > 0 {
		start := fmt.Sprintf("%s!%s1", c.sheet, firstColumn)
		err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
			_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: kept}).
				ValueInputOption("RAW").
				Context(ctx).Do()
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("rewrite sheet %s: %w", c.sheet, err)
		}
	}

	slog.InfoContext(ctx, "User rows removed from sheet",
		"user_id", userID,
		"removed", removed,
		"kept", len(kept))
	return removed, nil
}
