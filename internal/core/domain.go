package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind is the class of a transaction.
	Kind string

	Transaction struct {
		ID        int64
		UserID    int64
		Kind      Kind
		Category  string
		Amount    Money
		CreatedAt time.Time
	}
)

var (
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrUnknownCategory = errors.New("category does not belong to kind")
	ErrInvalidUser     = errors.New("invalid user id")
)

var (
	incomeCategories  = []string{"Work", "Freelance", "Bonus", "Other"}
	expenseCategories = []string{"Store", "Transit", "Café", "Credit", "Other"}
)

// Kinds returns every transaction kind in display order.
func Kinds() []Kind {
	return []Kind{Income, Expense}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Label returns the human-readable name used in replies and exports.
func (k Kind) Label() string {
	switch k {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return string(k)
	}
}

// ParseKind accepts the stored form ("income") or the label ("Income").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Categories returns a copy of the fixed category set for k.
func Categories(k Kind) []string {
	switch k {
	case Income:
		return slices.Clone(incomeCategories)
	case Expense:
		return slices.Clone(expenseCategories)
	default:
		return nil
	}
}

// HasCategory reports whether category belongs to the set of k.
func HasCategory(k Kind, category string) bool {
	return slices.Contains(Categories(k), category)
}

// ValidateEntry checks the fields a caller supplies to a ledger insert.
func ValidateEntry(userID int64, k Kind, category string, amount Money) error {
	if userID == 0 {
		return ErrInvalidUser
	}
	if !k.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
	if !HasCategory(k, category) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownCategory, category, k)
	}
	return amount.Validate()
}

func (t Transaction) Validate() error {
	return ValidateEntry(t.UserID, t.Kind, t.Category, t.Amount)
}

// StorageError marks a failure of the storage layer itself, as opposed to a
// validation failure of the caller's input.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage returns nil for a nil err.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err came from the storage layer.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
