package cart

import (
	"errors"
	"strconv"
	"strings"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
)

// ValidateQuantity interprets raw as a whole number and checks it against the available stock.
// The accepted quantity is returned unchanged; it is never clamped to the stock.
func ValidateQuantity(raw string, available int32) (int32, error) {
	requested, err := ParseQuantity(raw)
	if err != nil {
		return 0, err
	}
	if err := CheckQuantity(requested, available); err != nil {
		return 0, err
	}
	return int32(requested), nil
}

// ParseQuantity parses a decimal integer. Values outside the int64 range are
// reported as the nearest bound so that CheckQuantity yields NonPositive or ExceedsStock
// instead of NotNumeric.
func ParseQuantity(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	q, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return q, nil
		}
		return 0, checkouterrors.ErrNotNumeric
	}
	return q, nil
}

// CheckQuantity validates an already numeric quantity against the available stock.
func CheckQuantity(requested int64, available int32) error {
	if requested <= 0 {
		return checkouterrors.ErrNonPositive
	}
	if requested > int64(available) {
		return &checkouterrors.StockError{Requested: requested, Available: available}
	}
	return nil
}
