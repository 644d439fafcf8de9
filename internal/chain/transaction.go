package chain

import (
	"fmt"
	"math"
	"strings"

	"etl-records/internal/record"
)

// TransactionBuilder returns the builder for transaction records:
// amount -> currency -> amount_minor -> timestamp.
func TransactionBuilder(rules TransactionRules) Builder {
	return func() *Chain {
		return New(record.KindTransaction,
			txAmount(rules.MaxAmount),
			txCurrency(rules.Currencies),
			txAmountMinor(),
			timestampLink(),
		)
	}
}

// maxMinorUnits is float64(math.MaxInt64), which rounds up to 2^63.
const maxMinorUnits = float64(math.MaxInt64)

func txAmount(max float64) Link {
	return NewLink("amount", func(rec record.Record) (record.Record, error) {
		amount, err := requireNumber(rec, "amount")
		if err != nil {
			return rec, err
		}
		if amount <= 0 {
			return rec, Rejectf("amount must be positive, got %v", amount)
		}
		if max > 0 && amount > max {
			return rec, Rejectf("amount %v exceeds limit %v", amount, max)
		}
		// amount_minor must fit in an int64.
		if amount*100 >= maxMinorUnits {
			return rec, Rejectf("amount %v too large", amount)
		}
		return rec.With("amount", amount), nil
	})
}

func txCurrency(allowed []string) Link {
	return NewLink("currency", func(rec record.Record) (record.Record, error) {
		cur, err := requireString(rec, "currency")
		if err != nil {
			return rec, err
		}
		cur = strings.ToUpper(cur)
		if !isCurrencyCode(cur) {
			return rec, Rejectf("malformed currency %q", cur)
		}
		if len(allowed) > 0 && !contains(allowed, cur) {
			return rec, Rejectf("unsupported currency %q", cur)
		}
		return rec.With("currency", cur), nil
	})
}

// txAmountMinor derives the amount in minor units (cents). It relies on the
// amount link having stored a float64.
func txAmountMinor() Link {
	return NewLink("amount_minor", func(rec record.Record) (record.Record, error) {
		amount, ok := rec.Fields["amount"].(float64)
		if !ok {
			return rec, fmt.Errorf("amount not normalised before amount_minor")
		}
		return rec.With("amount_minor", int64(math.Round(amount*100))), nil
	})
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
