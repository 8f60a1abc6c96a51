package pipeline

import (
	"fmt"
	"time"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

// IdentityKey identifies a transaction across rows: the same instant, amount,
// sender and receiver.
type IdentityKey struct {
	OperationDate string
	Amount        string
	Origin        string
	Destination   string
}

// KeyOf derives the identity key of a record. The date is the UTC ISO-8601
// instant and the amount the canonical decimal string, so "50,00" and 50
// collide.
func KeyOf(r ParsedRecord) IdentityKey {
	return IdentityKey{
		OperationDate: r.OperationDate.UTC().Format(time.RFC3339),
		Amount:        r.Amount.String(),
		Origin:        r.Origin,
		Destination:   r.Destination,
	}
}

// DuplicateResult partitions records into first occurrences and repeats.
type DuplicateResult struct {
	Unique     []ParsedRecord
	Duplicates []Duplicate
}

// DetectDuplicates keeps the first record of each identity key, in input
// order, and reports every later one against it.
func DetectDuplicates(records []ParsedRecord) DuplicateResult {
	seen := make(map[IdentityKey]int, len(records))
	res := DuplicateResult{
		Unique:     make([]ParsedRecord, 0, len(records)),
		Duplicates: []Duplicate{},
	}

	for _, rec := range records {
		key := KeyOf(rec)
		if idx, ok := seen[key]; ok {
			original := res.Unique[idx]
			res.Duplicates = append(res.Duplicates, Duplicate{
				Row:          rec.Row,
				Data:         Snapshot(rec),
				Reason:       fmt.Sprintf("Duplicate of row %d", original.Row),
				OriginalRow:  original.Row,
				OriginalData: Snapshot(original),
			})
			continue
		}
		seen[key] = len(res.Unique)
		res.Unique = append(res.Unique, rec)
	}
	return res
}

// Snapshot renders a record keyed by the report's header labels.
func Snapshot(r ParsedRecord) map[string]any {
	return map[string]any{
		constants.HeaderTransactionType: r.TransactionType,
		constants.HeaderOrigin:          r.Origin,
		constants.HeaderDestination:     r.Destination,
		constants.HeaderAmount:          r.Amount.InexactFloat64(),
		constants.HeaderMessage:         r.Message,
		constants.HeaderOperationDate:   r.OperationDate.Format(constants.OperationDateLayout),
	}
}
