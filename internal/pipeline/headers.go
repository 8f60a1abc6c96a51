package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
)

// ColumnMap maps each expected header label to its 0-based column.
type ColumnMap map[string]int

// normalizeLabel trims a header label and folds it to NFC, so labels typed
// with decomposed accents compare equal to the expected ones.
func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ResolveHeaders checks that every expected label is present in header and
// returns the column of each. Order, extra labels and blank cells are tolerated.
func ResolveHeaders(header []string) (ColumnMap, error) {
	positions := make(map[string]int, len(header))
	actual := make([]string, 0, len(header))
	for i, h := range header {
		label := normalizeLabel(h)
		if label == "" {
			continue
		}
		actual = append(actual, label)
		if _, seen := positions[label]; !seen {
			positions[label] = i
		}
	}

	columns := make(ColumnMap, len(constants.ExpectedHeaders))
	var missing []string
	for _, expected := range constants.ExpectedHeaders {
		col, ok := positions[normalizeLabel(expected)]
		if !ok {
			missing = append(missing, expected)
			continue
		}
		columns[expected] = col
	}

	if len(missing) > 0 {
		return nil, &common.InvalidHeadersError{
			Expected: append([]string(nil), constants.ExpectedHeaders...),
			Actual:   actual,
			Missing:  missing,
		}
	}
	return columns, nil
}
