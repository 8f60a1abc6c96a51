package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

// ParsedRecord is one valid data row, typed.
type ParsedRecord struct {
	Row             int
	TransactionType string
	Origin          string
	Destination     string
	Amount          decimal.Decimal
	Message         string
	OperationDate   time.Time
	PhoneNumber     *string
}

// RowValidationError lists every constraint a row violated.
type RowValidationError struct {
	Violations []string
}

func (e *RowValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// BuildRowJSONSchema returns the JSON-Schema (draft 2020-12 subset) one data
// row must satisfy, keyed by the report's header labels.
func BuildRowJSONSchema() map[string]any {
	props := map[string]any{
		constants.HeaderTransactionType: map[string]any{"type": "string", "minLength": 1},
		constants.HeaderOrigin:          map[string]any{"type": "string", "minLength": 1},
		constants.HeaderDestination:     map[string]any{"type": "string", "minLength": 1},
		constants.HeaderAmount:          map[string]any{"type": []string{"string", "number"}},
		constants.HeaderMessage:         map[string]any{"type": []string{"string", "null"}},
		constants.HeaderOperationDate:   map[string]any{"type": "string", "minLength": 1},
	}
	required := []string{
		constants.HeaderTransactionType,
		constants.HeaderOrigin,
		constants.HeaderDestination,
		constants.HeaderAmount,
		constants.HeaderOperationDate,
	}

	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// RowSchema validates and coerces one row's label→value map.
type RowSchema struct {
	schema   *jsonschema.Schema
	location *time.Location
}

// NewRowSchema compiles the row schema. Operation dates are read in loc.
func NewRowSchema(loc *time.Location) (*RowSchema, error) {
	if loc == nil {
		loc = time.UTC
	}
	b, err := json.Marshal(BuildRowJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("row.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("row.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RowSchema{schema: schema, location: loc}, nil
}

// Parse turns fields into a ParsedRecord. On failure the error is a
// *RowValidationError carrying every violation found.
func (s *RowSchema) Parse(fields map[string]any) (*ParsedRecord, error) {
	violations, failed := s.validate(fields)

	rec := &ParsedRecord{}
	rec.TransactionType, _ = fields[constants.HeaderTransactionType].(string)
	rec.Origin, _ = fields[constants.HeaderOrigin].(string)
	rec.Destination, _ = fields[constants.HeaderDestination].(string)
	rec.Message, _ = fields[constants.HeaderMessage].(string)

	if v, ok := fields[constants.HeaderAmount]; ok && !failed[constants.HeaderAmount] {
		amount, err := ParseAmount(v)
		if err != nil {
			violations = append(violations, fieldMessage(constants.HeaderAmount, err.Error()))
		}
		rec.Amount = amount
	}

	if v, ok := fields[constants.HeaderOperationDate].(string); ok && !failed[constants.HeaderOperationDate] {
		date, err := ParseOperationDate(v, s.location)
		if err != nil {
			violations = append(violations, fieldMessage(constants.HeaderOperationDate, err.Error()))
		}
		rec.OperationDate = date
	}

	if len(violations) > 0 {
		return nil, &RowValidationError{Violations: violations}
	}
	return rec, nil
}

type fieldViolation struct {
	field   string
	message string
}

// validate runs the JSON schema and returns its violations in header order,
// plus the set of fields that already failed.
func (s *RowSchema) validate(fields map[string]any) ([]string, map[string]bool) {
	failed := map[string]bool{}
	err := s.schema.Validate(fields)
	if err == nil {
		return nil, failed
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}, failed
	}

	var leaves []fieldViolation
	collectLeaves(verr, &leaves)
	sort.SliceStable(leaves, func(i, j int) bool {
		return headerPosition(leaves[i].field) < headerPosition(leaves[j].field)
	})

	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		if l.field == "" {
			out = append(out, l.message)
			continue
		}
		failed[l.field] = true
		out = append(out, fieldMessage(l.field, l.message))
	}
	return out, failed
}

func collectLeaves(e *jsonschema.ValidationError, out *[]fieldViolation) {
	if len(e.Causes) == 0 {
		*out = append(*out, fieldViolation{field: pointerField(e.InstanceLocation), message: e.Message})
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, out)
	}
}

// pointerField returns the top-level property named by a JSON pointer. The
// validator percent-encodes pointer segments, so "/Fecha%20de%20operaci%C3%B3n"
// names "Fecha de operación".
func pointerField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if i := strings.IndexByte(ptr, '/'); i >= 0 {
		ptr = ptr[:i]
	}
	if unescaped, err := url.PathUnescape(ptr); err == nil {
		ptr = unescaped
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(ptr)
}

func headerPosition(field string) int {
	if field == "" {
		return -1
	}
	if i := slices.Index(constants.ExpectedHeaders, field); i >= 0 {
		return i
	}
	return len(constants.ExpectedHeaders)
}

func fieldMessage(field, msg string) string {
	return field + ": " + msg
}

var (
	amountPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	datePattern   = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`)
)

// ParseAmount coerces a cell value into a positive decimal. Strings may carry
// the "S/" currency prefix, spaces and either decimal separator.
func ParseAmount(v any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch val := v.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q", val.String())
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case string:
		normalized, ok := normalizeAmount(val)
		if !ok {
			return decimal.Zero, fmt.Errorf("invalid amount %q", val)
		}
		parsed, err := decimal.NewFromString(normalized)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q", val)
		}
		d = parsed
	default:
		return decimal.Zero, fmt.Errorf("invalid amount %v", v)
	}

	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than 0, got %s", d.String())
	}
	if !d.Equal(d.Round(amountScale)) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimal places", d.String(), amountScale)
	}
	return d, nil
}

// amountScale matches the two decimal places the amount column stores.
const amountScale = 2

// normalizeAmount rewrites a localized amount into a plain decimal literal.
// With both separators present the right-most one is the decimal point; a
// lone separator is a decimal point, a repeated one groups thousands.
func normalizeAmount(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.EqualFold(s[:2], "s/") {
		s = s[2:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", false
	}

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		decimalSep, thousandsSep := ".", ","
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			decimalSep, thousandsSep = ",", "."
		}
		if strings.Count(s, decimalSep) != 1 {
			return "", false
		}
		i := strings.LastIndex(s, decimalSep)
		if !thousandsGrouped(s[:i], thousandsSep) {
			return "", false
		}
		s = strings.ReplaceAll(s[:i], thousandsSep, "") + "." + s[i+1:]
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		if !thousandsGrouped(s, ",") {
			return "", false
		}
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		if !thousandsGrouped(s, ".") {
			return "", false
		}
		s = strings.ReplaceAll(s, ".", "")
	}

	if !amountPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// thousandsGrouped reports whether sep splits s into a leading group of one to
// three digits followed by groups of exactly three.
func thousandsGrouped(s, sep string) bool {
	groups := strings.Split(strings.TrimLeft(s, "+-"), sep)
	if n := len(groups[0]); n == 0 || n > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// ParseOperationDate reads an exact dd/MM/yyyy HH:mm:ss timestamp in loc.
func ParseOperationDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected dd/MM/yyyy HH:mm:ss", raw)
	}
	t, err := time.ParseInLocation(constants.OperationDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected dd/MM/yyyy HH:mm:ss", raw)
	}
	return t, nil
}

var phonePattern = regexp.MustCompile(`\+?\d{11,15}`)

// ExtractPhoneNumber finds the account phone number in a report file name,
// e.g. "ReporteTransacciones+51922076456.xlsx". It returns nil if none is found.
func ExtractPhoneNumber(fileName string) *string {
	match := phonePattern.FindString(fileName)
	if match == "" {
		return nil
	}
	return &match
}
