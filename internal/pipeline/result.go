package pipeline

// RowError is a row that failed validation.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// SkippedRow is a blank data row.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Duplicate describes a valid row whose identity key matches an earlier row.
type Duplicate struct {
	Row          int            `json:"row"`
	Data         map[string]any `json:"data"`
	Reason       string         `json:"reason"`
	OriginalRow  int            `json:"originalRow"`
	OriginalData map[string]any `json:"originalData"`
}

// UploadResult is the import report returned by validate. It depends only on
// the uploaded bytes and file name.
type UploadResult struct {
	TotalRecords      int          `json:"totalRecords"`
	ValidRecords      int          `json:"validRecords"`
	InvalidRecords    int          `json:"invalidRecords"`
	DuplicateRecords  int          `json:"duplicateRecords"`
	SkippedEmptyRows  int          `json:"skippedEmptyRows"`
	SkippedRowDetails []SkippedRow `json:"skippedRowDetails"`
	Duplicates        []Duplicate  `json:"duplicates"`
	Errors            []RowError   `json:"errors"`
}
