package constants

// UploadPhase names the two calls of the import protocol.
type UploadPhase string

// Stable values, used as metric labels and log attributes.
const (
	PhaseValidate UploadPhase = "validate"
	PhaseConfirm  UploadPhase = "confirm"
)

// RowOutcome classifies one data row of an upload.
type RowOutcome string

const (
	RowValid     RowOutcome = "valid"
	RowInvalid   RowOutcome = "invalid"
	RowDuplicate RowOutcome = "duplicate"
	RowEmpty     RowOutcome = "empty"
)

// EmptyRowReason is recorded for every skipped blank row.
const EmptyRowReason = "Empty row (all cells are blank)"
