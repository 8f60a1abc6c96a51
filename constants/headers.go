package constants

// Column labels of the Yape "Reporte de Transacciones" export, columns A-F.
const (
	HeaderTransactionType = "Tipo de Transacción"
	HeaderOrigin          = "Origen"
	HeaderDestination     = "Destino"
	HeaderAmount          = "Monto"
	HeaderMessage         = "Mensaje"
	HeaderOperationDate   = "Fecha de operación"
)

// ExpectedHeaders is the fixed, ordered header set of the report.
var ExpectedHeaders = []string{
	HeaderTransactionType,
	HeaderOrigin,
	HeaderDestination,
	HeaderAmount,
	HeaderMessage,
	HeaderOperationDate,
}

// Workbook layout. Row 1 is the title, rows 2-4 hold metadata or blanks,
// row 5 holds the headers and data starts on row 6.
const (
	HeaderRowIndex = 4
	FirstDataRow   = HeaderRowIndex + 2
	MinSheetRows   = FirstDataRow
	ReportTitle    = "Reporte de Transacciones"
)

// OperationDateLayout is the Go layout for dd/MM/yyyy HH:mm:ss.
const OperationDateLayout = "02/01/2006 15:04:05"

// DefaultTimezone is the zone Yape timestamps are expressed in.
const DefaultTimezone = "America/Lima"
