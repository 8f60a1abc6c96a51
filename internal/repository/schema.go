package repository

import (
	"fmt"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"

	entschema "github.com/joseph-ayodele/yape-tracker/db/ent/schema"
)

var (
	// TransactionsTable holds the schema information for the "transactions" table.
	TransactionsTable = mustTable(entschema.Transaction{})
	// UploadHistoryTable holds the schema information for the "upload_history" table.
	UploadHistoryTable = mustTable(entschema.UploadHistory{})
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		TransactionsTable,
		UploadHistoryTable,
	}
)

var (
	transactionsTable  = TransactionsTable.Name
	uploadHistoryTable = UploadHistoryTable.Name

	// select lists follow field declaration order, which the scanners rely on
	transactionSelectColumns   = columnNames(TransactionsTable)
	uploadHistorySelectColumns = columnNames(UploadHistoryTable)
)

func mustTable(s ent.Interface) *schema.Table {
	t, err := tableFromSchema(s)
	if err != nil {
		panic(err)
	}
	return t
}

// tableFromSchema turns an ent schema declaration into the migration table
// it describes. The "id" field becomes the auto-increment primary key and
// optional fields become nullable columns.
func tableFromSchema(s ent.Interface) (*schema.Table, error) {
	name := ""
	for _, a := range s.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok && ann.Table != "" {
			name = ann.Table
		}
	}
	if name == "" {
		return nil, fmt.Errorf("schema %T: missing entsql table annotation", s)
	}

	t := schema.NewTable(name)
	byField := make(map[string]*schema.Column)
	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("table %s: field %s: %w", name, d.Name, d.Err)
		}
		col := &schema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			SchemaType: d.SchemaType,
			Size:       int64(d.Size),
			Unique:     d.Unique,
			Nullable:   d.Optional,
		}
		if d.StorageKey != "" {
			col.Name = d.StorageKey
		}
		if d.Name == "id" {
			col.Increment = true
			t.AddPrimary(col)
		} else {
			t.AddColumn(col)
		}
		byField[d.Name] = col
	}
	if len(t.PrimaryKey) == 0 {
		return nil, fmt.Errorf("table %s: missing id field", name)
	}

	for _, i := range s.Indexes() {
		d := i.Descriptor()
		cols := make([]*schema.Column, 0, len(d.Fields))
		for _, fieldName := range d.Fields {
			col, ok := byField[fieldName]
			if !ok {
				return nil, fmt.Errorf("table %s: index on unknown field %q", name, fieldName)
			}
			cols = append(cols, col)
		}
		t.AddIndex(d.StorageKey, d.Unique, columnNamesOf(cols))
	}
	return t, nil
}

func columnNames(t *schema.Table) []string {
	return columnNamesOf(t.Columns)
}

func columnNamesOf(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
