package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UploadHistory is one confirmed import.
type UploadHistory struct{ ent.Schema }

func (UploadHistory) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "upload_history"},
	}
}

func (UploadHistory) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").Immutable(),
		field.String("file_name").NotEmpty(),
		field.String("phone_number").Optional().Nillable(),
		field.Int("total_records").NonNegative(),
		field.Int("successful_records").NonNegative(),
		field.Int("failed_records").NonNegative(),
		field.Int("duplicate_records").NonNegative(),
		// JSON array of row errors
		field.Text("errors").Optional().Nillable(),
		// sha256 of the uploaded workbook, used by the inbox to skip re-imports
		field.Bytes("content_hash").Optional().Nillable(),
		field.Time("upload_date").Default(time.Now).Immutable(),
	}
}

func (UploadHistory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("content_hash").
			StorageKey("upload_history_content_hash"),
	}
}
