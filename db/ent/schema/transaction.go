package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// amountSchemaType stores soles with two decimal places.
var amountSchemaType = map[string]string{
	dialect.Postgres: "numeric(14,2)",
	dialect.SQLite:   "decimal(14,2)",
}

type Transaction struct{ ent.Schema }

func (Transaction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "transactions"},
	}
}

func (Transaction) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").Immutable(),
		field.String("transaction_type").NotEmpty(),
		field.String("origin").NotEmpty(),
		field.String("destination").NotEmpty(),
		field.Float("amount").
			Positive().
			SchemaType(amountSchemaType),
		field.Text("message").Optional().Nillable(),
		field.Time("operation_date").Immutable(),
		field.String("phone_number").Optional().Nillable(),
		field.String("status").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Transaction) Indexes() []ent.Index {
	return []ent.Index{
		// identity of a transaction; imports insert with ON CONFLICT DO NOTHING
		index.Fields("operation_date", "amount", "origin", "destination").
			Unique().
			StorageKey("transaction_identity"),
		index.Fields("transaction_type", "operation_date").
			StorageKey("transaction_type_operation_date"),
	}
}
