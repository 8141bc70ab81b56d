package schema

import (
	"errors"
	"regexp"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

var reOpID = regexp.MustCompile(`^OP-\d{4}-\d{2}-\d{2}$`)

var errOpID = errors.New("op_id must match OP-YYYY-MM-DD")

type Operation struct{ ent.Schema }

func (Operation) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "operations"},
	}
}

func (Operation) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("op_id").
			NotEmpty().
			Unique().
			Validate(func(s string) error {
				if reOpID.MatchString(s) {
					return nil
				}
				return errOpID
			}),
		field.Time("op_date").
			SchemaType(map[string]string{dialect.Postgres: "timestamptz"}),
		field.Bool("complete").Default(false),
		field.JSON("payload", map[string]any{}).
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Operation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("op_date"),
		index.Fields("complete"),
	}
}
