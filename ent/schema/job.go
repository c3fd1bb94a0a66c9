package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Job holds the schema definition for the Job entity: one scheduled unit of
// extraction work over a source document or inline text.
type Job struct {
	ent.Schema
}

// Fields of the Job.
func (Job) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("job_id").
			Unique().
			Immutable(),
		field.Enum("source_type").
			Values("document", "manual", "api", "bulk_import"),
		field.String("source_id").
			Optional().
			Nillable(),
		field.JSON("source_metadata", map[string]interface{}{}).
			Optional().
			Comment("Free-form map; may carry filename/url/inline text"),
		field.String("project_id").
			Comment("Tenant scope this job writes into"),
		field.String("subject_id").
			Optional().
			Nillable().
			Comment("Requester; gates notification dispatch"),
		field.Enum("status").
			Values("queued", "running", "completed", "requires_review", "failed").
			Default("queued"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("Worker process that last claimed this job; scopes startup orphan cleanup"),
		field.Int("attempts").
			Default(0),
		field.Int("processed_items").
			Optional().
			Nillable().
			Comment("Best-effort entity progress counter; concurrent writers race, last write wins"),
		field.Int("total_items").
			Optional().
			Nillable(),
		field.JSON("extraction_config", map[string]interface{}{}).
			Optional().
			Comment("Per-job overrides: allowed types, thresholds, method, timeout, batch size, similarity threshold"),
		field.JSON("result", map[string]interface{}{}).
			Optional(),
		field.JSON("debug_info", map[string]interface{}{}).
			Optional().
			Comment("Timeline + threshold audit + raw LLM response envelope"),
		field.String("error_message").
			Optional().
			Nillable(),
	}
}

// Edges of the Job.
func (Job) Edges() []ent.Edge {
	return nil
}

// Indexes of the Job.
func (Job) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("project_id"),
		index.Fields("status", "created_at"),
		index.Fields("status", "updated_at"),
	}
}
