package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Resolver resolves a relationship endpoint reference to a canonical
// object id, trying (in order) a well-formed-UUID direct lookup, the
// batch-local name map, and a case-insensitive database name lookup.
type Resolver struct {
	graph external.GraphService
}

// NewResolver constructs a Resolver.
func NewResolver(graph external.GraphService) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve returns the canonical object id for ref, or ok=false if it could
// not be resolved by any method. A database-name-lookup hit is cached into
// batch so subsequent references to the same name skip the database call.
func (r *Resolver) Resolve(ctx context.Context, projectID string, ref models.EntityRef, batch *BatchMap) (string, bool, error) {
	if ref.ID != "" {
		if _, err := uuid.Parse(ref.ID); err != nil {
			return "", false, nil
		}
		obj, err := r.graph.GetObject(ctx, ref.ID)
		if err != nil || obj == nil || obj.ProjectID != projectID || obj.DeletedAt != nil {
			return "", false, nil
		}
		return obj.ID, true, nil
	}

	if ref.Name == "" {
		return "", false, nil
	}

	if id, ok := batch.Get(ref.Name); ok {
		return id, true, nil
	}

	obj, err := r.graph.FindObjectByName(ctx, projectID, ref.Name)
	if err != nil {
		return "", false, err
	}
	if obj == nil {
		return "", false, nil
	}
	batch.Put(ref.Name, obj.ID)
	return obj.ID, true, nil
}
