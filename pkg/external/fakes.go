package external

import (
	"context"
	"sync"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

// NopTracer is a Tracer that opens spans which do nothing. Used when no
// tracing backend is configured.
type NopTracer struct{}

// StartSpan implements Tracer.
func (NopTracer) StartSpan(ctx context.Context, _ string, _ map[string]interface{}) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) SetAttributes(map[string]interface{}) {}
func (nopSpan) RecordError(error)                     {}
func (nopSpan) End()                                  {}

// InMemoryGraphService is a GraphService backed by in-process maps, useful
// for tests and for single-process deployments without an external graph
// store.
type InMemoryGraphService struct {
	mu            sync.Mutex
	objects       map[string]models.GraphObject
	relationships map[string]models.GraphRelationship
	links         []models.ObjectChunkLink
	tags          map[string][]string
	nextID        int
}

// NewInMemoryGraphService constructs an empty InMemoryGraphService.
func NewInMemoryGraphService() *InMemoryGraphService {
	return &InMemoryGraphService{
		objects:       make(map[string]models.GraphObject),
		relationships: make(map[string]models.GraphRelationship),
		tags:          make(map[string][]string),
	}
}

func (s *InMemoryGraphService) genID(prefix string) string {
	s.nextID++
	return prefix + "-" + itoa(s.nextID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// CreateObject implements GraphService.
func (s *InMemoryGraphService) CreateObject(_ context.Context, obj models.GraphObject) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj.ID == "" {
		obj.ID = s.genID("obj")
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}
	s.objects[obj.ID] = obj
	return obj.ID, nil
}

// MergeObjectProperties implements GraphService.
func (s *InMemoryGraphService) MergeObjectProperties(_ context.Context, objectID string, properties map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectID]
	if !ok {
		return errNotFound
	}
	if obj.Properties == nil {
		obj.Properties = map[string]interface{}{}
	}
	for k, v := range properties {
		obj.Properties[k] = v
	}
	s.objects[objectID] = obj
	return nil
}

// GetObject implements GraphService.
func (s *InMemoryGraphService) GetObject(_ context.Context, objectID string) (*models.GraphObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectID]
	if !ok {
		return nil, errNotFound
	}
	return &obj, nil
}

// FindObjectByName implements GraphService, returning the most recently
// created matching object in the project (case-insensitive).
func (s *InMemoryGraphService) FindObjectByName(_ context.Context, projectID, name string) (*models.GraphObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.GraphObject
	for id := range s.objects {
		obj := s.objects[id]
		if obj.ProjectID != projectID || obj.DeletedAt != nil {
			continue
		}
		if !equalFold(obj.Properties["name"], name) {
			continue
		}
		if best == nil || obj.CreatedAt.After(best.CreatedAt) {
			o := obj
			best = &o
		}
	}
	return best, nil
}

func equalFold(v interface{}, name string) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return foldEqual(s, name)
}

func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ListTags implements GraphService.
func (s *InMemoryGraphService) ListTags(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[projectID], nil
}

// CreateRelationship implements GraphService.
func (s *InMemoryGraphService) CreateRelationship(_ context.Context, rel models.GraphRelationship) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rel.ID == "" {
		rel.ID = s.genID("rel")
	}
	key := rel.SourceID + ">" + rel.Type + ">" + rel.TargetID
	if _, exists := s.relationships[key]; exists {
		return "", errDuplicate
	}
	s.relationships[key] = rel
	return rel.ID, nil
}

// LinkObjectToChunk implements GraphService.
func (s *InMemoryGraphService) LinkObjectToChunk(_ context.Context, link models.ObjectChunkLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

// ListNeighbors implements GraphService. The in-memory fake has no edge
// traversal index, so it always returns an empty, non-error result.
func (s *InMemoryGraphService) ListNeighbors(_ context.Context, _ string, _ int) ([]models.RelatedObject, error) {
	return nil, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	errNotFound  = sentinelError("not found")
	errDuplicate = sentinelError("duplicate")
)
