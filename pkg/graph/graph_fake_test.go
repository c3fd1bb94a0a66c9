package graph

import (
	"context"
	"fmt"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

type fakeGraphService struct {
	objects       map[string]*models.GraphObject
	byName        map[string]*models.GraphObject
	nextID        int
	created       []models.GraphObject
	merged        map[string]map[string]interface{}
	relationships []models.GraphRelationship
	links         []models.ObjectChunkLink
	createRelErr  error
}

func newFakeGraphService() *fakeGraphService {
	return &fakeGraphService{
		objects: map[string]*models.GraphObject{},
		byName:  map[string]*models.GraphObject{},
		merged:  map[string]map[string]interface{}{},
	}
}

func (f *fakeGraphService) CreateObject(_ context.Context, obj models.GraphObject) (string, error) {
	f.nextID++
	id := fmt.Sprintf("obj-%d", f.nextID)
	obj.ID = id
	f.objects[id] = &obj
	f.byName[obj.Properties["name"].(string)] = &obj
	f.created = append(f.created, obj)
	return id, nil
}

func (f *fakeGraphService) MergeObjectProperties(_ context.Context, objectID string, properties map[string]interface{}) error {
	f.merged[objectID] = properties
	if obj, ok := f.objects[objectID]; ok {
		for k, v := range properties {
			obj.Properties[k] = v
		}
	}
	return nil
}

func (f *fakeGraphService) GetObject(_ context.Context, objectID string) (*models.GraphObject, error) {
	obj, ok := f.objects[objectID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return obj, nil
}

func (f *fakeGraphService) FindObjectByName(_ context.Context, _ string, name string) (*models.GraphObject, error) {
	return f.byName[name], nil
}

func (f *fakeGraphService) ListTags(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeGraphService) CreateRelationship(_ context.Context, rel models.GraphRelationship) (string, error) {
	if f.createRelErr != nil {
		return "", f.createRelErr
	}
	f.relationships = append(f.relationships, rel)
	return "rel-1", nil
}

func (f *fakeGraphService) LinkObjectToChunk(_ context.Context, link models.ObjectChunkLink) error {
	f.links = append(f.links, link)
	return nil
}

func (f *fakeGraphService) ListNeighbors(context.Context, string, int) ([]models.RelatedObject, error) {
	return nil, nil
}
