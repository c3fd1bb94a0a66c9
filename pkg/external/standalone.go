package external

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

// SQLProjectStore reads tenant-scope project records directly from the
// projects table: a table this worker consumes but does not own or
// migrate (it carries no matching ent schema). The db parameter should be
// the *sql.DB from database.Client.DB().
type SQLProjectStore struct {
	db *sql.DB
}

// NewSQLProjectStore constructs a SQLProjectStore.
func NewSQLProjectStore(db *sql.DB) *SQLProjectStore {
	return &SQLProjectStore{db: db}
}

// GetProject implements coordinator.ProjectStore.
func (s *SQLProjectStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var (
		organizationID  string
		extractionCfg   []byte
		chunkingCfg     []byte
		autoExtractCfg  []byte
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT organization_id, extraction_config, chunking_config, auto_extract_config
		 FROM projects WHERE id = $1`,
		projectID,
	).Scan(&organizationID, &extractionCfg, &chunkingCfg, &autoExtractCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}

	project := &models.Project{ProjectID: projectID, OrganizationID: organizationID}

	if len(extractionCfg) > 0 {
		project.ExtractionConfig = &models.ExtractionConfig{}
		if err := json.Unmarshal(extractionCfg, project.ExtractionConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extraction_config for project %s: %w", projectID, err)
		}
	}
	if len(chunkingCfg) > 0 {
		project.ChunkingConfig = &models.ChunkingConfig{}
		if err := json.Unmarshal(chunkingCfg, project.ChunkingConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunking_config for project %s: %w", projectID, err)
		}
	}
	if len(autoExtractCfg) > 0 {
		project.AutoExtract = &models.AutoExtractConfig{}
		if err := json.Unmarshal(autoExtractCfg, project.AutoExtract); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auto_extract_config for project %s: %w", projectID, err)
		}
	}

	return project, nil
}

// NoopEmbeddingsService is an EmbeddingsService for deployments without a
// configured embedding backend: it embeds nothing and matches nothing, so
// vector_similarity linking always creates a new object and context
// loading returns no entities, rather than failing the job.
type NoopEmbeddingsService struct{}

// EmbedDocuments implements EmbeddingsService.
func (NoopEmbeddingsService) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

// SearchByVector implements EmbeddingsService.
func (NoopEmbeddingsService) SearchByVector(_ context.Context, _ []float32, _ VectorSearchOptions) ([]VectorMatch, error) {
	return nil, nil
}

// unconfiguredServiceError is returned by the Unconfigured* stand-ins when
// a job actually needs the collaborator they stand in for.
type unconfiguredServiceError struct {
	service string
}

func (e unconfiguredServiceError) Error() string {
	return fmt.Sprintf("%s is not configured for this deployment", e.service)
}

// UnconfiguredDocumentsService rejects every lookup. Used when a
// deployment only ever enqueues SourceManual jobs and has no document
// store to talk to.
type UnconfiguredDocumentsService struct{}

// Get implements DocumentsService.
func (UnconfiguredDocumentsService) Get(_ context.Context, _ string) (*models.Document, error) {
	return nil, unconfiguredServiceError{service: "document store"}
}

// UnconfiguredChunkerService rejects every call. Used alongside
// UnconfiguredDocumentsService.
type UnconfiguredChunkerService struct{}

// ChunkWithMetadata implements ChunkerService.
func (UnconfiguredChunkerService) ChunkWithMetadata(_ context.Context, _ string, _ *models.ChunkingConfig) ([]ChunkedText, error) {
	return nil, unconfiguredServiceError{service: "chunker"}
}

// filePack is the YAML-on-disk shape of one installable schema pack,
// converted to models.SchemaPack on load.
type filePack struct {
	Name                string                          `yaml:"name"`
	Version             string                          `yaml:"version"`
	ObjectSchemas       map[string]fileObjectSchema      `yaml:"object_schemas"`
	RelationshipSchemas map[string]fileRelationshipSchema `yaml:"relationship_schemas"`
	ExtractionPrompts   map[string]string               `yaml:"extraction_prompts"`
	DefaultPromptKey    string                          `yaml:"default_prompt_key"`
}

type fileObjectSchema struct {
	Description string                 `yaml:"description"`
	Properties  map[string]interface{} `yaml:"properties"`
	Required    []string               `yaml:"required"`
}

type fileRelationshipSchema struct {
	Description     string   `yaml:"description"`
	AllowedSrcTypes []string `yaml:"allowed_src_types"`
	AllowedDstTypes []string `yaml:"allowed_dst_types"`
}

// FilePackService is a TemplatePackService backed by a directory of
// <pack-name>.yaml files, one installable schema pack each. Every pack in
// the directory is active for every project: there is no per-project
// install/assignment control plane in a single-process deployment, so
// AssignDefaultPack only logs that the requested pack is expected to
// already be present on disk.
type FilePackService struct {
	dir   string
	packs []models.SchemaPack
}

// NewFilePackService loads every *.yaml file in dir as a schema pack. A
// missing directory yields an empty, valid pack set (ListActivePacks
// returns none, and schemapack.Resolver surfaces ErrNoSchemas).
func NewFilePackService(dir string) (*FilePackService, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("schema pack directory does not exist, starting with no installed packs", "dir", dir)
			return &FilePackService{dir: dir}, nil
		}
		return nil, fmt.Errorf("failed to read schema pack directory %s: %w", dir, err)
	}

	var packs []models.SchemaPack
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema pack %s: %w", path, err)
		}

		var fp filePack
		if err := yaml.Unmarshal(data, &fp); err != nil {
			return nil, fmt.Errorf("failed to parse schema pack %s: %w", path, err)
		}

		packs = append(packs, fp.toModel())
	}

	return &FilePackService{dir: dir, packs: packs}, nil
}

func (fp filePack) toModel() models.SchemaPack {
	objectSchemas := make(map[string]models.ObjectTypeSchema, len(fp.ObjectSchemas))
	for name, s := range fp.ObjectSchemas {
		objectSchemas[name] = models.ObjectTypeSchema{
			Description: s.Description,
			Properties:  s.Properties,
			Required:    s.Required,
		}
	}
	relationshipSchemas := make(map[string]models.RelationshipTypeSchema, len(fp.RelationshipSchemas))
	for name, s := range fp.RelationshipSchemas {
		relationshipSchemas[name] = models.RelationshipTypeSchema{
			Description:     s.Description,
			AllowedSrcTypes: s.AllowedSrcTypes,
			AllowedDstTypes: s.AllowedDstTypes,
		}
	}

	return models.SchemaPack{
		Name:                fp.Name,
		Version:             fp.Version,
		Active:              true,
		ObjectSchemas:       objectSchemas,
		RelationshipSchemas: relationshipSchemas,
		ExtractionPrompts:   fp.ExtractionPrompts,
		DefaultPromptKey:    fp.DefaultPromptKey,
	}
}

// ListActivePacks implements TemplatePackService. projectID is ignored:
// every loaded pack is active for every project.
func (s *FilePackService) ListActivePacks(_ context.Context, _ string) ([]models.SchemaPack, error) {
	return s.packs, nil
}

// AssignDefaultPack implements TemplatePackService. It cannot actually
// install anything new onto disk, so it only warns when the requested
// pack isn't among those already loaded.
func (s *FilePackService) AssignDefaultPack(_ context.Context, projectID, packID string) error {
	for _, p := range s.packs {
		if p.Name == packID {
			return nil
		}
	}
	slog.Warn("default schema pack is not present in the pack directory",
		"project_id", projectID, "pack_id", packID, "dir", s.dir)
	return nil
}
