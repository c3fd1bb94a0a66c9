// Package schemapack resolves a project's effective extraction schema by
// fetching, merging, and optionally auto-installing its active schema packs.
package schemapack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// ErrNoSchemas is returned when a project has no object schemas available
// even after an auto-install attempt; the caller (JobCoordinator) treats
// this as the fatal "no-schemas" config error.
var ErrNoSchemas = errors.New("no object schemas available for project")

// SettingsStore reads the project-scoped base-prompt override. Fetching the
// server-wide default (config.Defaults.BasePromptDefault) needs no
// collaborator; this interface covers only the optional settings-store
// override described for extraction.basePrompt.
type SettingsStore interface {
	GetExtractionBasePrompt(ctx context.Context, projectID string) (string, bool, error)
}

// Resolver fetches and merges a project's active schema packs.
type Resolver struct {
	packs    external.TemplatePackService
	settings SettingsStore
	defaults *config.Defaults
}

// New constructs a Resolver.
func New(packs external.TemplatePackService, settings SettingsStore, defaults *config.Defaults) *Resolver {
	return &Resolver{packs: packs, settings: settings, defaults: defaults}
}

// Resolve returns the project's effective schema, auto-installing the
// configured default pack if the project has none installed.
func (r *Resolver) Resolve(ctx context.Context, projectID string) (*models.EffectiveSchema, error) {
	active, err := r.packs.ListActivePacks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schema packs: %w", err)
	}

	if len(active) == 0 && r.defaults.DefaultTemplatePackID != "" {
		if err := r.packs.AssignDefaultPack(ctx, projectID, r.defaults.DefaultTemplatePackID); err != nil {
			slog.Warn("failed to auto-install default schema pack, will re-fetch",
				"project_id", projectID, "pack_id", r.defaults.DefaultTemplatePackID, "error", err)
		}
		active, err = r.packs.ListActivePacks(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-list active schema packs after auto-install: %w", err)
		}
	}

	effective := Merge(active)
	if len(effective.ObjectSchemas) == 0 {
		return nil, ErrNoSchemas
	}

	effective.DefaultPromptKey = basePromptKey(active)
	if base, ok, err := r.loadBasePrompt(ctx, projectID); err == nil && ok {
		if effective.ExtractionPrompts == nil {
			effective.ExtractionPrompts = map[string]string{}
		}
		effective.ExtractionPrompts["_base"] = base
	} else if err != nil {
		slog.Warn("failed to load base prompt override, using configured default", "project_id", projectID, "error", err)
	}
	if _, ok := effective.ExtractionPrompts["_base"]; !ok {
		if effective.ExtractionPrompts == nil {
			effective.ExtractionPrompts = map[string]string{}
		}
		effective.ExtractionPrompts["_base"] = r.defaults.BasePromptDefault
	}

	return effective, nil
}

func (r *Resolver) loadBasePrompt(ctx context.Context, projectID string) (string, bool, error) {
	if r.settings == nil {
		return "", false, nil
	}
	return r.settings.GetExtractionBasePrompt(ctx, projectID)
}

func basePromptKey(packs []models.SchemaPack) string {
	for _, p := range packs {
		if p.DefaultPromptKey != "" {
			return p.DefaultPromptKey
		}
	}
	return ""
}

// Merge combines a project's active packs into one effective schema. Packs
// are applied in the order given, later packs overriding earlier ones
// field-by-field; each merged type accumulates the contributing pack names
// in its Sources slice, in installation order.
func Merge(packs []models.SchemaPack) *models.EffectiveSchema {
	eff := &models.EffectiveSchema{
		ObjectSchemas:       map[string]models.ObjectTypeSchema{},
		RelationshipSchemas: map[string]models.RelationshipTypeSchema{},
		ExtractionPrompts:   map[string]string{},
	}

	for _, pack := range packs {
		for typeName, schema := range pack.ObjectSchemas {
			existing, had := eff.ObjectSchemas[typeName]
			sources := []string{}
			if had {
				sources = append(sources, existing.Sources...)
			}
			sources = append(sources, pack.Name)
			schema.Sources = sources
			eff.ObjectSchemas[typeName] = schema
		}
		for typeName, schema := range pack.RelationshipSchemas {
			existing, had := eff.RelationshipSchemas[typeName]
			sources := []string{}
			if had {
				sources = append(sources, existing.Sources...)
			}
			sources = append(sources, pack.Name)
			schema.Sources = sources
			eff.RelationshipSchemas[typeName] = schema
		}
		for name, prompt := range pack.ExtractionPrompts {
			eff.ExtractionPrompts[name] = prompt
		}
	}

	return eff
}

// AllowedTypes returns the sorted keys of an effective schema's object
// types, the fallback used when a job has no AllowedTypes override.
func AllowedTypes(eff *models.EffectiveSchema) []string {
	types := make([]string, 0, len(eff.ObjectSchemas))
	for t := range eff.ObjectSchemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
