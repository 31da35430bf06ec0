package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/openmesh/meshgate/internal/domain/model"
)

// SeedDocument is the bulk-import format for the service registry: logic
// modules, their models, relationships, and optionally pre-existing join
// tuples. Seeding is idempotent; re-running a seed file upserts in place.
// The document carries its own field tags instead of reusing the domain
// structs so YAML and JSON seeds decode identically.
type SeedDocument struct {
	LogicModules  []SeedLogicModule  `json:"logic_modules"  yaml:"logic_modules"`
	Models        []SeedModel        `json:"models"         yaml:"models"`
	Relationships []SeedRelationship `json:"relationships"  yaml:"relationships"`
	Joins         []SeedJoin         `json:"joins"          yaml:"joins"`
}

// SeedLogicModule registers one backend service.
type SeedLogicModule struct {
	EndpointName string `json:"endpoint_name" yaml:"endpoint_name"`
	Endpoint     string `json:"endpoint"      yaml:"endpoint"`
	DocsEndpoint string `json:"docs_endpoint" yaml:"docs_endpoint"`
	IsLocal      bool   `json:"is_local"      yaml:"is_local"`
}

// SeedModel registers one resource type within a logic module.
type SeedModel struct {
	LogicModuleEndpointName string `json:"logic_module_endpoint_name" yaml:"logic_module_endpoint_name"`
	Model                   string `json:"model"                      yaml:"model"`
	Endpoint                string `json:"endpoint"                   yaml:"endpoint"`
	LookupFieldName         string `json:"lookup_field_name"          yaml:"lookup_field_name"`
	IsLocal                 bool   `json:"is_local"                   yaml:"is_local"`
}

// SeedRelationship registers one directed edge type.
type SeedRelationship struct {
	OriginModel  string `json:"origin_model"            yaml:"origin_model"`
	RelatedModel string `json:"related_model"           yaml:"related_model"`
	Key          string `json:"key"                     yaml:"key"`
	FKFieldName  string `json:"fk_field_name,omitempty" yaml:"fk_field_name,omitempty"`
}

// SeedJoin names one join tuple by relationship key and stringified PKs.
type SeedJoin struct {
	RelationshipKey string `json:"relationship_key"        yaml:"relationship_key"`
	OriginPK        string `json:"origin_pk"               yaml:"origin_pk"`
	RelatedPK       string `json:"related_pk"              yaml:"related_pk"`
	// Organization scopes the join; empty seeds a global join, which only
	// bulk import may do.
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// Seeder imports a registry seed document at startup.
type Seeder struct {
	Registry *RegistryService
	Joins    *JoinService
	Logger   *slog.Logger
}

// SeedFromFile loads and applies the seed document at path. The format is
// chosen by extension: .yaml/.yml decode as YAML, everything else as JSON.
func (s *Seeder) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read registry seed %s: %w", path, err)
	}

	var doc SeedDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode registry seed %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode registry seed %s: %w", path, err)
		}
	}
	return s.Seed(ctx, doc)
}

// Seed applies doc: logic modules first, then models, relationships, and
// join tuples, so later sections can reference earlier ones.
func (s *Seeder) Seed(ctx context.Context, doc SeedDocument) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, lm := range doc.LogicModules {
		_, err := s.Registry.UpsertLogicModule(ctx, model.LogicModule{
			EndpointName: lm.EndpointName,
			Endpoint:     lm.Endpoint,
			DocsEndpoint: lm.DocsEndpoint,
			IsLocal:      lm.IsLocal,
		})
		if err != nil {
			return fmt.Errorf("seed logic module %q: %w", lm.EndpointName, err)
		}
	}
	for _, lmm := range doc.Models {
		_, err := s.Registry.UpsertModel(ctx, model.LogicModuleModel{
			LogicModuleEndpointName: lmm.LogicModuleEndpointName,
			Model:                   lmm.Model,
			Endpoint:                lmm.Endpoint,
			LookupFieldName:         lmm.LookupFieldName,
			IsLocal:                 lmm.IsLocal,
		})
		if err != nil {
			return fmt.Errorf("seed model %q: %w", lmm.Model, err)
		}
	}
	for _, rel := range doc.Relationships {
		_, err := s.Registry.UpsertRelationship(ctx, model.Relationship{
			OriginModel:  rel.OriginModel,
			RelatedModel: rel.RelatedModel,
			Key:          rel.Key,
			FKFieldName:  rel.FKFieldName,
		})
		if err != nil {
			return fmt.Errorf("seed relationship %q: %w", rel.Key, err)
		}
	}

	for _, sj := range doc.Joins {
		rel, err := s.Registry.FindRelationshipByKey(ctx, sj.RelationshipKey)
		if err != nil {
			return fmt.Errorf("seed join: %w", err)
		}
		in := JoinInput{
			RelationshipID: rel.ID,
			OriginPK:       sj.OriginPK,
			RelatedPK:      sj.RelatedPK,
			MigrationSeed:  true,
		}
		if sj.Organization != "" {
			orgID, perr := uuid.Parse(sj.Organization)
			if perr != nil {
				return fmt.Errorf("seed join for %q: malformed organization %q", sj.RelationshipKey, sj.Organization)
			}
			in.Organization = &orgID
		}
		if _, err := s.Joins.ValidateJoin(ctx, in); err != nil {
			return fmt.Errorf("seed join for %q: %w", sj.RelationshipKey, err)
		}
	}

	logger.InfoContext(ctx, "registry seed applied",
		"logic_modules", len(doc.LogicModules),
		"models", len(doc.Models),
		"relationships", len(doc.Relationships),
		"joins", len(doc.Joins),
	)
	return nil
}
