// Package repository reads exported source-gateway resources from an
// on-disk export tree:
//
//	targetservers/env/<env>/*.json
//	keyvaluemaps/env/<env>/*.json
//	keyvaluemaps/org/*.json
//	developers/*.json  apps/*.json  apiproducts/*.json
//	proxies/*.zip      sharedflows/*.zip
package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// Repository enumerates and loads exported resource definitions.
type Repository struct {
	dir       string
	sourceEnv string
}

// New creates a repository over the given export directory. sourceEnv names
// the environment subdirectory the source export was taken from.
func New(dir, sourceEnv string) *Repository {
	return &Repository{dir: dir, sourceEnv: sourceEnv}
}

// categoryDir returns the directory holding a category's files. For KVMs the
// scope selects between the env and org trees.
func (r *Repository) categoryDir(category models.Category, scope string) string {
	switch category {
	case models.CategoryTargetServer:
		return filepath.Join(r.dir, "targetservers", "env", r.sourceEnv)
	case models.CategoryKVM:
		if scope == models.ScopeOrg {
			return filepath.Join(r.dir, "keyvaluemaps", "org")
		}
		return filepath.Join(r.dir, "keyvaluemaps", "env", r.sourceEnv)
	case models.CategorySharedFlow:
		return filepath.Join(r.dir, "sharedflows")
	case models.CategoryProxy:
		return filepath.Join(r.dir, "proxies")
	case models.CategoryAPIProduct:
		return filepath.Join(r.dir, "apiproducts")
	case models.CategoryDeveloper:
		return filepath.Join(r.dir, "developers")
	case models.CategoryApp:
		return filepath.Join(r.dir, "apps")
	}
	return ""
}

func (r *Repository) ext(category models.Category) string {
	if category == models.CategoryProxy || category == models.CategorySharedFlow {
		return ".zip"
	}
	return ".json"
}

// List enumerates the identities of all migratable resources in a category.
// A missing directory yields an empty list; the export may legitimately
// contain no resources of a kind.
func (r *Repository) List(category models.Category) ([]models.ResourceIdentity, error) {
	if category == models.CategoryKVM {
		envIDs, err := r.listScope(category, models.ScopeEnv)
		if err != nil {
			return nil, err
		}
		orgIDs, err := r.listScope(category, models.ScopeOrg)
		if err != nil {
			return nil, err
		}
		return append(envIDs, orgIDs...), nil
	}
	return r.listScope(category, "")
}

func (r *Repository) listScope(category models.Category, scope string) ([]models.ResourceIdentity, error) {
	dir := r.categoryDir(category, scope)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	ext := r.ext(category)
	var ids []models.ResourceIdentity
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		ids = append(ids, models.ResourceIdentity{
			Category: category,
			Name:     strings.TrimSuffix(e.Name(), ext),
			Scope:    scope,
		})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return ids, nil
}

func (r *Repository) path(id models.ResourceIdentity) string {
	return filepath.Join(r.categoryDir(id.Category, id.Scope), id.Name+r.ext(id.Category))
}

// Load reads a resource's JSON definition.
func (r *Repository) Load(id models.ResourceIdentity) (models.Resource, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}
	var def models.Resource
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", id, err)
	}
	return def, nil
}

// LoadBundle reads a proxy or shared flow bundle archive.
func (r *Repository) LoadBundle(id models.ResourceIdentity) ([]byte, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		return nil, fmt.Errorf("loading bundle %s: %w", id, err)
	}
	return data, nil
}

// Rewrite replaces a resource's persisted definition. Used to normalize API
// product files in place before submission.
func (r *Repository) Rewrite(id models.ResourceIdentity, def models.Resource) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}
	if err := os.WriteFile(r.path(id), data, 0o644); err != nil {
		return fmt.Errorf("rewriting %s: %w", id, err)
	}
	return nil
}

// FindDeveloperByID scans developer records for a matching developerId and
// returns the record, or nil if no developer matches. An empty ID never
// matches; it would pair with any record that lacks a developerId field.
func (r *Repository) FindDeveloperByID(developerID string) (models.Resource, error) {
	if developerID == "" {
		return nil, nil
	}
	ids, err := r.List(models.CategoryDeveloper)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		dev, err := r.Load(id)
		if err != nil {
			return nil, err
		}
		if devID, _ := dev["developerId"].(string); devID == developerID {
			return dev, nil
		}
	}
	return nil, nil
}
