package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lmoreira/gateway-migration-workbench/internal/migration"
	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// ListCategories returns every resource category with its migration position
// and the number of exported resources found for it.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	type categoryInfo struct {
		Category models.Category `json:"category"`
		Label    string          `json:"label"`
		Position int             `json:"position"`
		Count    int             `json:"count"`
	}

	var out []categoryInfo
	for i, category := range migration.Order() {
		ids, err := s.Repo.List(category)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, categoryInfo{
			Category: category,
			Label:    category.Label(),
			Position: i + 1,
			Count:    len(ids),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ListResourcesOfCategory(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := s.Repo.List(category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []models.ResourceIdentity{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// MigrationOrder reports the fixed category order plus best-effort reference
// extraction per resource. The references are diagnostic only; they never
// reorder migration within the fixed category order.
func (s *Server) MigrationOrder(w http.ResponseWriter, r *http.Request) {
	type resourceRefs struct {
		Identity   models.ResourceIdentity      `json:"identity"`
		References map[models.Category][]string `json:"references,omitempty"`
	}

	order := migration.Order()
	refs := make([]resourceRefs, 0)
	for _, category := range order {
		ids, err := s.Repo.List(category)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, id := range ids {
			rr := resourceRefs{Identity: id}
			// Bundles have no JSON definition; extraction is best effort.
			if def, err := s.Repo.Load(id); err == nil {
				if extracted := migration.ExtractReferences(def); len(extracted) > 0 {
					rr.References = extracted
				}
			}
			refs = append(refs, rr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":     order,
		"resources": refs,
	})
}
