package migration

import "github.com/lmoreira/gateway-migration-workbench/internal/models"

// categoryOrder is the fixed total order in which resource categories are
// migrated, so referenced resources exist before referencing resources:
// shared flows may reference KVMs; proxies may reference target servers,
// KVMs and shared flows; products reference proxies; apps reference products
// and developers.
var categoryOrder = []models.Category{
	models.CategoryTargetServer,
	models.CategoryKVM,
	models.CategorySharedFlow,
	models.CategoryProxy,
	models.CategoryAPIProduct,
	models.CategoryDeveloper,
	models.CategoryApp,
}

// Order returns the category migration order. The order is fixed at compile
// time and identical across runs; callers get a copy they may not reorder
// in place.
func Order() []models.Category {
	order := make([]models.Category, len(categoryOrder))
	copy(order, categoryOrder)
	return order
}

// ExtractReferences inspects a resource definition and returns the names of
// resources it references, grouped by category. The extraction is advisory,
// for the migration-order report only: it never fails, and anything it
// cannot interpret yields an empty set.
func ExtractReferences(def models.Resource) map[models.Category][]string {
	refs := make(map[models.Category][]string)
	if def == nil {
		return refs
	}

	// API products list their member proxies directly.
	if proxies := stringList(def["proxies"]); len(proxies) > 0 {
		refs[models.CategoryProxy] = proxies
	}

	// Apps reference products through their credentials and their owning
	// developer by ID.
	if products := productsFromCredentials(def); len(products) > 0 {
		refs[models.CategoryAPIProduct] = products
	}
	if devID := stringField(def, "developerId"); devID != "" {
		refs[models.CategoryDeveloper] = []string{devID}
	}

	// Parsed proxy metadata may carry target server and policy references.
	if targets := stringList(def["targetServers"]); len(targets) > 0 {
		refs[models.CategoryTargetServer] = targets
	}
	if policies, ok := def["policies"].([]interface{}); ok {
		for _, p := range policies {
			policy, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			name := stringField(policy, "name")
			if name == "" {
				continue
			}
			switch stringField(policy, "type") {
			case "KeyValueMapOperations":
				refs[models.CategoryKVM] = appendUnique(refs[models.CategoryKVM], name)
			case "FlowCallout":
				refs[models.CategorySharedFlow] = appendUnique(refs[models.CategorySharedFlow], name)
			}
		}
	}

	return refs
}

// productsFromCredentials extracts the distinct set of API product names
// referenced across an app's credential entries, deduplicated by first
// occurrence.
func productsFromCredentials(def models.Resource) []string {
	creds, ok := def["credentials"].([]interface{})
	if !ok {
		return nil
	}
	var products []string
	for _, c := range creds {
		cred, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		entries, ok := cred["apiProducts"].([]interface{})
		if !ok {
			continue
		}
		for _, e := range entries {
			entry, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			if name := stringField(entry, "apiproduct"); name != "" {
				products = appendUnique(products, name)
			}
		}
	}
	return products
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}
