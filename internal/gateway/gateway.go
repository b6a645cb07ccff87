package gateway

import (
	"context"
	"encoding/json"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// Client is the destination-gateway capability the migrator consumes.
// Create/import/deploy methods return the platform's HTTP status code and
// raw response body; err is non-nil only for transport-level failures
// (the status code is 0 in that case).
//
// For KVMs, an empty env selects the organization-scoped endpoint.
type Client interface {
	CreateTargetServer(ctx context.Context, env string, def models.Resource) (int, string, error)
	CreateKVM(ctx context.Context, env string, def models.Resource) (int, string, error)
	AddKVMEntry(ctx context.Context, env, kvmName, key, value string) (int, string, error)
	ImportProxy(ctx context.Context, name string, bundle []byte) (int, string, error)
	DeployProxy(ctx context.Context, env, name, revision string) (int, string, error)
	ImportSharedFlow(ctx context.Context, name string, bundle []byte) (int, string, error)
	DeploySharedFlow(ctx context.Context, env, name, revision string) (int, string, error)
	CreateAPIProduct(ctx context.Context, def models.Resource) (int, string, error)
	CreateDeveloper(ctx context.Context, def models.Resource) (int, string, error)
	CreateDeveloperApp(ctx context.Context, developerEmail string, def models.Resource) (int, string, error)

	// ResourceExists probes the destination for a resource with the same
	// name, used to avoid duplicate-creation conflicts.
	ResourceExists(ctx context.Context, category models.Category, name string) (bool, error)

	// ListRevisions returns the revision numbers of a proxy or shared flow.
	ListRevisions(ctx context.Context, category models.Category, name string) ([]int, error)
}

// RevisionFromResponse extracts the assigned revision from an import
// response body, defaulting to "1" when absent or unparsable.
func RevisionFromResponse(body string) string {
	var resp struct {
		Revision string `json:"revision"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err == nil && resp.Revision != "" {
		return resp.Revision
	}
	return "1"
}
