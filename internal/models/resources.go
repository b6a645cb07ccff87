package models

// Resource is a raw platform-specific resource definition (opaque key-value map).
type Resource map[string]interface{}

// KVM scopes. An environment-scoped KVM and an organization-scoped KVM may
// share a name, so the scope is part of a KVM's identity.
const (
	ScopeEnv = "env"
	ScopeOrg = "org"
)

// ResourceIdentity uniquely identifies a migratable unit within a run.
type ResourceIdentity struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Scope    string   `json:"scope,omitempty"` // KVMs only: "env" or "org"
}

// String renders the identity for logs, e.g. "kvm/env/settings".
func (id ResourceIdentity) String() string {
	if id.Scope != "" {
		return string(id.Category) + "/" + id.Scope + "/" + id.Name
	}
	return string(id.Category) + "/" + id.Name
}
