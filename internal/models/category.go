package models

import "fmt"

// Category identifies one of the migratable resource kinds.
type Category string

const (
	CategoryTargetServer Category = "targetserver"
	CategoryKVM          Category = "kvm"
	CategorySharedFlow   Category = "sharedflow"
	CategoryProxy        Category = "proxy"
	CategoryAPIProduct   Category = "apiproduct"
	CategoryDeveloper    Category = "developer"
	CategoryApp          Category = "app"
)

// Categories lists every resource kind, in no particular order.
// Migration order is decided by the dependency resolver, not by this list.
var Categories = []Category{
	CategoryTargetServer,
	CategoryKVM,
	CategorySharedFlow,
	CategoryProxy,
	CategoryAPIProduct,
	CategoryDeveloper,
	CategoryApp,
}

// ParseCategory converts a string (e.g. from a URL segment) into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown resource category %q", s)
}

// Label returns a human-readable name for the category.
func (c Category) Label() string {
	switch c {
	case CategoryTargetServer:
		return "Target Server"
	case CategoryKVM:
		return "Key-Value Map"
	case CategorySharedFlow:
		return "Shared Flow"
	case CategoryProxy:
		return "API Proxy"
	case CategoryAPIProduct:
		return "API Product"
	case CategoryDeveloper:
		return "Developer"
	case CategoryApp:
		return "Developer App"
	}
	return string(c)
}
