package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// fakeGateway implements gateway.Client for tests. Behavior is driven by a
// few knobs; every create is recorded.
type fakeGateway struct {
	mu sync.Mutex

	existing     map[string]bool // "category/name" → exists at destination
	existsErr    error
	existsPanic  string // non-empty: ResourceExists panics with this message
	createStatus int    // status for create/import calls (default 201)
	createBody   string
	failCreates  int // fail this many create calls with a 500 before succeeding
	entryStatus  int // status for AddKVMEntry (default 201)
	deployStatus int // status for deploy calls (default 200)
	deployBody   string
	revisions    []int
	revisionsErr error

	created      []string // "category/name" in call order
	entries      [][2]string
	lastAppEmail string
	lastPayload  models.Resource
	deployed     []string // "category/name/revision"
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		existing:     make(map[string]bool),
		createStatus: 201,
		entryStatus:  201,
		deployStatus: 200,
	}
}

func key(category models.Category, name string) string {
	return string(category) + "/" + name
}

func (g *fakeGateway) create(category models.Category, name string, def models.Resource) (int, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreates > 0 {
		g.failCreates--
		return 500, `{"error":"temporarily unavailable"}`, nil
	}
	g.created = append(g.created, key(category, name))
	g.lastPayload = def
	return g.createStatus, g.createBody, nil
}

func (g *fakeGateway) CreateTargetServer(_ context.Context, _ string, def models.Resource) (int, string, error) {
	name, _ := def["name"].(string)
	return g.create(models.CategoryTargetServer, name, def)
}

func (g *fakeGateway) CreateKVM(_ context.Context, _ string, def models.Resource) (int, string, error) {
	name, _ := def["name"].(string)
	return g.create(models.CategoryKVM, name, def)
}

func (g *fakeGateway) AddKVMEntry(_ context.Context, _, kvmName, entryKey, value string) (int, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, [2]string{entryKey, value})
	return g.entryStatus, "", nil
}

func (g *fakeGateway) ImportProxy(_ context.Context, name string, _ []byte) (int, string, error) {
	return g.create(models.CategoryProxy, name, nil)
}

func (g *fakeGateway) ImportSharedFlow(_ context.Context, name string, _ []byte) (int, string, error) {
	return g.create(models.CategorySharedFlow, name, nil)
}

func (g *fakeGateway) DeployProxy(_ context.Context, _, name, revision string) (int, string, error) {
	return g.deploy(models.CategoryProxy, name, revision)
}

func (g *fakeGateway) DeploySharedFlow(_ context.Context, _, name, revision string) (int, string, error) {
	return g.deploy(models.CategorySharedFlow, name, revision)
}

func (g *fakeGateway) deploy(category models.Category, name, revision string) (int, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deployed = append(g.deployed, fmt.Sprintf("%s/%s/%s", category, name, revision))
	return g.deployStatus, g.deployBody, nil
}

func (g *fakeGateway) CreateAPIProduct(_ context.Context, def models.Resource) (int, string, error) {
	name, _ := def["name"].(string)
	return g.create(models.CategoryAPIProduct, name, def)
}

func (g *fakeGateway) CreateDeveloper(_ context.Context, def models.Resource) (int, string, error) {
	email, _ := def["email"].(string)
	return g.create(models.CategoryDeveloper, email, def)
}

func (g *fakeGateway) CreateDeveloperApp(_ context.Context, developerEmail string, def models.Resource) (int, string, error) {
	g.mu.Lock()
	g.lastAppEmail = developerEmail
	g.mu.Unlock()
	name, _ := def["name"].(string)
	return g.create(models.CategoryApp, name, def)
}

func (g *fakeGateway) ResourceExists(_ context.Context, category models.Category, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.existsPanic != "" {
		panic(g.existsPanic)
	}
	if g.existsErr != nil {
		return false, g.existsErr
	}
	return g.existing[key(category, name)], nil
}

func (g *fakeGateway) ListRevisions(_ context.Context, _ models.Category, _ string) ([]int, error) {
	if g.revisionsErr != nil {
		return nil, g.revisionsErr
	}
	return g.revisions, nil
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu        sync.Mutex
	resources map[models.ResourceIdentity]models.Resource
	bundles   map[models.ResourceIdentity][]byte
	rewrites  map[models.ResourceIdentity]models.Resource
	listErr   map[models.Category]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		resources: make(map[models.ResourceIdentity]models.Resource),
		bundles:   make(map[models.ResourceIdentity][]byte),
		rewrites:  make(map[models.ResourceIdentity]models.Resource),
		listErr:   make(map[models.Category]error),
	}
}

func (r *fakeRepo) List(category models.Category) ([]models.ResourceIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.listErr[category]; err != nil {
		return nil, err
	}
	var ids []models.ResourceIdentity
	for id := range r.resources {
		if id.Category == category {
			ids = append(ids, id)
		}
	}
	for id := range r.bundles {
		if id.Category == category {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return ids, nil
}

func (r *fakeRepo) Load(id models.ResourceIdentity) (models.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.resources[id]
	if !ok {
		return nil, fmt.Errorf("loading %s: not found", id)
	}
	return def, nil
}

func (r *fakeRepo) LoadBundle(id models.ResourceIdentity) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundle, ok := r.bundles[id]
	if !ok {
		return nil, fmt.Errorf("loading bundle %s: not found", id)
	}
	return bundle, nil
}

func (r *fakeRepo) Rewrite(id models.ResourceIdentity, def models.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewrites[id] = def
	r.resources[id] = def
	return nil
}

func (r *fakeRepo) FindDeveloperByID(developerID string) (models.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if developerID == "" {
		return nil, nil
	}
	for id, def := range r.resources {
		if id.Category != models.CategoryDeveloper {
			continue
		}
		if devID, _ := def["developerId"].(string); devID == developerID {
			return def, nil
		}
	}
	return nil, nil
}
