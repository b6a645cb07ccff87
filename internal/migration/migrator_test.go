package migration

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

func testMigrator(gw *fakeGateway, repo *fakeRepo, deploy bool) *Migrator {
	return NewMigrator(zerolog.Nop(), gw, repo, "acme", "test", deploy)
}

func tsID(name string) models.ResourceIdentity {
	return models.ResourceIdentity{Category: models.CategoryTargetServer, Name: name}
}

func TestMigrateTargetServer(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := tsID("backend")
	repo.resources[id] = models.Resource{
		"name": "backend",
		"host": "backend.internal",
		"port": float64(8443),
		"sSLInfo": map[string]interface{}{
			"enabled": "true",
		},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s, want success (message: %s)", res.Outcome, res.Message)
	}
	if res.StatusCode != 201 {
		t.Errorf("status = %d, want 201", res.StatusCode)
	}
	if got := gw.lastPayload["host"]; got != "backend.internal" {
		t.Errorf("payload host = %v, want backend.internal", got)
	}
	if got := gw.lastPayload["port"]; got != 8443 {
		t.Errorf("payload port = %v, want 8443", got)
	}
	if got := gw.lastPayload["isEnabled"]; got != true {
		t.Errorf("payload isEnabled = %v, want true (default)", got)
	}
	if _, ok := gw.lastPayload["sSLInfo"]; !ok {
		t.Error("payload missing sSLInfo")
	}
}

func TestMigrateAlreadyExists(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := tsID("backend")
	repo.resources[id] = models.Resource{"name": "backend"}
	gw.existing[key(models.CategoryTargetServer, "backend")] = true

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeAlreadyExists {
		t.Fatalf("outcome = %s, want already_exists", res.Outcome)
	}
	if res.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", res.StatusCode)
	}
	if res.Message != "Target Server 'backend' already exists" {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.created) != 0 {
		t.Errorf("create was called despite existing resource: %v", gw.created)
	}
}

func TestMigrateKVMWithEntries(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryKVM, Name: "settings", Scope: models.ScopeEnv}
	repo.resources[id] = models.Resource{
		"name":      "settings",
		"encrypted": true,
		"entry": []interface{}{
			map[string]interface{}{"name": "timeout", "value": "30"},
			map[string]interface{}{"name": "endpoint", "value": "https://x"},
		},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if res.EntriesMigrated != 2 || res.EntriesFailed != 0 {
		t.Errorf("entries = %d migrated, %d failed; want 2, 0", res.EntriesMigrated, res.EntriesFailed)
	}
	if len(gw.entries) != 2 {
		t.Fatalf("AddKVMEntry called %d times, want 2", len(gw.entries))
	}
	if gw.entries[0] != [2]string{"timeout", "30"} {
		t.Errorf("first entry = %v", gw.entries[0])
	}
}

func TestMigrateKVMEntryFailuresAreCounted(t *testing.T) {
	gw := newFakeGateway()
	gw.entryStatus = 500
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryKVM, Name: "settings", Scope: models.ScopeEnv}
	repo.resources[id] = models.Resource{
		"name": "settings",
		"entry": []interface{}{
			map[string]interface{}{"name": "timeout", "value": "30"},
		},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("entry failure must not fail the KVM, got outcome %s", res.Outcome)
	}
	if res.EntriesMigrated != 0 || res.EntriesFailed != 1 {
		t.Errorf("entries = %d migrated, %d failed; want 0, 1", res.EntriesMigrated, res.EntriesFailed)
	}
}

func TestMigrateKVMOrgScopeSkipsEntries(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryKVM, Name: "globals", Scope: models.ScopeOrg}
	repo.resources[id] = models.Resource{
		"name": "globals",
		"entry": []interface{}{
			map[string]interface{}{"name": "k", "value": "v"},
		},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if len(gw.entries) != 0 {
		t.Errorf("entries were migrated for an org-scoped KVM: %v", gw.entries)
	}
}

func TestMigrateDeveloperMissingEmail(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryDeveloper, Name: "broken"}
	repo.resources[id] = models.Resource{"firstName": "Ada"}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if !res.Permanent {
		t.Error("missing email should be a permanent failure")
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestMigrateDeveloperDefaultsOrganizationName(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryDeveloper, Name: "ada@example.com"}
	repo.resources[id] = models.Resource{
		"email":     "ada@example.com",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if got := gw.lastPayload["organizationName"]; got != "acme" {
		t.Errorf("organizationName = %v, want acme", got)
	}
}

func TestMigrateAppResolvesDeveloperEmail(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	devID := models.ResourceIdentity{Category: models.CategoryDeveloper, Name: "ada@example.com"}
	repo.resources[devID] = models.Resource{
		"email":       "ada@example.com",
		"developerId": "dev-123",
	}
	appID := models.ResourceIdentity{Category: models.CategoryApp, Name: "mobile"}
	repo.resources[appID] = models.Resource{
		"name":        "mobile",
		"developerId": "dev-123",
		"status":      "approved",
		"credentials": []interface{}{
			map[string]interface{}{
				"consumerKey":    "should-not-carry-over",
				"consumerSecret": "should-not-carry-over",
				"apiProducts": []interface{}{
					map[string]interface{}{"apiproduct": "weather"},
					map[string]interface{}{"apiproduct": "geo"},
				},
			},
			map[string]interface{}{
				"apiProducts": []interface{}{
					map[string]interface{}{"apiproduct": "weather"},
				},
			},
		},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), appID)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if gw.lastAppEmail != "ada@example.com" {
		t.Errorf("developer email = %q, want ada@example.com", gw.lastAppEmail)
	}
	want := []string{"weather", "geo"}
	if got, _ := gw.lastPayload["apiProducts"].([]string); !reflect.DeepEqual(got, want) {
		t.Errorf("apiProducts = %v, want %v (deduplicated, first occurrence order)", got, want)
	}
	for _, field := range []string{"consumerKey", "consumerSecret", "credentials"} {
		if _, ok := gw.lastPayload[field]; ok {
			t.Errorf("payload carries credential field %q", field)
		}
	}
}

func TestMigrateAppDeveloperNotFound(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	appID := models.ResourceIdentity{Category: models.CategoryApp, Name: "orphan"}
	repo.resources[appID] = models.Resource{
		"name":        "orphan",
		"developerId": "dev-missing",
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), appID)

	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if !res.Permanent {
		t.Error("missing developer should be a permanent failure")
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
	if res.Message != "Developer not found for app orphan" {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.created) != 0 {
		t.Errorf("app was created without a developer: %v", gw.created)
	}
}

func TestMigrateAppWithoutDeveloperID(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	// A developer record without a developerId must not be picked up by an
	// app whose own developerId is missing.
	devID := models.ResourceIdentity{Category: models.CategoryDeveloper, Name: "legacy@example.com"}
	repo.resources[devID] = models.Resource{"email": "legacy@example.com"}
	appID := models.ResourceIdentity{Category: models.CategoryApp, Name: "loose"}
	repo.resources[appID] = models.Resource{"name": "loose"}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), appID)

	if res.Outcome != models.OutcomeFailed || !res.Permanent {
		t.Fatalf("outcome = %s, permanent = %v; want permanent failure", res.Outcome, res.Permanent)
	}
	if res.Message != "Developer not found for app loose" {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.created) != 0 {
		t.Errorf("app was created without an owner: %v", gw.created)
	}
}

func TestMigrateProductStripsSourceFields(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryAPIProduct, Name: "weather"}
	repo.resources[id] = models.Resource{
		"name":           "weather",
		"createdAt":      float64(1700000000000),
		"lastModifiedBy": "admin@example.com",
		"organization":   "old-org",
		"proxies":        []interface{}{"weather-v1"},
	}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	for _, field := range sourceOnlyProductFields {
		if _, ok := gw.lastPayload[field]; ok {
			t.Errorf("payload still carries source-only field %q", field)
		}
	}
	rewritten, ok := repo.rewrites[id]
	if !ok {
		t.Fatal("stripped definition was not rewritten to the repository")
	}
	if _, ok := rewritten["createdAt"]; ok {
		t.Error("rewritten file still carries createdAt")
	}

	// A second run over the already-normalized file must not rewrite again.
	delete(repo.rewrites, id)
	delete(gw.existing, key(models.CategoryAPIProduct, "weather"))
	if res := testMigrator(gw, repo, false).Migrate(context.Background(), id); res.Outcome != models.OutcomeSuccess {
		t.Fatalf("second run outcome = %s", res.Outcome)
	}
	if _, ok := repo.rewrites[id]; ok {
		t.Error("normalized file was rewritten a second time")
	}
}

func TestMigrateProxyDeployed(t *testing.T) {
	gw := newFakeGateway()
	gw.createBody = `{"revision":"4"}`
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryProxy, Name: "weather-v1"}
	repo.bundles[id] = []byte("PK\x03\x04")

	res := testMigrator(gw, repo, true).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if res.Deployment != models.DeploymentDeployed {
		t.Errorf("deployment = %s, want deployed", res.Deployment)
	}
	if !strings.HasSuffix(res.Message, "and deployed successfully") {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.deployed) != 1 || gw.deployed[0] != "proxy/weather-v1/4" {
		t.Errorf("deployed = %v, want [proxy/weather-v1/4]", gw.deployed)
	}
}

func TestMigrateProxyDeployFailureKeepsSuccess(t *testing.T) {
	gw := newFakeGateway()
	gw.deployStatus = 400
	gw.deployBody = "virtual host missing"
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategoryProxy, Name: "weather-v1"}
	repo.bundles[id] = []byte("PK\x03\x04")

	res := testMigrator(gw, repo, true).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("deploy failure must not change the migration outcome, got %s", res.Outcome)
	}
	if res.Deployment != models.DeploymentFailed {
		t.Errorf("deployment = %s, want deploy_failed", res.Deployment)
	}
	if !strings.Contains(res.Message, "migrated successfully") ||
		!strings.Contains(res.Message, "but deployment failed: virtual host missing") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestMigrateSharedFlowNoDeployRequested(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := models.ResourceIdentity{Category: models.CategorySharedFlow, Name: "auth-check"}
	repo.bundles[id] = []byte("PK\x03\x04")

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeSuccess {
		t.Fatalf("outcome = %s (message: %s)", res.Outcome, res.Message)
	}
	if res.Deployment != models.DeploymentNotRequested {
		t.Errorf("deployment = %s, want not_requested", res.Deployment)
	}
	if len(gw.deployed) != 0 {
		t.Errorf("deploy was called without being requested: %v", gw.deployed)
	}
}

func TestDeployProxyResolvesLatestRevision(t *testing.T) {
	gw := newFakeGateway()
	gw.revisions = []int{1, 3, 2}
	repo := newFakeRepo()

	res := testMigrator(gw, repo, true).DeployProxy(context.Background(), "weather-v1", "")

	if res.Deployment != models.DeploymentDeployed {
		t.Fatalf("deployment = %s (message: %s)", res.Deployment, res.Message)
	}
	if len(gw.deployed) != 1 || gw.deployed[0] != "proxy/weather-v1/3" {
		t.Errorf("deployed = %v, want highest revision 3", gw.deployed)
	}
}

func TestDeployProxyRevisionFallback(t *testing.T) {
	gw := newFakeGateway()
	gw.revisionsErr = context.DeadlineExceeded
	repo := newFakeRepo()

	testMigrator(gw, repo, true).DeployProxy(context.Background(), "weather-v1", "")

	if len(gw.deployed) != 1 || gw.deployed[0] != "proxy/weather-v1/1" {
		t.Errorf("deployed = %v, want fallback revision 1", gw.deployed)
	}
}

func TestMigrateUnreadableSourceIsPermanent(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	id := tsID("missing")

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeFailed || !res.Permanent {
		t.Fatalf("outcome = %s, permanent = %v; want permanent failure", res.Outcome, res.Permanent)
	}
}

func TestMigrateRecoversFromPanic(t *testing.T) {
	gw := newFakeGateway()
	repo := newFakeRepo()
	gw.existsPanic = "corrupt definition"
	id := tsID("bad")
	repo.resources[id] = models.Resource{"name": "bad"}

	res := testMigrator(gw, repo, false).Migrate(context.Background(), id)

	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", res.StatusCode)
	}
	if res.Message != "Error: corrupt definition" {
		t.Errorf("message = %q", res.Message)
	}
}
