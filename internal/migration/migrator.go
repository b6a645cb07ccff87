package migration

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lmoreira/gateway-migration-workbench/internal/gateway"
	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// Repository supplies exported source resources to the migrator.
type Repository interface {
	List(category models.Category) ([]models.ResourceIdentity, error)
	Load(id models.ResourceIdentity) (models.Resource, error)
	LoadBundle(id models.ResourceIdentity) ([]byte, error)
	Rewrite(id models.ResourceIdentity, def models.Resource) error
	FindDeveloperByID(developerID string) (models.Resource, error)
}

// sourceOnlyProductFields are dropped from API product definitions before
// submission; the destination rejects or ignores them. The persisted source
// file is rewritten without them, which is idempotent.
var sourceOnlyProductFields = []string{
	"createdAt", "createdBy", "lastModifiedAt", "lastModifiedBy",
	"organization", "primary", "quotaCounterScope",
}

// Migrator migrates one resource of one category at a time through the
// destination gateway client.
type Migrator struct {
	logger zerolog.Logger
	gw     gateway.Client
	repo   Repository
	org    string
	env    string
	deploy bool
}

// NewMigrator creates a Migrator bound to one destination org/environment.
// When deploy is set, proxies and shared flows are deployed after a
// successful import.
func NewMigrator(logger zerolog.Logger, gw gateway.Client, repo Repository, org, env string, deploy bool) *Migrator {
	return &Migrator{
		logger: logger.With().Str("component", "migrator").Logger(),
		gw:     gw,
		repo:   repo,
		org:    org,
		env:    env,
		deploy: deploy,
	}
}

// Migrate runs the category-specific migration for one resource. A panic in
// transformation or serialization is converted into a Failed result carrying
// the panic message; it never escapes the migration boundary.
func (m *Migrator) Migrate(ctx context.Context, id models.ResourceIdentity) (res models.MigrationResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("resource", id.String()).Interface("panic", r).Msg("migration panicked")
			res = failure(id, http.StatusInternalServerError, fmt.Sprintf("Error: %v", r))
		}
	}()

	switch id.Category {
	case models.CategoryTargetServer:
		return m.migrateTargetServer(ctx, id)
	case models.CategoryKVM:
		return m.migrateKVM(ctx, id)
	case models.CategorySharedFlow:
		return m.migrateSharedFlow(ctx, id)
	case models.CategoryProxy:
		return m.migrateProxy(ctx, id)
	case models.CategoryAPIProduct:
		return m.migrateProduct(ctx, id)
	case models.CategoryDeveloper:
		return m.migrateDeveloper(ctx, id)
	case models.CategoryApp:
		return m.migrateApp(ctx, id)
	}
	return permanentFailure(id, http.StatusBadRequest, fmt.Sprintf("unknown resource category %q", id.Category))
}

func (m *Migrator) migrateTargetServer(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	if res, done := m.checkExists(ctx, id, id.Name); done {
		return res
	}

	def, err := m.repo.Load(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}

	payload := models.Resource{
		"name":      id.Name,
		"host":      stringField(def, "host"),
		"port":      intField(def, "port"),
		"isEnabled": boolField(def, "isEnabled", true),
	}
	if ssl, ok := def["sSLInfo"]; ok {
		payload["sSLInfo"] = ssl
	} else if ssl, ok := def["sslInfo"]; ok {
		payload["sSLInfo"] = ssl
	}

	status, body, err := m.gw.CreateTargetServer(ctx, m.env, payload)
	return m.classify(id, status, body, err, "Target server migrated successfully")
}

func (m *Migrator) migrateKVM(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	if res, done := m.checkExists(ctx, id, id.Name); done {
		return res
	}

	def, err := m.repo.Load(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}

	payload := models.Resource{
		"name":      id.Name,
		"encrypted": boolField(def, "encrypted", false),
	}

	env := m.env
	if id.Scope == models.ScopeOrg {
		env = "" // organization-scoped endpoint
	}
	status, body, err := m.gw.CreateKVM(ctx, env, payload)
	res := m.classify(id, status, body, err, "KVM migrated successfully")
	if res.Outcome != models.OutcomeSuccess || id.Scope == models.ScopeOrg {
		return res
	}

	// Entry migration is best effort: a failed entry is logged and counted
	// but never fails the KVM's own result.
	entries, ok := def["entry"].([]interface{})
	if !ok {
		return res
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		key := stringField(entry, "name")
		value := stringField(entry, "value")
		status, _, err := m.gw.AddKVMEntry(ctx, m.env, id.Name, key, value)
		if err != nil || (status != http.StatusOK && status != http.StatusCreated) {
			m.logger.Warn().Str("kvm", id.Name).Str("entry", key).Int("status", status).Msg("failed to add KVM entry")
			res.EntriesFailed++
			continue
		}
		res.EntriesMigrated++
	}
	return res
}

func (m *Migrator) migrateDeveloper(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	def, err := m.repo.Load(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}
	email := stringField(def, "email")
	if email == "" {
		return permanentFailure(id, http.StatusBadRequest, fmt.Sprintf("developer record %q has no email", id.Name))
	}

	if res, done := m.checkExists(ctx, id, email); done {
		return res
	}

	orgName := stringField(def, "organizationName")
	if orgName == "" {
		orgName = m.org
	}
	payload := models.Resource{
		"firstName":        stringField(def, "firstName"),
		"lastName":         stringField(def, "lastName"),
		"userName":         stringField(def, "userName"),
		"email":            email,
		"organizationName": orgName,
	}

	status, body, err := m.gw.CreateDeveloper(ctx, payload)
	return m.classify(id, status, body, err, "Developer migrated successfully")
}

func (m *Migrator) migrateProduct(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	def, err := m.repo.Load(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}
	name := stringField(def, "name")
	if name == "" {
		name = id.Name
	}

	if res, done := m.checkExists(ctx, id, name); done {
		return res
	}

	// Normalize the persisted file: source-platform-only fields are stripped
	// in place before submission. Running twice yields the same file.
	stripped := false
	for _, field := range sourceOnlyProductFields {
		if _, ok := def[field]; ok {
			delete(def, field)
			stripped = true
		}
	}
	if stripped {
		if err := m.repo.Rewrite(id, def); err != nil {
			return permanentFailure(id, http.StatusInternalServerError, err.Error())
		}
	}

	status, body, err := m.gw.CreateAPIProduct(ctx, def)
	return m.classify(id, status, body, err, "Product migrated successfully")
}

func (m *Migrator) migrateApp(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	def, err := m.repo.Load(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}
	name := stringField(def, "name")
	if name == "" {
		name = id.Name
	}

	// Resolve the owning developer's email from the app's developer ID.
	// A missing developer is a data problem, not a transient failure.
	dev, err := m.repo.FindDeveloperByID(stringField(def, "developerId"))
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}
	if dev == nil {
		return permanentFailure(id, http.StatusBadRequest, fmt.Sprintf("Developer not found for app %s", name))
	}
	email := stringField(dev, "email")

	if res, done := m.checkExists(ctx, id, name); done {
		return res
	}

	// Original credential secrets are ignored; the destination issues new
	// credentials. Only the referenced product set carries over.
	payload := models.Resource{
		"name":        name,
		"status":      stringField(def, "status"),
		"callbackUrl": stringField(def, "callbackUrl"),
		"attributes":  def["attributes"],
		"apiProducts": productsFromCredentials(def),
	}

	status, body, err := m.gw.CreateDeveloperApp(ctx, email, payload)
	return m.classify(id, status, body, err, "App migrated successfully")
}

func (m *Migrator) migrateProxy(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	return m.migrateBundle(ctx, id, "Proxy")
}

func (m *Migrator) migrateSharedFlow(ctx context.Context, id models.ResourceIdentity) models.MigrationResult {
	return m.migrateBundle(ctx, id, "Shared flow")
}

// migrateBundle imports a proxy or shared flow archive and optionally
// deploys the imported revision. A failed deployment does not change the
// migration outcome: the import succeeded.
func (m *Migrator) migrateBundle(ctx context.Context, id models.ResourceIdentity, label string) models.MigrationResult {
	if res, done := m.checkExists(ctx, id, id.Name); done {
		return res
	}

	bundle, err := m.repo.LoadBundle(id)
	if err != nil {
		return permanentFailure(id, http.StatusInternalServerError, err.Error())
	}

	var status int
	var body string
	if id.Category == models.CategoryProxy {
		status, body, err = m.gw.ImportProxy(ctx, id.Name, bundle)
	} else {
		status, body, err = m.gw.ImportSharedFlow(ctx, id.Name, bundle)
	}
	res := m.classify(id, status, body, err, label+" migrated successfully")
	if res.Outcome != models.OutcomeSuccess {
		return res
	}

	res.Deployment = models.DeploymentNotRequested
	if !m.deploy {
		return res
	}

	revision := gateway.RevisionFromResponse(body)
	deployStatus, deployBody, deployErr := m.deployRevision(ctx, id.Category, id.Name, revision)
	if deployErr == nil && (deployStatus == http.StatusOK || deployStatus == http.StatusCreated) {
		res.Message += " and deployed successfully"
		res.Deployment = models.DeploymentDeployed
		return res
	}
	detail := deployBody
	if deployErr != nil {
		detail = deployErr.Error()
	}
	res.Message += fmt.Sprintf(" but deployment failed: %s", detail)
	res.Deployment = models.DeploymentFailed
	return res
}

// DeployProxy deploys a proxy revision. An empty revision resolves to the
// highest revision at the destination, falling back to "1".
func (m *Migrator) DeployProxy(ctx context.Context, name, revision string) models.MigrationResult {
	return m.deployResult(ctx, models.CategoryProxy, name, revision)
}

// DeploySharedFlow deploys a shared flow revision, resolving the revision
// the same way as DeployProxy.
func (m *Migrator) DeploySharedFlow(ctx context.Context, name, revision string) models.MigrationResult {
	return m.deployResult(ctx, models.CategorySharedFlow, name, revision)
}

func (m *Migrator) deployResult(ctx context.Context, category models.Category, name, revision string) models.MigrationResult {
	id := models.ResourceIdentity{Category: category, Name: name}
	status, body, err := m.deployRevision(ctx, category, name, revision)
	if err != nil {
		return failure(id, http.StatusInternalServerError, fmt.Sprintf("Deployment error: %v", err))
	}
	if status == http.StatusOK || status == http.StatusCreated {
		res := success(id, status, fmt.Sprintf("Deployed successfully to %s", m.env))
		res.Deployment = models.DeploymentDeployed
		return res
	}
	res := failure(id, status, fmt.Sprintf("Deployment failed: %s", body))
	res.Deployment = models.DeploymentFailed
	return res
}

func (m *Migrator) deployRevision(ctx context.Context, category models.Category, name, revision string) (int, string, error) {
	if revision == "" {
		revision = m.latestRevision(ctx, category, name)
	}
	if category == models.CategoryProxy {
		return m.gw.DeployProxy(ctx, m.env, name, revision)
	}
	return m.gw.DeploySharedFlow(ctx, m.env, name, revision)
}

// latestRevision resolves the highest revision number at the destination.
// Any lookup failure falls back to "1"; deployment surfaces the real error
// if that guess is wrong.
func (m *Migrator) latestRevision(ctx context.Context, category models.Category, name string) string {
	revisions, err := m.gw.ListRevisions(ctx, category, name)
	if err != nil || len(revisions) == 0 {
		return "1"
	}
	max := revisions[0]
	for _, r := range revisions[1:] {
		if r > max {
			max = r
		}
	}
	return strconv.Itoa(max)
}

// checkExists is the precondition gate shared by every category: a resource
// already present at the destination is recorded as AlreadyExists before any
// transformation or network write is attempted.
func (m *Migrator) checkExists(ctx context.Context, id models.ResourceIdentity, destName string) (models.MigrationResult, bool) {
	exists, err := m.gw.ResourceExists(ctx, id.Category, destName)
	if err != nil {
		return failure(id, http.StatusInternalServerError, fmt.Sprintf("existence check failed: %v", err)), true
	}
	if exists {
		return models.MigrationResult{
			Identity:   id,
			Outcome:    models.OutcomeAlreadyExists,
			StatusCode: http.StatusConflict,
			Message:    fmt.Sprintf("%s '%s' already exists", id.Category.Label(), destName),
		}, true
	}
	return models.MigrationResult{}, false
}

// classify converts a gateway response into a migration result: transport
// errors and non-2xx statuses are failures, 200/201 is success.
func (m *Migrator) classify(id models.ResourceIdentity, status int, body string, err error, successMsg string) models.MigrationResult {
	if err != nil {
		return failure(id, http.StatusInternalServerError, fmt.Sprintf("Error: %v", err))
	}
	if status == http.StatusOK || status == http.StatusCreated {
		return success(id, status, successMsg)
	}
	return failure(id, status, fmt.Sprintf("Migration failed: %s", body))
}

func success(id models.ResourceIdentity, status int, msg string) models.MigrationResult {
	return models.MigrationResult{Identity: id, Outcome: models.OutcomeSuccess, StatusCode: status, Message: msg}
}

func failure(id models.ResourceIdentity, status int, msg string) models.MigrationResult {
	return models.MigrationResult{Identity: id, Outcome: models.OutcomeFailed, StatusCode: status, Message: msg}
}

func permanentFailure(id models.ResourceIdentity, status int, msg string) models.MigrationResult {
	res := failure(id, status, msg)
	res.Permanent = true
	return res
}
