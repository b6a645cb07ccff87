package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

const requestTimeout = 30 * time.Second

// HTTPClient is the HTTP binding for the destination gateway's management
// API. Library-level retries are disabled: the orchestration retry policy
// owns all retry behavior.
type HTTPClient struct {
	baseURL string
	org     string
	env     string // environment used for existence checks
	token   string
	logger  zerolog.Logger
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a gateway client for one organization.
func NewHTTPClient(logger zerolog.Logger, baseURL, org, env, token string, ratePerSec float64) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: requestTimeout}

	return &HTTPClient{
		baseURL: baseURL,
		org:     org,
		env:     env,
		token:   token,
		logger:  logger,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// orgPath builds a management API path under the organization.
func (c *HTTPClient) orgPath(segments ...string) string {
	u := c.baseURL + "/v1/organizations/" + c.org
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL, contentType string, body []byte) (int, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, "", err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Msg("gateway request")

	return resp.StatusCode, string(respBody), nil
}

func (c *HTTPClient) postJSON(ctx context.Context, rawURL string, payload interface{}) (int, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshaling body: %w", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, "application/json", data)
}

// CreateTargetServer creates an environment-scoped target server.
func (c *HTTPClient) CreateTargetServer(ctx context.Context, env string, def models.Resource) (int, string, error) {
	return c.postJSON(ctx, c.orgPath("environments", env, "targetservers"), def)
}

// CreateKVM creates a key-value map. An empty env selects the
// organization-scoped endpoint.
func (c *HTTPClient) CreateKVM(ctx context.Context, env string, def models.Resource) (int, string, error) {
	if env == "" {
		return c.postJSON(ctx, c.orgPath("keyvaluemaps"), def)
	}
	return c.postJSON(ctx, c.orgPath("environments", env, "keyvaluemaps"), def)
}

// AddKVMEntry adds a single entry to an environment-scoped KVM.
func (c *HTTPClient) AddKVMEntry(ctx context.Context, env, kvmName, key, value string) (int, string, error) {
	payload := map[string]string{"name": key, "value": value}
	return c.postJSON(ctx, c.orgPath("environments", env, "keyvaluemaps", kvmName, "entries"), payload)
}

// ImportProxy uploads a proxy bundle. The response body carries the
// assigned revision.
func (c *HTTPClient) ImportProxy(ctx context.Context, name string, bundle []byte) (int, string, error) {
	return c.importBundle(ctx, c.orgPath("apis"), name, bundle)
}

// ImportSharedFlow uploads a shared flow bundle.
func (c *HTTPClient) ImportSharedFlow(ctx context.Context, name string, bundle []byte) (int, string, error) {
	return c.importBundle(ctx, c.orgPath("sharedflows"), name, bundle)
}

func (c *HTTPClient) importBundle(ctx context.Context, base, name string, bundle []byte) (int, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name+".zip")
	if err != nil {
		return 0, "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := fw.Write(bundle); err != nil {
		return 0, "", fmt.Errorf("building upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, "", fmt.Errorf("building upload: %w", err)
	}

	q := url.Values{"name": {name}, "action": {"import"}}
	return c.do(ctx, http.MethodPost, base+"?"+q.Encode(), w.FormDataContentType(), buf.Bytes())
}

// DeployProxy deploys a proxy revision to an environment.
func (c *HTTPClient) DeployProxy(ctx context.Context, env, name, revision string) (int, string, error) {
	return c.do(ctx, http.MethodPost,
		c.orgPath("environments", env, "apis", name, "revisions", revision, "deployments"),
		"application/json", nil)
}

// DeploySharedFlow deploys a shared flow revision to an environment.
func (c *HTTPClient) DeploySharedFlow(ctx context.Context, env, name, revision string) (int, string, error) {
	return c.do(ctx, http.MethodPost,
		c.orgPath("environments", env, "sharedflows", name, "revisions", revision, "deployments"),
		"application/json", nil)
}

// CreateAPIProduct creates an organization-scoped API product.
func (c *HTTPClient) CreateAPIProduct(ctx context.Context, def models.Resource) (int, string, error) {
	return c.postJSON(ctx, c.orgPath("apiproducts"), def)
}

// CreateDeveloper registers a developer in the organization.
func (c *HTTPClient) CreateDeveloper(ctx context.Context, def models.Resource) (int, string, error) {
	return c.postJSON(ctx, c.orgPath("developers"), def)
}

// CreateDeveloperApp creates an app owned by the given developer.
func (c *HTTPClient) CreateDeveloperApp(ctx context.Context, developerEmail string, def models.Resource) (int, string, error) {
	return c.postJSON(ctx, c.orgPath("developers", developerEmail, "apps"), def)
}

// ResourceExists probes the per-category GET endpoint by name.
func (c *HTTPClient) ResourceExists(ctx context.Context, category models.Category, name string) (bool, error) {
	var probe string
	switch category {
	case models.CategoryProxy:
		probe = c.orgPath("apis", name)
	case models.CategorySharedFlow:
		probe = c.orgPath("sharedflows", name)
	case models.CategoryKVM:
		probe = c.orgPath("environments", c.env, "keyvaluemaps", name)
	case models.CategoryTargetServer:
		probe = c.orgPath("environments", c.env, "targetservers", name)
	case models.CategoryDeveloper:
		probe = c.orgPath("developers", name)
	case models.CategoryAPIProduct:
		probe = c.orgPath("apiproducts", name)
	case models.CategoryApp:
		probe = c.orgPath("apps", name)
	default:
		return false, fmt.Errorf("no existence endpoint for category %q", category)
	}

	status, _, err := c.do(ctx, http.MethodGet, probe, "", nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// ListRevisions returns the revision numbers of a proxy or shared flow.
func (c *HTTPClient) ListRevisions(ctx context.Context, category models.Category, name string) ([]int, error) {
	var listURL string
	switch category {
	case models.CategoryProxy:
		listURL = c.orgPath("apis", name, "revisions")
	case models.CategorySharedFlow:
		listURL = c.orgPath("sharedflows", name, "revisions")
	default:
		return nil, fmt.Errorf("category %q has no revisions", category)
	}

	status, body, err := c.do(ctx, http.MethodGet, listURL, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", listURL, status)
	}

	var raw []string
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("parsing revisions: %w", err)
	}
	revisions := make([]int, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("parsing revision %q: %w", r, err)
		}
		revisions = append(revisions, n)
	}
	return revisions, nil
}
