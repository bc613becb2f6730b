package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RegistryError carries a non-success registry response.
type RegistryError struct {
	Status int
	Body   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("schema registry returned %d: %s", e.Status, e.Body)
}

// SchemaRegistryClient registers JSON schemas with a Confluent-compatible Schema Registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of the latest version of subject, registering schema when
// the subject does not exist yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	versions := "/subjects/" + url.PathEscape(subject) + "/versions"

	id, err := c.call(ctx, http.MethodGet, versions+"/latest", nil)
	var regErr *RegistryError
	if !errors.As(err, &regErr) || regErr.Status != http.StatusNotFound {
		return id, err
	}

	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{"JSON", schema})
	if err != nil {
		return 0, err
	}
	return c.call(ctx, http.MethodPost, versions, body)
}

// call performs one registry request and decodes the "id" field of the response.
func (c *SchemaRegistryClient) call(ctx context.Context, method, path string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &RegistryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	var decoded struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decoding registry response: %w", err)
	}
	return decoded.ID, nil
}

// NewRegistry returns a registry client for baseURL, or NoopRegistry when baseURL is empty.
func NewRegistry(baseURL string) SchemaRegistrar {
	if strings.TrimSpace(baseURL) == "" {
		return NoopRegistry{}
	}
	return NewSchemaRegistryClient(baseURL)
}

// NoopRegistry is used when no registry is configured; every subject maps to schema id 0.
type NoopRegistry struct{}

// EnsureSchema implements SchemaRegistrar.
func (NoopRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	return 0, nil
}
