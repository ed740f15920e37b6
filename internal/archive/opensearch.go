package archive

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/hookbridge/hookbridge/internal/models"
)

// Config holds OpenSearch connection configuration for the audit archive.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// Client indexes accepted audit records into OpenSearch for operational
// search. The relational ledger stays authoritative; this index only feeds
// external dashboards and investigations.
type Client struct {
	osClient *opensearch.Client
	index    string
}

// NewClient creates an OpenSearch-backed audit archive client.
func NewClient(cfg Config) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = "hookbridge-audit"
	}

	return &Client{osClient: client, index: index}, nil
}

// Initialize verifies connectivity and creates the audit index if missing.
func (c *Client) Initialize(ctx context.Context) error {
	info, err := c.osClient.Info()
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	exists := opensearchapi.IndicesExistsRequest{Index: []string{c.index}}
	existsResp, err := exists.Do(ctx, c.osClient)
	if err != nil {
		return fmt.Errorf("failed to check audit index: %w", err)
	}
	defer existsResp.Body.Close()

	if existsResp.StatusCode == http.StatusOK {
		return nil
	}

	mapping := `{
		"mappings": {
			"properties": {
				"topic":       {"type": "keyword"},
				"action":      {"type": "keyword"},
				"actor":       {"type": "keyword"},
				"payload":     {"type": "object", "enabled": true},
				"recorded_at": {"type": "date"}
			}
		}
	}`

	create := opensearchapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(mapping),
	}
	createResp, err := create.Do(ctx, c.osClient)
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return fmt.Errorf("failed to create audit index: %s", createResp.Status())
	}

	return nil
}

// IndexAudit indexes one audit record, keyed by the record ID so retried
// indexing never duplicates documents.
func (c *Client) IndexAudit(ctx context.Context, record *models.AuditRecord) error {
	req := opensearchapi.IndexRequest{
		Index:      c.index,
		DocumentID: record.ID,
		Body:       opensearchutil.NewJSONReader(record),
	}

	resp, err := req.Do(ctx, c.osClient)
	if err != nil {
		return fmt.Errorf("failed to index audit record: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("audit index request failed: %s", resp.Status())
	}

	return nil
}
