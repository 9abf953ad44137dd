// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink stores mapped documents in an Elasticsearch index.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Elasticsearch is a harvest sink backed by one Elasticsearch index. The
// target index is fixed by Prepare.
type Elasticsearch struct {
	client  *elasticsearch.Client
	index   string
	refresh string
	timeout time.Duration
	log     logger.Logger

	target string
}

// Option configures NewElasticsearch.
type Option func(*elasticsearch.Config)

// WithTransport replaces the HTTP transport of the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *elasticsearch.Config) { c.Transport = rt }
}

// NewElasticsearch builds a sink from cfg.
func NewElasticsearch(cfg types.ElasticsearchConfig, log logger.Logger, opts ...Option) (*Elasticsearch, error) {
	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}
	for _, opt := range opts {
		opt(&esCfg)
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultESTimeout
	}
	refresh := cfg.Refresh
	if refresh == "" {
		refresh = "false"
	}
	return &Elasticsearch{
		client:  client,
		index:   cfg.Index,
		refresh: refresh,
		timeout: timeout,
		log:     logger.OrNop(log),
	}, nil
}

// IndexName returns the index used for rs: the configured override or the
// rule set's own index name.
func (s *Elasticsearch) IndexName(rs *ruleset.RuleSet) string {
	if s.index != "" {
		return s.index
	}
	return rs.IndexName()
}

// Prepare makes sure the index for rs exists. A missing index is created
// with the rule set's settings and mapping when the rule set allows it;
// an existing index has its _meta updated.
func (s *Elasticsearch) Prepare(ctx context.Context, rs *ruleset.RuleSet) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	index := s.IndexName(rs)

	res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, &Error{Op: "exists", Index: index, Err: err}
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		if err := s.putMeta(ctx, index, rs); err != nil {
			return false, err
		}
	case http.StatusNotFound:
		if !rs.Index.Create {
			return false, &Error{Op: "prepare", Index: index, Err: ErrIndexMissing}
		}
		if err := s.create(ctx, index, rs); err != nil {
			return false, err
		}
	default:
		return false, &Error{Op: "exists", Index: index, Status: res.StatusCode}
	}

	s.target = index
	return true, nil
}

func (s *Elasticsearch) create(ctx context.Context, index string, rs *ruleset.RuleSet) error {
	body := map[string]any{"mappings": BuildMapping(rs)}
	if len(rs.Index.Settings) > 0 {
		body["settings"] = rs.Index.Settings
	}
	data, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: "create", Index: index, Err: err}
	}

	res, err := s.client.Indices.Create(index,
		s.client.Indices.Create.WithBody(bytes.NewReader(data)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return &Error{Op: "create", Index: index, Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create", index, res)
	}
	s.log.Info("Created index", logger.String("index", index), logger.String("rule_set", rs.Name))
	return nil
}

func (s *Elasticsearch) putMeta(ctx context.Context, index string, rs *ruleset.RuleSet) error {
	data, err := json.Marshal(map[string]any{"_meta": meta(rs)})
	if err != nil {
		return &Error{Op: "put_mapping", Index: index, Err: err}
	}
	res, err := s.client.Indices.PutMapping([]string{index}, bytes.NewReader(data),
		s.client.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return &Error{Op: "put_mapping", Index: index, Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("put_mapping", index, res)
	}
	return nil
}

// Store indexes one document under its id.
func (s *Elasticsearch) Store(ctx context.Context, doc types.Document) (bool, error) {
	if s.target == "" {
		return false, ErrNotPrepared
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(doc)
	if err != nil {
		return false, &Error{Op: "index", Index: s.target, Err: err}
	}
	res, err := s.client.Index(s.target, bytes.NewReader(data),
		s.client.Index.WithDocumentID(doc.ID),
		s.client.Index.WithRefresh(s.refresh),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return false, &Error{Op: "index", Index: s.target, Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, responseError("index", s.target, res)
	}
	return true, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string      `json:"_id"`
		Status int         `json:"status"`
		Error  *errorCause `json:"error"`
	} `json:"items"`
}

// StoreAll indexes docs with one bulk request. It reports failure when the
// request fails or any document is rejected.
func (s *Elasticsearch) StoreAll(ctx context.Context, docs []types.Document) (bool, error) {
	if s.target == "" {
		return false, ErrNotPrepared
	}
	if len(docs) == 0 {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": s.target, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return false, &Error{Op: "bulk", Index: s.target, Err: err}
		}
		if err := enc.Encode(doc); err != nil {
			return false, &Error{Op: "bulk", Index: s.target, Err: err}
		}
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithRefresh(s.refresh),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return false, &Error{Op: "bulk", Index: s.target, Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, responseError("bulk", s.target, res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return false, &Error{Op: "bulk", Index: s.target, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if !br.Errors {
		return true, nil
	}
	var rejected []string
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error != nil {
				rejected = append(rejected, fmt.Sprintf("%s: %s", r.ID, r.Error.Reason))
			}
		}
	}
	return false, &Error{
		Op:     "bulk",
		Index:  s.target,
		Reason: fmt.Sprintf("%d of %d documents rejected (%s)", len(rejected), len(docs), strings.Join(rejected, "; ")),
		Err:    ErrBulkRejected,
	}
}

// Clear deletes every document of the rule set's index, or the index
// itself when clearMetadata is set. A missing index is already clear.
func (s *Elasticsearch) Clear(ctx context.Context, rs *ruleset.RuleSet, clearMetadata bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	index := s.IndexName(rs)

	if clearMetadata {
		res, err := s.client.Indices.Delete([]string{index},
			s.client.Indices.Delete.WithIgnoreUnavailable(true),
			s.client.Indices.Delete.WithContext(ctx),
		)
		if err != nil {
			return false, &Error{Op: "delete_index", Index: index, Err: err}
		}
		defer res.Body.Close()
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			return false, responseError("delete_index", index, res)
		}
		s.log.Info("Deleted index", logger.String("index", index))
		return true, nil
	}

	res, err := s.client.DeleteByQuery([]string{index}, strings.NewReader(`{"query":{"match_all":{}}}`),
		s.client.DeleteByQuery.WithConflicts("proceed"),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return false, &Error{Op: "delete_by_query", Index: index, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if res.IsError() {
		return false, responseError("delete_by_query", index, res)
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil {
		s.log.Info("Cleared index", logger.String("index", index), logger.Int64("deleted", out.Deleted))
	}
	return true, nil
}
