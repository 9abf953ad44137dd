// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/httputil"
	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/mapper"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/selector"
	"github.com/pdiddy/harvester/pkg/types"
)

// CSWNamespace is the OGC CSW 2.0.2 namespace.
const CSWNamespace = "http://www.opengis.net/cat/csw/2.0.2"

// pageSize is the page used by Records when fetching everything.
const pageSize = 100

// ErrServiceException is returned when the catalog answers with an OWS
// exception report.
var ErrServiceException = errors.New("catalog service exception")

// CSW fetches records from an OGC Catalogue Service for the Web with
// GetRecords requests over HTTP GET.
type CSW struct {
	cfg    types.CSWConfig
	base   *url.URL
	client *http.Client
	log    logger.Logger

	results   *selector.Expr
	matched   *selector.Expr
	exception *selector.Expr
	code      *selector.Expr
}

// NewCSW returns a CSW source for cfg.URL. Unset fields take the defaults
// from types.Config.SetDefaults.
func NewCSW(cfg types.CSWConfig, log logger.Logger) (*CSW, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing CSW URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("CSW URL %q must be http or https", cfg.URL)
	}
	if cfg.TypeNames == "" {
		cfg.TypeNames = types.DefaultTypeNames
	}
	if cfg.OutputSchema == "" {
		cfg.OutputSchema = types.DefaultOutputSchema
	}
	if cfg.ElementSetName == "" {
		cfg.ElementSetName = types.DefaultElementSetName
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultHTTPTimeout
	}

	comp, err := selector.NewCompiler(selector.Version1, map[string]string{"csw": CSWNamespace})
	if err != nil {
		return nil, err
	}
	c := &CSW{
		cfg:    cfg,
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.OrNop(log),
	}
	for expr, dst := range map[string]**selector.Expr{
		"//csw:SearchResults":                          &c.results,
		"//csw:SearchResults/@numberOfRecordsMatched":  &c.matched,
		"//*[local-name()='ExceptionText']":            &c.exception,
		"//*[local-name()='Exception']/@exceptionCode": &c.code,
	} {
		if *dst, err = comp.Compile(expr); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Endpoint returns the catalog URL.
func (c *CSW) Endpoint() string { return c.cfg.URL }

// RecordCount issues a hits request and returns numberOfRecordsMatched.
func (c *CSW) RecordCount(ctx context.Context) (int64, error) {
	doc, err := c.getRecords(ctx, "hits", 0, 0)
	if err != nil {
		return 0, err
	}
	s, err := c.matched.StringValue(doc)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, fmt.Errorf("GetRecords hits response from %s has no SearchResults", c.cfg.URL)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing numberOfRecordsMatched %q: %w", s, err)
	}
	return n, nil
}

// Records pages through the whole catalog.
func (c *CSW) Records(ctx context.Context, report *types.Report) ([]types.SourceRecord, error) {
	total, err := c.RecordCount(ctx)
	if err != nil {
		return nil, err
	}
	var all []types.SourceRecord
	for start := 0; int64(start) < total; start += pageSize {
		page, err := c.RecordsRange(ctx, start, pageSize, report)
		if err != nil {
			return all, err
		}
		all = append(all, page...)
	}
	return all, nil
}

// RecordsRange returns up to max records starting at the zero-based
// position start. Each record is re-parsed into its own document so that
// absolute expressions address the record root.
func (c *CSW) RecordsRange(ctx context.Context, start, max int, report *types.Report) ([]types.SourceRecord, error) {
	if max <= 0 {
		return nil, nil
	}
	doc, err := c.getRecords(ctx, "results", start+1, max)
	if err != nil {
		return nil, err
	}
	results, err := c.results.First(doc)
	if err != nil {
		return nil, err
	}
	if results == nil {
		return nil, fmt.Errorf("GetRecords response from %s has no SearchResults", c.cfg.URL)
	}

	var records []types.SourceRecord
	pos := start
	for n := results.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		pos++
		origin := fmt.Sprintf("%s#%d", c.cfg.URL, pos)
		text := mapper.Serialize(n, ruleset.OutputProperties{OmitDeclaration: true})
		rec, err := xmlquery.Parse(strings.NewReader(text))
		if err != nil {
			report.Error("Re-parsing record %s failed: %v", origin, err)
			c.log.Warn("Skipping unparseable catalog record", logger.String("origin", origin), logger.Error(err))
			continue
		}
		records = append(records, types.NewSourceRecord(origin, rec))
	}
	c.log.Debug("Fetched catalog page",
		logger.Int("start", start),
		logger.Int("requested", max),
		logger.Int("returned", len(records)),
	)
	return records, nil
}

// query builds the GetRecords KVP parameters.
func (c *CSW) query(resultType string, startPosition, maxRecords int) url.Values {
	q := c.base.Query()
	q.Set("service", "CSW")
	q.Set("version", "2.0.2")
	q.Set("request", "GetRecords")
	q.Set("typeNames", c.cfg.TypeNames)
	q.Set("resultType", resultType)
	q.Set("elementSetName", c.cfg.ElementSetName)
	q.Set("outputSchema", c.cfg.OutputSchema)
	if c.cfg.Namespace != "" {
		q.Set("namespace", c.cfg.Namespace)
	}
	if startPosition > 0 {
		q.Set("startPosition", strconv.Itoa(startPosition))
		q.Set("maxRecords", strconv.Itoa(maxRecords))
	}
	if c.cfg.Constraint != "" {
		q.Set("constraintLanguage", "CQL_TEXT")
		q.Set("constraint_language_version", "1.1.0")
		q.Set("constraint", c.cfg.Constraint)
	}
	return q
}

func (c *CSW) getRecords(ctx context.Context, resultType string, startPosition, maxRecords int) (*xmlquery.Node, error) {
	u := *c.base
	u.RawQuery = c.query(resultType, startPosition, maxRecords).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating GetRecords request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries, c.log)
	if err != nil {
		return nil, fmt.Errorf("GetRecords request: %w", err)
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp); err != nil {
		return nil, err
	}

	doc, err := xmlquery.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing GetRecords response: %w", err)
	}
	if err := c.checkException(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *CSW) checkException(doc *xmlquery.Node) error {
	root := types.RootElement(doc)
	if root == nil || root.Data != "ExceptionReport" {
		return nil
	}
	text, _ := c.exception.StringValue(doc)
	code, _ := c.code.StringValue(doc)
	return fmt.Errorf("%w: %s: %s", ErrServiceException, code, strings.TrimSpace(text))
}
