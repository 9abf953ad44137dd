// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "harvester/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429 and 5xx responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// HarvestConfig holds settings for the harvest loop.
type HarvestConfig struct {
	// RulesFile is the rule document that maps records to index documents.
	RulesFile string `json:"rules_file" yaml:"rules_file" mapstructure:"rules_file"`

	// BulkSize is the number of records fetched per page (default 50).
	BulkSize int `json:"bulk_size" yaml:"bulk_size" mapstructure:"bulk_size"`

	// RecordsLimit caps the number of records harvested; zero or negative is unbounded.
	RecordsLimit int `json:"records_limit" yaml:"records_limit" mapstructure:"records_limit"`

	// StartOffset is the zero-based position of the first record to harvest.
	StartOffset int `json:"start_offset" yaml:"start_offset" mapstructure:"start_offset"`

	// BulkStore sends each page to the sink in one bulk request, falling
	// back to per-document stores when the bulk request fails.
	BulkStore bool `json:"bulk_store" yaml:"bulk_store" mapstructure:"bulk_store"`

	// Filter is an optional CEL expression over id and doc; records for
	// which it evaluates to false are skipped.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty" mapstructure:"filter"`

	// MetricsFile, when set, receives Prometheus metrics in text format at the end of the run.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// SourceKind selects the record source implementation.
type SourceKind string

const (
	SourceDirectory SourceKind = "dir"
	SourceCSW       SourceKind = "csw"
)

// CSWConfig holds settings for an OGC Catalogue Service for the Web endpoint.
type CSWConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the CSW endpoint (e.g. "https://catalog.example.org/csw").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// TypeNames is the typeNames parameter (default "gmd:MD_Metadata").
	TypeNames string `json:"type_names" yaml:"type_names" mapstructure:"type_names"`

	// OutputSchema is the requested record schema
	// (default "http://www.isotc211.org/2005/gmd").
	OutputSchema string `json:"output_schema" yaml:"output_schema" mapstructure:"output_schema"`

	// ElementSetName is brief, summary or full (default "full").
	ElementSetName string `json:"element_set_name" yaml:"element_set_name" mapstructure:"element_set_name"`

	// Namespace is the namespace parameter declaring the typeNames prefix.
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`

	// Constraint is an optional CQL_TEXT constraint.
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty" mapstructure:"constraint"`

	// Username and Password enable HTTP basic auth.
	Username string `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
	Password string `json:"-" yaml:"-" mapstructure:"password"`
}

// SourceConfig selects and configures the record source.
type SourceConfig struct {
	// Kind is "dir" or "csw".
	Kind SourceKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Dir is the directory scanned by the directory source.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Pattern is the file glob used by the directory source (default "*.xml").
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`

	CSW CSWConfig `json:"csw" yaml:"csw" mapstructure:"csw"`
}

// ElasticsearchConfig holds settings for the search-index sink.
type ElasticsearchConfig struct {
	// Addresses lists the cluster URLs (default http://localhost:9200).
	Addresses []string `json:"addresses" yaml:"addresses" mapstructure:"addresses"`

	Username string `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
	Password string `json:"-" yaml:"-" mapstructure:"password"`
	APIKey   string `json:"-" yaml:"-" mapstructure:"api_key"`

	// Index overrides the index name declared by the rule set.
	Index string `json:"index,omitempty" yaml:"index,omitempty" mapstructure:"index"`

	// Refresh is passed as the refresh parameter of write requests ("false", "true", "wait_for").
	Refresh string `json:"refresh" yaml:"refresh" mapstructure:"refresh"`

	// Timeout bounds each request to the cluster (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the client's retry count for transport failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ValidationConfig enables record validation before mapping.
type ValidationConfig struct {
	// Enabled turns validation on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Files lists validator documents.
	Files []string `json:"files" yaml:"files" mapstructure:"files"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Development disables sampling.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// RunsConfig configures the run-history database.
type RunsConfig struct {
	// Dir holds the runs database (default "runs").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Disabled skips saving reports.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`
}

// Config groups all harvester settings.
type Config struct {
	Harvest       HarvestConfig       `json:"harvest" yaml:"harvest" mapstructure:"harvest"`
	Source        SourceConfig        `json:"source" yaml:"source" mapstructure:"source"`
	Elasticsearch ElasticsearchConfig `json:"elasticsearch" yaml:"elasticsearch" mapstructure:"elasticsearch"`
	Validation    ValidationConfig    `json:"validation" yaml:"validation" mapstructure:"validation"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging" mapstructure:"logging"`
	Runs          RunsConfig          `json:"runs" yaml:"runs" mapstructure:"runs"`
}

// Defaults.
const (
	DefaultBulkSize       = 50
	DefaultUserAgent      = "harvester/0.1"
	DefaultHTTPTimeout    = 60 * time.Second
	DefaultESTimeout      = 30 * time.Second
	DefaultTypeNames      = "gmd:MD_Metadata"
	DefaultOutputSchema   = "http://www.isotc211.org/2005/gmd"
	DefaultElementSetName = "full"
	DefaultCSWNamespace   = "xmlns(gmd=http://www.isotc211.org/2005/gmd)"
)

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Harvest.BulkSize <= 0 {
		c.Harvest.BulkSize = DefaultBulkSize
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceDirectory
	}
	if c.Source.Pattern == "" {
		c.Source.Pattern = "*.xml"
	}
	csw := &c.Source.CSW
	if csw.Timeout <= 0 {
		csw.Timeout = DefaultHTTPTimeout
	}
	if csw.UserAgent == "" {
		csw.UserAgent = DefaultUserAgent
	}
	if csw.TypeNames == "" {
		csw.TypeNames = DefaultTypeNames
	}
	if csw.OutputSchema == "" {
		csw.OutputSchema = DefaultOutputSchema
	}
	if csw.ElementSetName == "" {
		csw.ElementSetName = DefaultElementSetName
	}
	if csw.Namespace == "" {
		csw.Namespace = DefaultCSWNamespace
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if c.Elasticsearch.Refresh == "" {
		c.Elasticsearch.Refresh = "false"
	}
	if c.Elasticsearch.Timeout <= 0 {
		c.Elasticsearch.Timeout = DefaultESTimeout
	}
	if c.Elasticsearch.MaxRetries <= 0 {
		c.Elasticsearch.MaxRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Runs.Dir == "" {
		c.Runs.Dir = "runs"
	}
}
