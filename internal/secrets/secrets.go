// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: elasticsearch-api-key, elasticsearch-username,
// elasticsearch-password, csw-username, csw-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/harvester/pkg/types"
)

// Key file names read by Apply.
const (
	ElasticsearchAPIKey   = "elasticsearch-api-key"
	ElasticsearchUsername = "elasticsearch-username"
	ElasticsearchPassword = "elasticsearch-password"
	CSWUsername           = "csw-username"
	CSWPassword           = "csw-password"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills credentials in cfg that are not already set from secrets.
// Values from the config file or environment take precedence.
func Apply(cfg *types.Config, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}
	fill(&cfg.Elasticsearch.APIKey, ElasticsearchAPIKey)
	fill(&cfg.Elasticsearch.Username, ElasticsearchUsername)
	fill(&cfg.Elasticsearch.Password, ElasticsearchPassword)
	fill(&cfg.Source.CSW.Username, CSWUsername)
	fill(&cfg.Source.CSW.Password, CSWPassword)
}
