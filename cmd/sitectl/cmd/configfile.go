package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

// isYAML reports whether path names a YAML document.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeConfig parses a site config written as JSON, or as YAML when
// asYAML is set. YAML keys are the JSON field names.
func decodeConfig(data []byte, asYAML bool) (*siteconfig.SiteConfig, error) {
	if asYAML {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if doc == nil {
			return siteconfig.Default(), nil
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = raw
	}
	if strings.TrimSpace(string(data)) == "" {
		return siteconfig.Default(), nil
	}
	return siteconfig.Parse(data)
}

// encodeConfig renders cfg as indented JSON, or YAML when asYAML is set.
func encodeConfig(cfg *siteconfig.SiteConfig, asYAML bool) ([]byte, error) {
	raw, err := cfg.Encode()
	if err != nil {
		return nil, err
	}
	if !asYAML {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func readConfigFile(path string) (*siteconfig.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := decodeConfig(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// writeFileAtomic replaces path so a watcher never reads a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
