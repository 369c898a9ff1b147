// Package settings loads the site settings resource shared by every check.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognized keys.
const (
	KeySiteURL = "site_url"
	KeyName    = "name"
)

// DefaultPath is where the settings resource is looked up when no path is given.
const DefaultPath = "./settings.json"

var requiredKeys = []string{KeySiteURL, KeyName} //nolint:gochecknoglobals

// ConfigurationError is returned when the settings resource is missing,
// unreadable, malformed or lacks a required key.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("settings %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("settings %q: %s", e.Path, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Settings is an immutable key-value mapping.
type Settings struct {
	path   string
	values map[string]string
}

// Load reads the settings resource at path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		reason := "reading file"
		if errors.Is(err, os.ErrNotExist) {
			reason = "file not found"
		}
		return nil, &ConfigurationError{Path: path, Reason: reason, Err: err}
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = decodeYAML(data)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "malformed key-value data", Err: err}
	}

	return fromMap(path, raw)
}

// decodeYAML decodes a YAML mapping. Scalars keep their source text, so
// dates, timestamps and numbers like 1.50 load exactly as written.
func decodeYAML(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if len(doc.Content) == 0 {
		return raw, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: document is not a mapping", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		for v.Kind == yaml.AliasNode {
			v = v.Alias
		}
		switch {
		case v.Kind == yaml.ScalarNode && v.ShortTag() == "!!null":
			raw[k.Value] = nil
		case v.Kind == yaml.ScalarNode:
			raw[k.Value] = v.Value
		default:
			var nested any
			if err := v.Decode(&nested); err != nil {
				return nil, fmt.Errorf("line %d: %w", v.Line, err)
			}
			raw[k.Value] = nested
		}
	}

	return raw, nil
}

// FromMap builds Settings from an in-memory mapping, applying the same
// validation as Load.
func FromMap(values map[string]any) (*Settings, error) {
	return fromMap("<memory>", values)
}

func fromMap(path string, raw map[string]any) (*Settings, error) {
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := scalar(v)
		if !ok {
			return nil, &ConfigurationError{
				Path:   path,
				Reason: fmt.Sprintf("key %q must hold a scalar value, got %T", k, v),
			}
		}
		values[k] = s
	}
	for _, k := range requiredKeys {
		if strings.TrimSpace(values[k]) == "" {
			return nil, &ConfigurationError{Path: path, Reason: fmt.Sprintf("missing required key %q", k)}
		}
	}

	return &Settings{path: path, values: values}, nil
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Path returns where the settings were loaded from.
func (s *Settings) Path() string { return s.path }

// SiteURL is the page every check runs against.
func (s *Settings) SiteURL() string { return s.values[KeySiteURL] }

// Name is the identity text expected in the page title and heading.
func (s *Settings) Name() string { return s.values[KeyName] }

// Get returns the value stored under key.
func (s *Settings) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the loaded keys in sorted order.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the loaded values.
func (s *Settings) Map() map[string]string {
	m := make(map[string]string, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}
