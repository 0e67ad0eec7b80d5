package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported parameter format")

// ParamsToJSON converts a parameter document to JSON text. ext selects the
// decoder: .json, .yaml, .yml or .toml.
func ParamsToJSON(data []byte, ext string) (string, error) {
	data = bytes.TrimSpace(data)

	switch strings.ToLower(ext) {
	case ".json":
		if len(data) == 0 {
			return "{}", nil
		}
		if !sonic.Valid(data) {
			return "", errors.New("invalid JSON")
		}
		return string(data), nil

	case ".yaml", ".yml":
		if len(data) == 0 {
			return "{}", nil
		}
		out, err := yaml.YAMLToJSON(data)
		if err != nil {
			return "", fmt.Errorf("invalid YAML: %w", err)
		}
		return strings.TrimSpace(string(out)), nil

	case ".toml":
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("invalid TOML: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		out, err := sonic.ConfigStd.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
}
