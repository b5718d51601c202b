package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// Format is a plan document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", errors.New(errors.ErrCodePlanFormat, fmt.Sprintf("unsupported plan format %q", s)).
			WithSuggestion("Use one of: json, yaml, toml")
	}
}

// FormatFromPath picks the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatJSON
	}
	return f
}

// Encode writes the plan document to w
func Encode(w io.Writer, p *Plan, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(p); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// Marshal encodes the plan document into memory
func Marshal(p *Plan, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a plan document
func Decode(r io.Reader, format Format) (*Plan, error) {
	var p Plan
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if p.Criteria == nil {
		p.Criteria = map[string][]AcceptanceCriterion{}
	}
	if p.Prompts == nil {
		p.Prompts = map[string]DeveloperPrompt{}
	}
	return &p, nil
}

// Read decodes a plan file without checking its invariants
func Read(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "open plan file", err)
	}
	defer f.Close()

	format := FormatFromPath(path)
	p, err := Decode(f, format)
	if err != nil {
		return nil, errors.NewFileUnmarshalError(path, strings.ToUpper(string(format)), err)
	}
	return p, nil
}

// Load reads a plan file and validates it as an exported plan
func Load(path string) (*Plan, error) {
	p, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(LevelExport); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	return p, nil
}

// Save writes the plan document, choosing the format from the extension
func Save(p *Plan, path string) error {
	data, err := Marshal(p, FormatFromPath(path))
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal plan", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write plan file", err)
	}
	return nil
}
