package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relir/internal/relation"
)

// Format selects the text encoding of a document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" and "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown document format %q (want yaml or json)", s)
}

// Decode parses a YAML or JSON document into a string-keyed mapping.
// JSON is read as YAML, which it is a subset of.
func Decode(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, relation.NewSerializationError("", "parse document: %v", err)
	}
	norm, err := normalize(raw, "")
	if err != nil {
		return nil, err
	}
	doc, ok := norm.(map[string]any)
	if !ok {
		return nil, relation.NewSerializationError("", "document is a %T, not a mapping", norm)
	}
	return doc, nil
}

// Encode renders doc in the given format. Mapping keys come out sorted
// in both formats.
func Encode(doc map[string]any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

// ReadDocument decodes data and reads the relation it describes.
func (r *Reader) ReadDocument(data []byte) (relation.Relation, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return r.Read(doc)
}

// normalize converts mappings with non-string keys, which yaml produces
// for keys such as 1 or true, into string-keyed ones, rejecting keys that
// are not scalars.
func normalize(v any, path string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			n, err := normalize(item, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			switch k.(type) {
			case string, int, bool, float64:
			default:
				return nil, relation.NewSerializationError(path, "mapping key %v is not a scalar", k)
			}
			key := fmt.Sprint(k)
			n, err := normalize(item, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		for i, item := range val {
			n, err := normalize(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	default:
		return v, nil
	}
}
