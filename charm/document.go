// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"fmt"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// MetadataFile is the name of the metadata document inside a charm
// directory.
const MetadataFile = "metadata.yaml"

// Document is the generic form of a charm metadata document, as read
// from or written to metadata.yaml. Nested mappings always use string
// keys.
type Document map[string]interface{}

// EncodeDocument renders the document as block style YAML.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := yaml.Marshal(map[string]interface{}(doc))
	if err != nil {
		return nil, errors.Annotate(err, "encoding metadata")
	}
	return data, nil
}

// DecodeDocument parses YAML into a Document. An empty input yields an
// empty document.
func DecodeDocument(data []byte) (Document, error) {
	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotate(err, "decoding metadata")
	}
	doc := make(Document, len(raw))
	for k, v := range raw {
		doc[fmt.Sprint(k)] = normalize(v)
	}
	return doc, nil
}

// normalize converts the interface keyed maps produced by the YAML
// decoder into string keyed maps, recursively.
func normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

// Copy returns a deep copy of the document.
func (d Document) Copy() Document {
	if d == nil {
		return nil
	}
	return Document(normalize(map[string]interface{}(d)).(map[string]interface{}))
}

// Table returns the relation table for the given role, and whether the
// document declares it at all.
func (d Document) Table(role RelationRole) (map[string]interface{}, bool) {
	v, ok := d[string(role)]
	if !ok {
		return nil, false
	}
	table, ok := v.(map[string]interface{})
	return table, ok
}
