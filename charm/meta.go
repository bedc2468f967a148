// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/juju/schema"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// RelationRole names one of the relation tables of a charm's metadata.
type RelationRole string

const (
	RoleProvider RelationRole = "provides"
	RoleRequirer RelationRole = "requires"
	RolePeer     RelationRole = "peers"
)

// RelationRoles holds every relation role, in the order relation tables
// are searched.
var RelationRoles = []RelationRole{RoleProvider, RoleRequirer, RolePeer}

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Interface string
	Optional  bool
	Limit     int
	Scope     string

	// Options holds the declaration exactly as written, including the
	// interface and any field not understood here.
	Options map[string]interface{}
}

// Meta represents all the known content that may be defined
// within a charm's metadata.yaml file.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Maintainer  string
	Subordinate bool
	Provides    map[string]Relation
	Requires    map[string]Relation
	Peers       map[string]Relation
}

// Table returns the relations declared for the given role. The result
// is nil if the metadata has no such table.
func (m *Meta) Table(role RelationRole) map[string]Relation {
	switch role {
	case RoleProvider:
		return m.Provides
	case RoleRequirer:
		return m.Requires
	case RolePeer:
		return m.Peers
	}
	return nil
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ParseMeta(doc)
}

// ParseMeta interprets an already decoded metadata document.
func ParseMeta(doc Document) (*Meta, error) {
	v, err := charmSchema.Coerce(map[string]interface{}(doc), nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:        m["name"].(string),
		Summary:     m["summary"].(string),
		Description: m["description"].(string),
		Subordinate: m["subordinate"].(bool),
		Provides:    parseRelations(m["provides"]),
		Requires:    parseRelations(m["requires"]),
		Peers:       parseRelations(m["peers"]),
	}
	if maintainer, ok := m["maintainer"].(string); ok {
		meta.Maintainer = maintainer
	}
	// Subordinate charms must have at least one relation that
	// has container scope, otherwise they can't relate to the
	// principal.
	if meta.Subordinate {
		valid := false
		for _, relation := range meta.Requires {
			if relation.Scope == ScopeContainer {
				valid = true
				break
			}
		}
		if !valid {
			return nil, errors.NewNotValid(nil, fmt.Sprintf("subordinate charm %q lacks requires relation with container scope", meta.Name))
		}
	}
	return meta, nil
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	raw := relations.(map[string]interface{})
	result := make(map[string]Relation, len(raw))
	for name, rel := range raw {
		result[name] = rel.(Relation)
	}
	return result
}

// Schema coercer that expands the interface shorthand notation.
// A consistent format is easier to work with than considering the
// potential difference everywhere.
//
// Supports the following variants::
//
//	provides:
//	  server: riak
//	  admin: http
//	  foobar:
//	    interface: blah
//
//	provides:
//	  server:
//	    interface: mysql
//	    limit:
//	    optional: false
//
// In all input cases, the output is a Relation with defaults filled in.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	var options map[string]interface{}
	if s, err := stringC.Coerce(v, path); err == nil {
		options = map[string]interface{}{"interface": s}
	} else {
		raw, err := mapC.Coerce(v, path)
		if err != nil {
			return nil, err
		}
		options = normalize(raw).(map[string]interface{})
	}

	// Optional values are context-sensitive and/or have
	// defaults, which is different than what FieldMap can
	// readily support. So just do it here first, then
	// coerce to the real schema.
	known := make(map[string]interface{}, len(options)+3)
	for k, val := range options {
		known[k] = val
	}
	if _, ok := known["limit"]; !ok {
		known["limit"] = c.limit
	}
	if _, ok := known["optional"]; !ok {
		known["optional"] = false
	}
	if _, ok := known["scope"]; !ok {
		known["scope"] = ScopeGlobal
	}
	out, err := ifaceSchema.Coerce(known, path)
	if err != nil {
		return nil, err
	}
	m := out.(map[string]interface{})
	relation := Relation{
		Interface: m["interface"].(string),
		Optional:  m["optional"].(bool),
		Scope:     m["scope"].(string),
		Options:   options,
	}
	if limit := m["limit"]; limit != nil {
		// Schema defaults to int64, but we know
		// the int range should be more than enough.
		relation.Limit = int(limit.(int64))
	}
	return relation, nil
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	nil,
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"maintainer":  schema.String(),
		"subordinate": schema.Bool(),
		"peers":       schema.StringMap(ifaceExpander(int64(1))),
		"provides":    schema.StringMap(ifaceExpander(nil)),
		"requires":    schema.StringMap(ifaceExpander(int64(1))),
	},
	schema.Defaults{
		"summary":     "",
		"description": "",
		"maintainer":  schema.Omit,
		"subordinate": false,
		"peers":       schema.Omit,
		"provides":    schema.Omit,
		"requires":    schema.Omit,
	},
)
