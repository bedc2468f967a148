// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"fmt"
	"math"
	"os"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("charmkit.charm")

// SourceKind identifies where a resolved charm was read from.
type SourceKind string

const (
	// LocalSource is a charm directory on the local filesystem.
	LocalSource SourceKind = "local"
	// BranchSource is a charm read straight out of a version control
	// branch.
	BranchSource SourceKind = "branch"
	// RegistrySource is a charm described by the remote charm registry.
	RegistrySource SourceKind = "registry"
)

// Source records the location a charm was resolved from.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`

	// Location is where the metadata was read. For a staged local
	// charm this is the private copy.
	Location string `json:"location" yaml:"location"`

	// Origin is where the charm's content originally came from, when
	// that differs from Location.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`

	// VCS names the version control system backing the location, if
	// any.
	VCS string `json:"vcs,omitempty" yaml:"vcs,omitempty"`
}

// RelationTables holds the relation tables of a charm, keyed by role.
// Only the provides and requires tables are mirrored here, and a role
// is only present if the charm declares that table. Peer relations stay
// in the charm's Extra fields.
type RelationTables map[RelationRole]map[string]Relation

// tableRoles are the roles mirrored into RelationTables, in the order
// they are searched.
var tableRoles = []RelationRole{RoleProvider, RoleRequirer}

// Charm is the resolved, read-only view of a charm's metadata.
type Charm struct {
	Source      Source
	Name        string
	Summary     string
	Description string
	Maintainer  string
	Subordinate bool
	Relations   RelationTables

	// Extra holds every top level metadata field that has no field of
	// its own above, including any recognised field of the wrong type.
	Extra map[string]interface{}

	doc        Document
	stagingDir string
}

// NewCharm builds a charm model from its metadata document. The
// document is taken as written; use ParseMeta to validate it.
func NewCharm(source Source, doc Document) *Charm {
	ch := &Charm{
		Source:    source,
		Relations: make(RelationTables),
		Extra:     make(map[string]interface{}),
		doc:       doc.Copy(),
	}
	consumed := set.NewStrings()
	for key, target := range map[string]*string{
		"name":        &ch.Name,
		"summary":     &ch.Summary,
		"description": &ch.Description,
		"maintainer":  &ch.Maintainer,
	} {
		if v, ok := ch.doc[key].(string); ok {
			*target = v
			consumed.Add(key)
		}
	}
	if v, ok := ch.doc["subordinate"].(bool); ok {
		ch.Subordinate = v
		consumed.Add("subordinate")
	}
	for _, role := range tableRoles {
		raw, ok := ch.doc[string(role)]
		if !ok {
			continue
		}
		ch.Relations[role] = relationTable(role, raw)
		consumed.Add(string(role))
	}
	for k, v := range ch.doc {
		if !consumed.Contains(k) {
			ch.Extra[k] = v
		}
	}
	return ch
}

// relationTable reads the declarations of one relation table. A table
// that is empty or not a mapping is declared but holds no relations.
func relationTable(role RelationRole, raw interface{}) map[string]Relation {
	table := make(map[string]Relation)
	decls, ok := raw.(map[string]interface{})
	if !ok {
		if raw != nil {
			logger.Debugf("ignoring %s table of type %T", role, raw)
		}
		return table
	}
	for name, decl := range decls {
		table[name] = relationFromDeclaration(decl)
	}
	return table
}

// relationFromDeclaration reads a single relation declaration, which is
// either a mapping or the bare interface name. Scope defaults to global.
// Fields of an unexpected type are left at their zero value; Options
// always keeps the declaration as written.
func relationFromDeclaration(decl interface{}) Relation {
	var options map[string]interface{}
	switch decl := decl.(type) {
	case string:
		options = map[string]interface{}{"interface": decl}
	case map[string]interface{}:
		options = decl
	default:
		return Relation{}
	}
	rel := Relation{Options: options}
	rel.Interface, _ = options["interface"].(string)
	rel.Scope = ScopeGlobal
	if scope, ok := options["scope"].(string); ok {
		rel.Scope = scope
	}
	rel.Optional, _ = options["optional"].(bool)
	switch limit := options["limit"].(type) {
	case int:
		rel.Limit = limit
	case int64:
		rel.Limit = int(limit)
	case float64:
		if limit == math.Trunc(limit) {
			rel.Limit = int(limit)
		}
	}
	return rel
}

// NewStagedCharm is like NewCharm, but the returned charm owns
// stagingDir and removes it when closed.
func NewStagedCharm(source Source, doc Document, stagingDir string) *Charm {
	ch := NewCharm(source, doc)
	ch.stagingDir = stagingDir
	return ch
}

// Document returns a copy of the metadata document the charm was built
// from.
func (c *Charm) Document() Document {
	return c.doc.Copy()
}

// Relation returns the role and interface of the named relation. Both
// are empty if the charm declares a provides or requires table but
// neither contains the name.
func (c *Charm) Relation(name string) (RelationRole, string, error) {
	if len(c.Relations) == 0 {
		return "", "", errors.Annotatef(NoRelations, "charm %q", c.Name)
	}
	for _, role := range tableRoles {
		table, ok := c.Relations[role]
		if !ok {
			continue
		}
		if rel, ok := table[name]; ok {
			return role, rel.Interface, nil
		}
	}
	return "", "", nil
}

// Close releases the private staging copy, if the charm has one. It is
// safe to call more than once.
func (c *Charm) Close() error {
	if c.stagingDir == "" {
		return nil
	}
	dir := c.stagingDir
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		logger.Warningf("cannot remove staging directory %q: %v", dir, err)
		return errors.Annotatef(err, "removing staging directory %q", dir)
	}
	logger.Debugf("removed staging directory %q", dir)
	c.stagingDir = ""
	return nil
}

// String implements fmt.Stringer.
func (c *Charm) String() string {
	return fmt.Sprintf("<%s charm %s>", c.Source.Kind, c.Source.Location)
}
