// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package builder synthesizes new charms from a template directory.
//
// Every relation declared on a Builder is written straight to the charm's
// metadata.yaml and recorded as a checkpoint, so the history of the
// working tree shows each step of the charm's construction.
package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/utils/v4/fs"

	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/checkpoint"
)

var logger = loggo.GetLogger("charmkit.builder")

const (
	// DefaultHookFile is the hook every relation hook links to, unless
	// configured otherwise.
	DefaultHookFile = "hooks.py"

	// DefaultSummary is used for both the summary and description of a
	// generated charm.
	DefaultSummary = "Generated by charmkit"

	// DefaultMaintainer is the maintainer of a generated charm.
	DefaultMaintainer = "charmkit <juju@lists.ubuntu.com>"

	// JujuInfo is the relation every subordinate charm requires.
	JujuInfo = "juju-info"

	writeMessage      = "Writing Metadata"
	checkpointMessage = "Checkpoint"
	hooksDir          = "hooks"
)

var relationEvents = []string{"joined", "changed", "departed", "broken"}

// Config holds the parameters of a new charm.
type Config struct {
	// Name is the name of the charm.
	Name string

	// Template is the directory the charm is copied from.
	Template string

	// Subordinate marks the charm as a subordinate.
	Subordinate bool

	// HookFile is the file in hooks/ that relation hooks link to. It
	// defaults to DefaultHookFile.
	HookFile string

	// Checkpoints records the history of the working tree.
	Checkpoints checkpoint.Log

	// TempDir is the parent of the working tree's directory. The OS
	// temporary directory is used when it is empty.
	TempDir string
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if cfg.Name == "" {
		return errors.NotValidf("empty Name")
	}
	if !names.IsValidApplication(cfg.Name) {
		return errors.NotValidf("charm name %q", cfg.Name)
	}
	if cfg.HookFile != "" && (strings.ContainsRune(cfg.HookFile, '/') || cfg.HookFile == "." || cfg.HookFile == "..") {
		return errors.NotValidf("hook file %q", cfg.HookFile)
	}
	if cfg.Checkpoints == nil {
		return errors.NotValidf("nil Checkpoints")
	}
	return nil
}

// Builder owns the working tree of a charm under construction. It is
// not safe for concurrent use.
type Builder struct {
	dir      string
	tempDir  string
	hookFile string
	log      checkpoint.Log
	metadata charm.Document
}

// Create copies the template into a new working tree, puts it under
// version control and returns a Builder for it. Subordinate charms get
// their juju-info relation declared straight away.
func Create(cfg Config) (_ *Builder, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	template, err := templatePath(cfg.Template)
	if err != nil {
		return nil, errors.Trace(err)
	}
	hookFile := cfg.HookFile
	if hookFile == "" {
		hookFile = DefaultHookFile
	}

	prefix := "charm_"
	if cfg.Subordinate {
		prefix = "charm-sub_"
	}
	tempDir, err := os.MkdirTemp(cfg.TempDir, prefix)
	if err != nil {
		return nil, errors.Annotate(err, "creating working tree")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tempDir)
		}
	}()

	dir := filepath.Join(tempDir, cfg.Name)
	if err := fs.Copy(template, dir); err != nil {
		return nil, errors.Annotatef(err, "copying template %q", template)
	}
	if err := makeHooksExecutable(dir); err != nil {
		return nil, errors.Trace(err)
	}
	if err := cfg.Checkpoints.Init(dir); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("created charm %q in %q from %q", cfg.Name, dir, template)

	b := &Builder{
		dir:      dir,
		tempDir:  tempDir,
		hookFile: hookFile,
		log:      cfg.Checkpoints,
		metadata: charm.Document{
			"name":        cfg.Name,
			"summary":     DefaultSummary,
			"description": DefaultSummary,
			"maintainer":  DefaultMaintainer,
			"subordinate": cfg.Subordinate,
		},
	}
	hook := filepath.Join(dir, hooksDir, hookFile)
	if err := os.Chmod(hook, 0755); os.IsNotExist(err) {
		return nil, errors.Annotatef(charm.InvalidTemplate, "template %q has no hooks/%s", cfg.Template, hookFile)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Subordinate {
		err := b.Require(JujuInfo, JujuInfo, map[string]interface{}{
			"scope": charm.ScopeContainer,
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return b, nil
}

// templatePath returns the real path of the template directory.
func templatePath(template string) (string, error) {
	if template == "" {
		return "", errors.Annotate(charm.InvalidTemplate, "empty template path")
	}
	path, err := filepath.Abs(template)
	if err != nil {
		return "", errors.Trace(err)
	}
	path, err = filepath.EvalSymlinks(path)
	if os.IsNotExist(err) {
		return "", errors.Annotatef(charm.InvalidTemplate, "%q does not exist", template)
	} else if err != nil {
		return "", errors.Trace(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Trace(err)
	}
	if !info.IsDir() {
		return "", errors.Annotatef(charm.InvalidTemplate, "%q is not a directory", template)
	}
	return path, nil
}

// makeHooksExecutable sets the permissions of every file directly
// under hooks/ to 0755. A symlinked hook has its target changed instead,
// provided the target lies inside the working tree; dangling links and
// links leaving the tree are left alone.
func makeHooksExecutable(dir string) error {
	hooks := filepath.Join(dir, hooksDir)
	entries, err := os.ReadDir(hooks)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	for _, entry := range entries {
		path := filepath.Join(hooks, entry.Name())
		if entry.Type()&os.ModeSymlink != 0 {
			target, ok := linkTargetWithin(dir, path)
			if !ok {
				logger.Debugf("not changing permissions of %q", path)
				continue
			}
			path = target
		}
		if err := os.Chmod(path, 0755); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// linkTargetWithin resolves the symlink at path and reports whether its
// final target exists inside dir.
func linkTargetWithin(dir, path string) (string, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

// Dir returns the path of the working tree.
func (b *Builder) Dir() string {
	return b.dir
}

// Metadata returns a copy of the charm's current metadata.
func (b *Builder) Metadata() charm.Document {
	return b.metadata.Copy()
}

// Charm returns the model of the charm as it stands.
func (b *Builder) Charm() *charm.Charm {
	return charm.NewCharm(charm.Source{
		Kind:     charm.LocalSource,
		Location: b.dir,
	}, b.metadata)
}

// Require declares a relation the charm requires.
func (b *Builder) Require(name, iface string, options map[string]interface{}) error {
	return errors.Trace(b.declare(charm.RoleRequirer, name, iface, options))
}

// Provide declares a relation the charm provides.
func (b *Builder) Provide(name, iface string, options map[string]interface{}) error {
	return errors.Trace(b.declare(charm.RoleProvider, name, iface, options))
}

// Peer declares a peer relation.
func (b *Builder) Peer(name, iface string, options map[string]interface{}) error {
	return errors.Trace(b.declare(charm.RolePeer, name, iface, options))
}

// declare replaces any existing declaration of the relation name in the
// role's table, links the relation's hooks to the hook file and writes
// the metadata.
func (b *Builder) declare(role charm.RelationRole, name, iface string, options map[string]interface{}) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return errors.NotValidf("relation name %q", name)
	}
	if iface == "" {
		return errors.NotValidf("empty interface for relation %q", name)
	}
	declaration := map[string]interface{}(charm.Document(options).Copy())
	if declaration == nil {
		declaration = make(map[string]interface{})
	}
	declaration["interface"] = iface

	table, ok := b.metadata.Table(role)
	if !ok {
		table = make(map[string]interface{})
		b.metadata[string(role)] = table
	}
	table[name] = declaration
	logger.Debugf("declared %s relation %q with interface %q", role, name, iface)

	if err := b.linkHooks(name); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(b.writeMetadata())
}

// linkHooks links every missing hook of the relation name to the hook
// file. Existing hooks are not touched.
func (b *Builder) linkHooks(name string) error {
	hooks := filepath.Join(b.dir, hooksDir)
	if err := os.MkdirAll(hooks, 0755); err != nil {
		return errors.Trace(err)
	}
	for _, event := range relationEvents {
		hook := filepath.Join(hooks, fmt.Sprintf("%s-relation-%s", name, event))
		if _, err := os.Lstat(hook); err == nil {
			logger.Tracef("keeping existing hook %q", hook)
			continue
		} else if !os.IsNotExist(err) {
			return errors.Trace(err)
		}
		if err := os.Symlink(b.hookFile, hook); err != nil {
			return errors.Annotatef(err, "linking hook %q", hook)
		}
	}
	return nil
}

func (b *Builder) writeMetadata() error {
	data, err := charm.EncodeDocument(b.metadata)
	if err != nil {
		return errors.Trace(err)
	}
	path := filepath.Join(b.dir, charm.MetadataFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Annotate(err, "writing metadata")
	}
	return errors.Trace(b.Save(writeMessage))
}

// Save checkpoints the working tree as it stands. An empty message is
// recorded as "Checkpoint".
func (b *Builder) Save(message string) error {
	if message == "" {
		message = checkpointMessage
	}
	if err := b.log.AddAll(b.dir); err != nil {
		return errors.Trace(err)
	}
	if err := b.log.Commit(b.dir, message); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("checkpointed %q: %s", b.dir, message)
	return nil
}

// Close removes the working tree. It is safe to call more than once.
func (b *Builder) Close() error {
	if b.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(b.tempDir); err != nil && !os.IsNotExist(err) {
		logger.Warningf("cannot remove working tree %q: %v", b.tempDir, err)
		return errors.Annotatef(err, "removing working tree %q", b.tempDir)
	}
	b.tempDir = ""
	return nil
}
