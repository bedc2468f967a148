// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package resolve turns charm references into charm models.
//
// A reference is one of:
//
//	cs:<id>            a charm in the remote registry
//	lp:<branch>        a bzr branch, read without a working copy
//	git:<repo>[#rev]   a git repository, read without a working copy
//	local:<path>       a charm under the configured repository root
//	<path>             a charm directory on the local filesystem
//
// Anything else is passed to the registry unchanged.
package resolve

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/checkpoint"
)

var logger = loggo.GetLogger("charmkit.resolve")

const (
	// RegistryScheme marks a registry reference.
	RegistryScheme = "cs:"
	// LaunchpadScheme marks a bzr branch reference.
	LaunchpadScheme = "lp:"
	// GitScheme marks a git repository reference.
	GitScheme = "git:"
	// LocalScheme marks a reference relative to the repository root.
	LocalScheme = "local:"
)

// Registry looks charms up in the remote charm directory.
type Registry interface {
	Lookup(ctx context.Context, reference string) (*charm.Charm, error)
}

// Config holds the collaborators of a Resolver.
type Config struct {
	// Registry serves cs: references and unrecognised references. It
	// may be nil, in which case those references are unresolvable.
	Registry Registry

	// Checkpoints stages untracked local charms, and decides whether a
	// local charm needs staging at all.
	Checkpoints checkpoint.Log

	// Bazaar reads lp: branches. It may be nil.
	Bazaar checkpoint.Log

	// Git reads git: repositories. It may be nil.
	Git checkpoint.Log

	// RepositoryRoot is the directory local: references are relative
	// to.
	RepositoryRoot string

	// TempDir is the parent of staging directories. The OS temporary
	// directory is used when it is empty.
	TempDir string
}

// Validate checks that the configuration can be used.
func (cfg Config) Validate() error {
	if cfg.Checkpoints == nil {
		return errors.NotValidf("nil Checkpoints")
	}
	return nil
}

// Resolver resolves charm references.
type Resolver struct {
	cfg    Config
	routes []route
}

// route binds a reference prefix to the function that opens the rest
// of the reference.
type route struct {
	prefix string
	open   func(ctx context.Context, rest string) (*charm.Charm, error)
}

// NewResolver returns a Resolver using the given collaborators.
func NewResolver(cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	r := &Resolver{cfg: cfg}
	r.routes = []route{
		{prefix: RegistryScheme, open: r.openRegistry(RegistryScheme)},
		{prefix: LaunchpadScheme, open: r.openBranch(LaunchpadScheme, cfg.Bazaar, checkpoint.Bazaar)},
		{prefix: GitScheme, open: r.openBranch(GitScheme, cfg.Git, checkpoint.Git)},
		{prefix: LocalScheme, open: r.openRepository},
	}
	return r, nil
}

// Resolve returns the charm model named by reference. The caller owns
// the result and must Close it.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*charm.Charm, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, errors.Annotate(charm.Unresolvable, "empty reference")
	}
	for _, rt := range r.routes {
		if strings.HasPrefix(reference, rt.prefix) {
			logger.Debugf("resolving %q as %s reference", reference, strings.TrimSuffix(rt.prefix, ":"))
			ch, err := rt.open(ctx, strings.TrimPrefix(reference, rt.prefix))
			if err != nil {
				return nil, errors.Trace(err)
			}
			return ch, nil
		}
	}
	path, err := utils.NormalizePath(reference)
	if err != nil {
		return nil, errors.Annotatef(err, "expanding %q", reference)
	}
	if _, err := os.Stat(path); err == nil {
		return r.openLocal(ctx, path)
	}
	// Unrecognised references are assumed to name a registry charm, so a
	// mistyped path surfaces as a registry error.
	logger.Debugf("%q is not a local path, trying the registry", reference)
	return r.openRegistry("")(ctx, reference)
}

func (r *Resolver) openRegistry(prefix string) func(context.Context, string) (*charm.Charm, error) {
	return func(ctx context.Context, rest string) (*charm.Charm, error) {
		reference := prefix + rest
		if r.cfg.Registry == nil {
			return nil, errors.Annotatef(charm.Unresolvable, "%q: no registry configured", reference)
		}
		ch, err := r.cfg.Registry.Lookup(ctx, reference)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return ch, nil
	}
}

func (r *Resolver) openBranch(prefix string, log checkpoint.Log, vcs string) func(context.Context, string) (*charm.Charm, error) {
	return func(ctx context.Context, rest string) (*charm.Charm, error) {
		reference := prefix + rest
		if log == nil {
			return nil, errors.Annotatef(charm.Unresolvable, "%q: no %s reader configured", reference, vcs)
		}
		// bzr understands the lp: scheme itself, git does not.
		branch := rest
		if prefix == LaunchpadScheme {
			branch = reference
		}
		src := &branchSource{
			log:    log,
			branch: branch,
			source: charm.Source{
				Kind:     charm.BranchSource,
				Location: reference,
				VCS:      vcs,
			},
		}
		return open(ctx, src)
	}
}

func (r *Resolver) openRepository(ctx context.Context, rest string) (*charm.Charm, error) {
	path := filepath.Join(r.cfg.RepositoryRoot, rest)
	logger.Debugf("local:%s is %q", rest, path)
	return r.openLocal(ctx, path)
}

func (r *Resolver) openLocal(ctx context.Context, path string) (*charm.Charm, error) {
	path, err := utils.NormalizePath(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return nil, errors.Trace(err)
	}
	src := &localSource{
		dir:    path,
		source: charm.Source{Kind: charm.LocalSource, Location: path},
	}
	if _, err := os.Stat(src.metadataPath()); os.IsNotExist(err) {
		return nil, errors.NotFoundf("charm metadata in %q", path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	if r.cfg.Checkpoints.IsTracked(path) {
		return open(ctx, src)
	}

	stagingDir, err := r.stage(src)
	if err != nil {
		return nil, errors.Trace(err)
	}
	doc, err := src.Metadata(ctx)
	if err == nil {
		return charm.NewStagedCharm(src.Source(), doc, stagingDir), nil
	}
	if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
		logger.Warningf("cannot remove staging directory %q: %v", stagingDir, rmErr)
	}
	return nil, errors.Trace(err)
}

// stage copies the charm in src to a new temporary directory under
// version control, and points src at the copy. It returns the directory
// that must be removed to discard the copy.
func (r *Resolver) stage(src *localSource) (_ string, err error) {
	stagingDir, err := os.MkdirTemp(r.cfg.TempDir, "charm")
	if err != nil {
		return "", errors.Annotate(err, "creating staging directory")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(stagingDir)
		}
	}()

	origin := src.dir
	copied, err := copyTree(origin, filepath.Join(stagingDir, filepath.Base(origin)))
	if err != nil {
		return "", errors.Trace(err)
	}
	log := r.cfg.Checkpoints
	if err := log.Init(copied); err != nil {
		return "", errors.Trace(err)
	}
	if err := log.AddAll(copied); err != nil {
		return "", errors.Trace(err)
	}
	if err := log.Commit(copied, "Copied from "+origin); err != nil {
		return "", errors.Trace(err)
	}
	logger.Debugf("staged %q in %q", origin, copied)

	src.dir = copied
	src.source.Location = copied
	src.source.Origin = origin
	return stagingDir, nil
}
