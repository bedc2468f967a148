// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package commands implements the charmkit command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/checkpoint"
	"github.com/juju/charmkit/config"
	"github.com/juju/charmkit/registry"
	"github.com/juju/charmkit/resolve"
)

var logger = loggo.GetLogger("charmkit.cmd")

// LoggingConfigEnvKey holds the default logging configuration.
const LoggingConfigEnvKey = "CHARMKIT_LOGGING_CONFIG"

const charmkitDoc = `
charmkit generates charm skeletons from templates and inspects the
relations of existing charms.

Charm references may be registry references (cs:precise/mysql), bzr
branches (lp:charms/mysql), git repositories (git:/src/mysql#stable),
references into the local repository named by JUJU_REPOSITORY
(local:precise/mysql) or paths to charm directories.
`

// Main runs the charmkit command with the given arguments and returns
// its exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewSuperCommand(), ctx, args)
}

// NewSuperCommand returns the charmkit command with every sub-command
// registered.
func NewSuperCommand() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "charmkit",
		Doc:     charmkitDoc,
		Purpose: "Generate and inspect charms.",
		Log: &cmd.Log{
			DefaultConfig: os.Getenv(LoggingConfigEnvKey),
		},
		NotifyRun: func(name string) {
			logger.Debugf("running %s", name)
		},
	})
	super.Register(NewCreateCommand())
	super.Register(NewShowCommand())
	super.Register(NewFindRelationCommand())
	return super
}

// Resolver resolves charm references.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (*charm.Charm, error)
	FindRelation(ctx context.Context, reference, relation string, cache *resolve.Cache) (charm.RelationRole, string, error)
}

// newResolver wires a Resolver from the configuration.
func newResolver(cfg *config.Config) (Resolver, error) {
	checkpoints, err := newCheckpointLog(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client, err := registry.NewClient(registry.Config{
		URL: cfg.RegistryURL(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	r, err := resolve.NewResolver(resolve.Config{
		Registry:       client,
		Checkpoints:    checkpoints,
		Bazaar:         checkpoint.NewBazaar(nil),
		Git:            checkpoint.NewGit(nil),
		RepositoryRoot: cfg.Repository(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

// newCheckpointLog returns the checkpoint log named by the configuration.
func newCheckpointLog(cfg *config.Config) (checkpoint.Log, error) {
	return checkpoint.New(cfg.CheckpointVCS(), nil)
}
