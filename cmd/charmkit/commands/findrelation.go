// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/charmkit/config"
)

const findRelationDoc = `
Find-relation prints the role (provides, requires or peers) and the
interface of a charm's relation.

Examples:
    charmkit find-relation cs:precise/wordpress db
`

// NewFindRelationCommand returns a command that looks up a relation of
// a charm.
func NewFindRelationCommand() cmd.Command {
	return &findRelationCommand{
		newConfig:   config.FromEnv,
		newResolver: newResolver,
	}
}

type findRelationCommand struct {
	cmd.CommandBase

	newConfig   func() (*config.Config, error)
	newResolver func(*config.Config) (Resolver, error)

	out       cmd.Output
	reference string
	relation  string
}

// Info implements cmd.Command.
func (c *findRelationCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "find-relation",
		Args:    "<charm> <relation>",
		Purpose: "Show the role and interface of a charm's relation.",
		Doc:     findRelationDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *findRelationCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
}

// Init implements cmd.Command.
func (c *findRelationCommand) Init(args []string) error {
	switch len(args) {
	case 0:
		return errors.New("no charm specified")
	case 1:
		return errors.New("no relation specified")
	}
	c.reference, c.relation = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

// Run implements cmd.Command.
func (c *findRelationCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.newConfig()
	if err != nil {
		return errors.Trace(err)
	}
	resolver, err := c.newResolver(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	role, iface, err := resolver.FindRelation(context.Background(), c.reference, c.relation, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if role == "" {
		return errors.NotFoundf("relation %q of charm %q", c.relation, c.reference)
	}
	return c.out.Write(ctx, RelationResult{
		Role:      string(role),
		Interface: iface,
	})
}

// RelationResult is the printed form of a relation lookup.
type RelationResult struct {
	Role      string `yaml:"role" json:"role"`
	Interface string `yaml:"interface" json:"interface"`
}
