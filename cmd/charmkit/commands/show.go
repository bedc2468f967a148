// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/config"
)

const showDoc = `
Show resolves a charm reference and prints the charm's metadata and
declared relations. With --strict the metadata must also pass full
validation: a name, known relation scopes, integer limits and, for
subordinates, a container scoped requirement.

Examples:
    charmkit show cs:precise/mysql
    charmkit show ./charms/wordpress --format json
`

// NewShowCommand returns a command that shows a resolved charm.
func NewShowCommand() cmd.Command {
	return &showCommand{
		newConfig:   config.FromEnv,
		newResolver: newResolver,
	}
}

type showCommand struct {
	cmd.CommandBase

	newConfig   func() (*config.Config, error)
	newResolver func(*config.Config) (Resolver, error)

	out       cmd.Output
	reference string
	strict    bool
}

// Info implements cmd.Command.
func (c *showCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "show",
		Args:    "<charm>",
		Purpose: "Show a charm's metadata and relations.",
		Doc:     showDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *showCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.BoolVar(&c.strict, "strict", false, "fail if the metadata is not fully valid")
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
}

// Init implements cmd.Command.
func (c *showCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no charm specified")
	}
	c.reference = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *showCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.newConfig()
	if err != nil {
		return errors.Trace(err)
	}
	resolver, err := c.newResolver(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	ch, err := resolver.Resolve(context.Background(), c.reference)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := ch.Close(); err != nil {
			ctx.Warningf("%v", err)
		}
	}()
	if c.strict {
		if _, err := charm.ParseMeta(ch.Document()); err != nil {
			return errors.Annotatef(err, "charm %q", c.reference)
		}
	}
	return c.out.Write(ctx, newCharmView(ch))
}

// CharmView is the printed form of a charm.
type CharmView struct {
	Name        string                             `yaml:"name" json:"name"`
	Summary     string                             `yaml:"summary,omitempty" json:"summary,omitempty"`
	Description string                             `yaml:"description,omitempty" json:"description,omitempty"`
	Maintainer  string                             `yaml:"maintainer,omitempty" json:"maintainer,omitempty"`
	Subordinate bool                               `yaml:"subordinate" json:"subordinate"`
	Source      charm.Source                       `yaml:"source" json:"source"`
	Relations   map[string]map[string]RelationView `yaml:"relations,omitempty" json:"relations,omitempty"`
	Extra       map[string]interface{}             `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// RelationView is the printed form of a relation declaration.
type RelationView struct {
	Interface string `yaml:"interface" json:"interface"`
	Scope     string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Limit     int    `yaml:"limit,omitempty" json:"limit,omitempty"`
	Optional  bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
}

func newCharmView(ch *charm.Charm) CharmView {
	view := CharmView{
		Name:        ch.Name,
		Summary:     ch.Summary,
		Description: ch.Description,
		Maintainer:  ch.Maintainer,
		Subordinate: ch.Subordinate,
		Source:      ch.Source,
	}
	if len(ch.Extra) > 0 {
		view.Extra = ch.Extra
	}
	if len(ch.Relations) == 0 {
		return view
	}
	view.Relations = make(map[string]map[string]RelationView)
	for role, table := range ch.Relations {
		relations := make(map[string]RelationView, len(table))
		for name, rel := range table {
			relations[name] = RelationView{
				Interface: rel.Interface,
				Scope:     rel.Scope,
				Limit:     rel.Limit,
				Optional:  rel.Optional,
			}
		}
		view.Relations[string(role)] = relations
	}
	return view
}
