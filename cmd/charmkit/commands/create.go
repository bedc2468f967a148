// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"fmt"
	"strings"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/charmkit/builder"
	"github.com/juju/charmkit/checkpoint"
	"github.com/juju/charmkit/config"
)

const createDoc = `
Create copies a charm template into a new working tree, declares the
requested relations and records every step as a checkpoint. The path of
the working tree is printed on success; it is left in place for the
caller to use.

Relations are given as name=interface and may be repeated.

Examples:
    charmkit create wiki ./templates/basic --require db=mysql --provide website=http
    charmkit create logger ./templates/basic --subordinate
`

// NewCreateCommand returns a command that creates a charm from a
// template.
func NewCreateCommand() cmd.Command {
	return &createCommand{
		newConfig: config.FromEnv,
		newLog:    newCheckpointLog,
	}
}

type createCommand struct {
	cmd.CommandBase

	newConfig func() (*config.Config, error)
	newLog    func(*config.Config) (checkpoint.Log, error)

	name        string
	template    string
	subordinate bool
	hookFile    string
	requires    relationsValue
	provides    relationsValue
	peers       relationsValue
}

// Info implements cmd.Command.
func (c *createCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "create",
		Args:    "<name> <template>",
		Purpose: "Create a charm from a template.",
		Doc:     createDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *createCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.BoolVar(&c.subordinate, "subordinate", false, "create a subordinate charm")
	f.StringVar(&c.hookFile, "hook", "", "the hook relation hooks link to")
	f.Var(&c.requires, "require", "declare a required relation as name=interface")
	f.Var(&c.provides, "provide", "declare a provided relation as name=interface")
	f.Var(&c.peers, "peer", "declare a peer relation as name=interface")
}

// Init implements cmd.Command.
func (c *createCommand) Init(args []string) error {
	switch len(args) {
	case 0:
		return errors.New("no charm name specified")
	case 1:
		return errors.New("no template specified")
	}
	c.name, c.template = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

// Run implements cmd.Command.
func (c *createCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.newConfig()
	if err != nil {
		return errors.Trace(err)
	}
	log, err := c.newLog(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	hookFile := c.hookFile
	if hookFile == "" {
		hookFile = cfg.HookFile()
	}
	b, err := builder.Create(builder.Config{
		Name:        c.name,
		Template:    ctx.AbsPath(c.template),
		Subordinate: c.subordinate,
		HookFile:    hookFile,
		Checkpoints: log,
	})
	if err != nil {
		return errors.Trace(err)
	}
	declare := []struct {
		relations relationsValue
		add       func(string, string, map[string]interface{}) error
	}{
		{c.requires, b.Require},
		{c.provides, b.Provide},
		{c.peers, b.Peer},
	}
	for _, d := range declare {
		for _, rel := range d.relations {
			if err := d.add(rel.name, rel.iface, nil); err != nil {
				_ = b.Close()
				return errors.Annotatef(err, "declaring relation %q", rel.name)
			}
		}
	}
	fmt.Fprintln(ctx.Stdout, b.Dir())
	return nil
}

type relationSpec struct {
	name  string
	iface string
}

// relationsValue is a repeatable name=interface flag.
type relationsValue []relationSpec

// Set implements gnuflag.Value.
func (v *relationsValue) Set(s string) error {
	name, iface, ok := strings.Cut(s, "=")
	if !ok || name == "" || iface == "" {
		return errors.NotValidf("relation %q, expected name=interface", s)
	}
	*v = append(*v, relationSpec{name: name, iface: iface})
	return nil
}

// String implements gnuflag.Value.
func (v *relationsValue) String() string {
	specs := make([]string, len(*v))
	for i, rel := range *v {
		specs[i] = rel.name + "=" + rel.iface
	}
	return strings.Join(specs, ",")
}
