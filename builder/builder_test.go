// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package builder_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	ft "github.com/juju/testing/filetesting"
	gc "gopkg.in/check.v1"

	"github.com/juju/charmkit/builder"
	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/checkpoint"
	"github.com/juju/charmkit/testcharms"
)

type BuilderSuite struct {
	testing.IsolationSuite

	log     *stubLog
	tempDir string
}

var _ = gc.Suite(&BuilderSuite{})

func (s *BuilderSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.log = newStubLog()
	s.tempDir = c.MkDir()
}

func (s *BuilderSuite) config(name, template string) builder.Config {
	return builder.Config{
		Name:        name,
		Template:    testcharms.Repo.TemplatePath(template),
		Checkpoints: s.log,
		TempDir:     s.tempDir,
	}
}

func (s *BuilderSuite) create(c *gc.C, cfg builder.Config) *builder.Builder {
	b, err := builder.Create(cfg)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) { c.Check(b.Close(), jc.ErrorIsNil) })
	return b
}

func readMetadata(c *gc.C, b *builder.Builder) charm.Document {
	data, err := os.ReadFile(filepath.Join(b.Dir(), charm.MetadataFile))
	c.Assert(err, jc.ErrorIsNil)
	doc, err := charm.DecodeDocument(data)
	c.Assert(err, jc.ErrorIsNil)
	return doc
}

func checkHookLinks(c *gc.C, b *builder.Builder, relation, target string) {
	for _, event := range []string{"joined", "changed", "departed", "broken"} {
		hook := filepath.Join(b.Dir(), "hooks", relation+"-relation-"+event)
		info, err := os.Lstat(hook)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(info.Mode()&os.ModeSymlink, gc.Not(gc.Equals), os.FileMode(0))
		link, err := os.Readlink(hook)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(link, gc.Equals, target)
	}
}

func (s *BuilderSuite) TestConfigValidate(c *gc.C) {
	for i, test := range []struct {
		about  string
		mutate func(*builder.Config)
		err    string
	}{{
		about:  "valid",
		mutate: func(*builder.Config) {},
	}, {
		about:  "empty name",
		mutate: func(cfg *builder.Config) { cfg.Name = "" },
		err:    "empty Name not valid",
	}, {
		about:  "bad name",
		mutate: func(cfg *builder.Config) { cfg.Name = "My_Charm" },
		err:    `charm name "My_Charm" not valid`,
	}, {
		about:  "hook path",
		mutate: func(cfg *builder.Config) { cfg.HookFile = "../hooks.py" },
		err:    `hook file "../hooks.py" not valid`,
	}, {
		about:  "no checkpoints",
		mutate: func(cfg *builder.Config) { cfg.Checkpoints = nil },
		err:    "nil Checkpoints not valid",
	}} {
		c.Logf("test %d: %s", i, test.about)
		cfg := s.config("mycharm", "basic")
		test.mutate(&cfg)
		err := cfg.Validate()
		if test.err == "" {
			c.Check(err, jc.ErrorIsNil)
			continue
		}
		c.Check(err, gc.ErrorMatches, test.err)
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

func (s *BuilderSuite) TestCreate(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))

	c.Check(filepath.Base(b.Dir()), gc.Equals, "mycharm")
	parent := filepath.Dir(b.Dir())
	c.Check(filepath.Dir(parent), gc.Equals, s.tempDir)
	c.Check(strings.HasPrefix(filepath.Base(parent), "charm_"), jc.IsTrue)

	c.Check(b.Metadata(), jc.DeepEquals, charm.Document{
		"name":        "mycharm",
		"summary":     builder.DefaultSummary,
		"description": builder.DefaultSummary,
		"maintainer":  builder.DefaultMaintainer,
		"subordinate": false,
	})
	s.log.CheckCallNames(c, "Init")
	s.log.CheckCall(c, 0, "Init", b.Dir())

	// Nothing is written until a relation is declared.
	c.Check(filepath.Join(b.Dir(), charm.MetadataFile), jc.DoesNotExist)
	c.Check(filepath.Join(b.Dir(), "README"), jc.IsNonEmptyFile)
}

func (s *BuilderSuite) TestCreateMakesHooksExecutable(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))

	for _, name := range []string{"install", "hooks.py"} {
		info, err := os.Stat(filepath.Join(b.Dir(), "hooks", name))
		c.Assert(err, jc.ErrorIsNil)
		c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0755), gc.Commentf("hook %s", name))
	}
	// The template's own symlinks are preserved.
	link, err := os.Readlink(filepath.Join(b.Dir(), "hooks", "start"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(link, gc.Equals, "hooks.py")

	// The template itself is left alone.
	info, err := os.Stat(filepath.Join(testcharms.Repo.TemplatePath("basic"), "hooks", "install"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0644))
}

func (s *BuilderSuite) TestCreateFromBareTemplate(c *gc.C) {
	template := c.MkDir()
	ft.Entries{
		ft.Dir{Path: "hooks", Perm: 0755},
		ft.File{Path: "hooks/run", Data: "#!/bin/sh\n", Perm: 0644},
		ft.Dir{Path: "hooks/lib", Perm: 0755},
		ft.File{Path: "README", Data: "bare\n", Perm: 0600},
	}.Create(c, template)

	cfg := s.config("bare", "")
	cfg.Template = template
	cfg.HookFile = "run"
	b := s.create(c, cfg)

	c.Assert(b.Provide("website", "http", nil), jc.ErrorIsNil)
	ft.Entries{
		ft.File{Path: "hooks/run", Data: "#!/bin/sh\n", Perm: 0755},
		ft.File{Path: "README", Data: "bare\n", Perm: 0600},
		ft.Symlink{Path: "hooks/website-relation-joined", Link: "run"},
		ft.Symlink{Path: "hooks/website-relation-broken", Link: "run"},
	}.Check(c, b.Dir())
	ft.File{Path: "hooks/run", Data: "#!/bin/sh\n", Perm: 0644}.Check(c, template)
}

func (s *BuilderSuite) TestCreateFollowsHookLinks(c *gc.C) {
	outside := c.MkDir()
	ft.File{Path: "shared.sh", Data: "#!/bin/sh\n", Perm: 0644}.Create(c, outside)

	template := c.MkDir()
	ft.Entries{
		ft.Dir{Path: "hooks", Perm: 0755},
		ft.Dir{Path: "lib", Perm: 0755},
		ft.File{Path: "lib/run.sh", Data: "#!/bin/sh\n", Perm: 0644},
		ft.File{Path: "hooks/hooks.py", Data: "", Perm: 0644},
		ft.Symlink{Path: "hooks/start", Link: "../lib/run.sh"},
		ft.Symlink{Path: "hooks/stop", Link: filepath.Join(outside, "shared.sh")},
		ft.Symlink{Path: "hooks/upgrade-charm", Link: "missing"},
	}.Create(c, template)

	cfg := s.config("linked", "")
	cfg.Template = template
	b := s.create(c, cfg)

	ft.Entries{
		ft.File{Path: "lib/run.sh", Data: "#!/bin/sh\n", Perm: 0755},
		ft.Symlink{Path: "hooks/start", Link: "../lib/run.sh"},
		ft.Symlink{Path: "hooks/upgrade-charm", Link: "missing"},
	}.Check(c, b.Dir())
	ft.File{Path: "lib/run.sh", Data: "#!/bin/sh\n", Perm: 0644}.Check(c, template)
	ft.File{Path: "shared.sh", Data: "#!/bin/sh\n", Perm: 0644}.Check(c, outside)
}

func (s *BuilderSuite) TestCreateSubordinate(c *gc.C) {
	cfg := s.config("logger", "basic")
	cfg.Subordinate = true
	b := s.create(c, cfg)

	parent := filepath.Base(filepath.Dir(b.Dir()))
	c.Check(strings.HasPrefix(parent, "charm-sub_"), jc.IsTrue)

	meta := b.Metadata()
	c.Check(meta["subordinate"], jc.IsTrue)
	c.Check(meta["requires"], jc.DeepEquals, map[string]interface{}{
		"juju-info": map[string]interface{}{
			"interface": "juju-info",
			"scope":     "container",
		},
	})
	checkHookLinks(c, b, "juju-info", "hooks.py")
	c.Check(readMetadata(c, b), jc.DeepEquals, meta)

	s.log.CheckCalls(c, []testing.StubCall{
		{FuncName: "Init", Args: []interface{}{b.Dir()}},
		{FuncName: "AddAll", Args: []interface{}{b.Dir()}},
		{FuncName: "Commit", Args: []interface{}{b.Dir(), "Writing Metadata"}},
	})

	ch := b.Charm()
	c.Check(ch.Subordinate, jc.IsTrue)
	c.Check(ch.Relations[charm.RoleRequirer]["juju-info"].Scope, gc.Equals, charm.ScopeContainer)
}

func (s *BuilderSuite) TestCreateInvalidTemplate(c *gc.C) {
	file := filepath.Join(c.MkDir(), "file")
	c.Assert(os.WriteFile(file, nil, 0644), jc.ErrorIsNil)

	for _, template := range []string{
		"",
		filepath.Join(c.MkDir(), "missing"),
		file,
	} {
		c.Logf("template %q", template)
		cfg := s.config("mycharm", "basic")
		cfg.Template = template
		_, err := builder.Create(cfg)
		c.Check(err, jc.ErrorIs, charm.InvalidTemplate)
	}
	s.log.CheckNoCalls(c)
	entries, err := os.ReadDir(s.tempDir)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 0)
}

func (s *BuilderSuite) TestCreateMissingHookFile(c *gc.C) {
	_, err := builder.Create(s.config("mycharm", "nohook"))
	c.Assert(err, jc.ErrorIs, charm.InvalidTemplate)
	c.Assert(err, gc.ErrorMatches, `template ".*nohook" has no hooks/hooks.py: invalid template`)

	entries, err := os.ReadDir(s.tempDir)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 0)
}

func (s *BuilderSuite) TestCreateCustomHookFile(c *gc.C) {
	cfg := s.config("mycharm", "nohook")
	cfg.HookFile = "install"
	b := s.create(c, cfg)

	c.Assert(b.Provide("website", "http", nil), jc.ErrorIsNil)
	checkHookLinks(c, b, "website", "install")
}

func (s *BuilderSuite) TestCreateInitFailure(c *gc.C) {
	s.log.SetErrors(&checkpoint.CommandError{Command: "bzr init -q", Code: 1})
	_, err := builder.Create(s.config("mycharm", "basic"))
	c.Assert(err, jc.ErrorIs, checkpoint.Failed)

	entries, err := os.ReadDir(s.tempDir)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 0)
}

func (s *BuilderSuite) TestDeclarations(c *gc.C) {
	for _, test := range []struct {
		role    charm.RelationRole
		declare func(*builder.Builder, string, string, map[string]interface{}) error
	}{
		{charm.RoleRequirer, (*builder.Builder).Require},
		{charm.RoleProvider, (*builder.Builder).Provide},
		{charm.RolePeer, (*builder.Builder).Peer},
	} {
		c.Logf("role %s", test.role)
		b := s.create(c, s.config("mycharm", "basic"))

		err := test.declare(b, "db", "mysql", map[string]interface{}{
			"limit":    1,
			"optional": true,
			"extra":    map[string]interface{}{"nested": "value"},
		})
		c.Assert(err, jc.ErrorIsNil)

		meta := b.Metadata()
		c.Check(meta[string(test.role)], jc.DeepEquals, map[string]interface{}{
			"db": map[string]interface{}{
				"interface": "mysql",
				"limit":     1,
				"optional":  true,
				"extra":     map[string]interface{}{"nested": "value"},
			},
		})
		for _, other := range charm.RelationRoles {
			if other != test.role {
				_, ok := meta[string(other)]
				c.Check(ok, jc.IsFalse)
			}
		}
		c.Check(readMetadata(c, b), jc.DeepEquals, meta)
		checkHookLinks(c, b, "db", "hooks.py")
	}
}

func (s *BuilderSuite) TestDeclareCheckpoints(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	c.Assert(b.Require("db", "mysql", nil), jc.ErrorIsNil)
	c.Assert(b.Provide("website", "http", nil), jc.ErrorIsNil)

	s.log.CheckCalls(c, []testing.StubCall{
		{FuncName: "Init", Args: []interface{}{b.Dir()}},
		{FuncName: "AddAll", Args: []interface{}{b.Dir()}},
		{FuncName: "Commit", Args: []interface{}{b.Dir(), "Writing Metadata"}},
		{FuncName: "AddAll", Args: []interface{}{b.Dir()}},
		{FuncName: "Commit", Args: []interface{}{b.Dir(), "Writing Metadata"}},
	})
}

func (s *BuilderSuite) TestRedeclareOverwrites(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	c.Assert(b.Require("db", "mysql", map[string]interface{}{"limit": 1}), jc.ErrorIsNil)
	c.Assert(b.Require("db", "pgsql", map[string]interface{}{"optional": true}), jc.ErrorIsNil)

	expected := map[string]interface{}{
		"db": map[string]interface{}{
			"interface": "pgsql",
			"optional":  true,
		},
	}
	c.Check(b.Metadata()["requires"], jc.DeepEquals, expected)
	c.Check(readMetadata(c, b)["requires"], jc.DeepEquals, expected)
	checkHookLinks(c, b, "db", "hooks.py")
}

func (s *BuilderSuite) TestExistingHooksUntouched(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	custom := filepath.Join(b.Dir(), "hooks", "db-relation-changed")
	c.Assert(os.WriteFile(custom, []byte("#!/bin/sh\necho custom\n"), 0755), jc.ErrorIsNil)
	dangling := filepath.Join(b.Dir(), "hooks", "db-relation-broken")
	c.Assert(os.Symlink("nowhere", dangling), jc.ErrorIsNil)

	c.Assert(b.Require("db", "mysql", nil), jc.ErrorIsNil)
	c.Assert(b.Require("db", "mysql", nil), jc.ErrorIsNil)

	data, err := os.ReadFile(custom)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "#!/bin/sh\necho custom\n")
	link, err := os.Readlink(dangling)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(link, gc.Equals, "nowhere")

	for _, event := range []string{"joined", "departed"} {
		link, err := os.Readlink(filepath.Join(b.Dir(), "hooks", "db-relation-"+event))
		c.Assert(err, jc.ErrorIsNil)
		c.Check(link, gc.Equals, "hooks.py")
	}
}

func (s *BuilderSuite) TestTemplateHooksUntouched(c *gc.C) {
	template := testcharms.Repo.ClonedTemplatePath(c.MkDir(), "basic")
	custom := filepath.Join(template, "hooks", "db-relation-joined")
	c.Assert(os.WriteFile(custom, []byte("#!/bin/sh\n"), 0644), jc.ErrorIsNil)

	cfg := s.config("mycharm", "basic")
	cfg.Template = template
	b := s.create(c, cfg)
	c.Assert(b.Require("db", "mysql", nil), jc.ErrorIsNil)

	hook := filepath.Join(b.Dir(), "hooks", "db-relation-joined")
	info, err := os.Lstat(hook)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().IsRegular(), jc.IsTrue)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0755))
	link, err := os.Readlink(filepath.Join(b.Dir(), "hooks", "db-relation-changed"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(link, gc.Equals, "hooks.py")
}

func (s *BuilderSuite) TestCallerOptionsNotMutated(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	options := map[string]interface{}{
		"scope": "container",
		"extra": map[string]interface{}{"key": "value"},
	}
	c.Assert(b.Require("info", "juju-info", options), jc.ErrorIsNil)
	c.Check(options, jc.DeepEquals, map[string]interface{}{
		"scope": "container",
		"extra": map[string]interface{}{"key": "value"},
	})

	// Nor does the builder see later changes to it.
	options["extra"].(map[string]interface{})["key"] = "changed"
	requires := b.Metadata()["requires"].(map[string]interface{})
	c.Check(requires["info"].(map[string]interface{})["extra"], jc.DeepEquals, map[string]interface{}{"key": "value"})
}

func (s *BuilderSuite) TestMetadataIsCopy(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	meta := b.Metadata()
	meta["name"] = "changed"
	c.Check(b.Metadata()["name"], gc.Equals, "mycharm")
}

func (s *BuilderSuite) TestDeclareInvalid(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	c.Check(b.Require("", "mysql", nil), jc.Satisfies, errors.IsNotValid)
	c.Check(b.Require("../db", "mysql", nil), jc.Satisfies, errors.IsNotValid)
	c.Check(b.Provide("db", "", nil), jc.Satisfies, errors.IsNotValid)
	s.log.CheckCallNames(c, "Init")
}

func (s *BuilderSuite) TestDeclareCheckpointFailure(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	s.log.SetErrors(&checkpoint.CommandError{Command: "bzr add -q .", Code: 3, Output: "bzr: ERROR: locked"})

	err := b.Peer("ring", "riak", nil)
	c.Assert(err, jc.ErrorIs, checkpoint.Failed)
	c.Assert(err, gc.ErrorMatches, `.*exited with status 3: bzr: ERROR: locked`)
	s.log.CheckCallNames(c, "Init", "AddAll")
}

func (s *BuilderSuite) TestSave(c *gc.C) {
	b := s.create(c, s.config("mycharm", "basic"))
	c.Assert(b.Save(""), jc.ErrorIsNil)
	c.Assert(b.Save("Added config"), jc.ErrorIsNil)

	s.log.CheckCalls(c, []testing.StubCall{
		{FuncName: "Init", Args: []interface{}{b.Dir()}},
		{FuncName: "AddAll", Args: []interface{}{b.Dir()}},
		{FuncName: "Commit", Args: []interface{}{b.Dir(), "Checkpoint"}},
		{FuncName: "AddAll", Args: []interface{}{b.Dir()}},
		{FuncName: "Commit", Args: []interface{}{b.Dir(), "Added config"}},
	})
	c.Check(filepath.Join(b.Dir(), charm.MetadataFile), jc.DoesNotExist)
}

func (s *BuilderSuite) TestClose(c *gc.C) {
	b, err := builder.Create(s.config("mycharm", "basic"))
	c.Assert(err, jc.ErrorIsNil)
	parent := filepath.Dir(b.Dir())

	c.Assert(b.Close(), jc.ErrorIsNil)
	c.Check(parent, jc.DoesNotExist)
	c.Assert(b.Close(), jc.ErrorIsNil)
}

type GitBuilderSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&GitBuilderSuite{})

func (s *GitBuilderSuite) SetUpTest(c *gc.C) {
	if _, err := exec.LookPath("git"); err != nil {
		c.Skip("git not installed")
	}
	path := os.Getenv("PATH")
	s.IsolationSuite.SetUpTest(c)
	s.PatchEnvironment("PATH", path)
	s.PatchEnvironment("HOME", c.MkDir())
}

func (s *GitBuilderSuite) TestHistory(c *gc.C) {
	log := checkpoint.NewGit(nil)
	b, err := builder.Create(builder.Config{
		Name:        "wiki",
		Template:    testcharms.Repo.TemplatePath("basic"),
		Subordinate: true,
		Checkpoints: log,
		TempDir:     c.MkDir(),
	})
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = b.Close() }()

	c.Assert(log.IsTracked(b.Dir()), jc.IsTrue)
	c.Assert(b.Require("db", "mysql", nil), jc.ErrorIsNil)
	c.Assert(b.Save(""), jc.ErrorIsNil)

	data, err := log.ReadFileAtHead(b.Dir(), charm.MetadataFile)
	c.Assert(err, jc.ErrorIsNil)
	doc, err := charm.DecodeDocument(data)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(doc, jc.DeepEquals, b.Metadata())
}
