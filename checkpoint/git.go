// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package checkpoint

import (
	"strings"

	"github.com/juju/errors"
)

type git struct {
	vcs
}

// NewGit returns a Log kept in a git repository.
func NewGit(runner CommandRunner) Log {
	return git{newVCS("git", ".git", []string{
		"GIT_AUTHOR_NAME=" + Committer,
		"GIT_AUTHOR_EMAIL=" + CommitterEmail,
		"GIT_COMMITTER_NAME=" + Committer,
		"GIT_COMMITTER_EMAIL=" + CommitterEmail,
	}, runner)}
}

// Init is part of the Log interface.
func (g git) Init(dir string) error {
	_, err := g.run(dir, "init", "-q")
	return errors.Trace(err)
}

// AddAll is part of the Log interface.
func (g git) AddAll(dir string) error {
	_, err := g.run(dir, "add", "-A", ".")
	return errors.Trace(err)
}

// Commit is part of the Log interface.
func (g git) Commit(dir, message string) error {
	_, err := g.run(dir, "commit", "-q", "--allow-empty", "-m", message)
	return errors.Trace(err)
}

// ReadFileAtHead is part of the Log interface. The branch is a
// repository path, optionally followed by #<revision>; the revision
// defaults to HEAD.
func (g git) ReadFileAtHead(branch, path string) ([]byte, error) {
	repo, rev := SplitBranch(branch)
	out, err := g.run("", "-C", repo, "show", rev+":"+path)
	return out, errors.Trace(err)
}

// SplitBranch splits a git branch reference of the form
// <repository>[#<revision>] into its parts.
func SplitBranch(branch string) (repo, rev string) {
	repo, rev, _ = strings.Cut(branch, "#")
	if rev == "" {
		rev = "HEAD"
	}
	return repo, rev
}
