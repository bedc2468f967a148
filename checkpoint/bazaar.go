// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package checkpoint

import (
	"strings"

	"github.com/juju/errors"
)

type bazaar struct {
	vcs
}

// NewBazaar returns a Log kept in a bzr branch.
func NewBazaar(runner CommandRunner) Log {
	return bazaar{newVCS("bzr", ".bzr", []string{
		"BZR_EMAIL=" + Committer + " <" + CommitterEmail + ">",
	}, runner)}
}

// Init is part of the Log interface.
func (b bazaar) Init(dir string) error {
	_, err := b.run(dir, "init", "-q")
	return errors.Trace(err)
}

// AddAll is part of the Log interface.
func (b bazaar) AddAll(dir string) error {
	_, err := b.run(dir, "add", "-q", ".")
	return errors.Trace(err)
}

// Commit is part of the Log interface.
func (b bazaar) Commit(dir, message string) error {
	_, err := b.run(dir, "commit", "-q", "--unchanged", "-m", message)
	return errors.Trace(err)
}

// ReadFileAtHead is part of the Log interface. The branch may be any
// location bzr understands, including lp: references.
func (b bazaar) ReadFileAtHead(branch, path string) ([]byte, error) {
	out, err := b.run("", "cat", strings.TrimSuffix(branch, "/")+"/"+path)
	return out, errors.Trace(err)
}
