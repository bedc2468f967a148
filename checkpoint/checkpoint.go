// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package checkpoint records the history of a charm working tree in a
// version control system. Each checkpoint adds everything in the tree and
// commits it, so every metadata write can be recovered later.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("charmkit.checkpoint")

const (
	// Bazaar selects a bzr backed log.
	Bazaar = "bzr"
	// Git selects a git backed log.
	Git = "git"

	// Committer is the identity recorded against every checkpoint.
	Committer      = "charmkit"
	CommitterEmail = "juju@lists.ubuntu.com"
)

// Failed is the cause of every error returned by a failed checkpoint
// command.
const Failed = errors.ConstError("checkpoint failed")

// Log is an append only history of a working directory.
type Log interface {
	// Init starts tracking dir.
	Init(dir string) error

	// AddAll schedules every file under dir for the next commit.
	AddAll(dir string) error

	// Commit records a checkpoint of dir, even when nothing changed.
	Commit(dir, message string) error

	// ReadFileAtHead returns the content of path at the head of branch,
	// without creating a working copy.
	ReadFileAtHead(branch, path string) ([]byte, error)

	// IsTracked reports whether dir is already under this log's control.
	IsTracked(dir string) bool
}

// CommandRunner allows to run commands on the underlying system.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// CommandError describes a checkpoint command that exited unsuccessfully.
type CommandError struct {
	Command string
	Code    int
	Output  string
}

// Error implements error.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Command, e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns Failed.
func (e *CommandError) Unwrap() error {
	return Failed
}

// New returns the log for the named version control system, running its
// commands with runner. A nil runner runs commands on the local machine.
func New(kind string, runner CommandRunner) (Log, error) {
	switch kind {
	case Bazaar:
		return NewBazaar(runner), nil
	case Git:
		return NewGit(runner), nil
	}
	return nil, errors.NotValidf("checkpoint vcs %q", kind)
}

// vcs runs the command line client of a version control system.
type vcs struct {
	binary  string
	metaDir string
	env     []string
	runner  CommandRunner
}

func newVCS(binary, metaDir string, env []string, runner CommandRunner) vcs {
	if runner == nil {
		runner = defaultRunner{}
	}
	return vcs{
		binary:  binary,
		metaDir: metaDir,
		env:     env,
		runner:  runner,
	}
}

// IsTracked is part of the Log interface.
func (v vcs) IsTracked(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, v.metaDir))
	return err == nil && info.IsDir()
}

// environment returns the process environment with the committer
// identity filled in, unless the caller already set it.
func (v vcs) environment() []string {
	environ := os.Environ()
	for _, kv := range v.env {
		key := kv[:strings.Index(kv, "=")]
		if _, ok := os.LookupEnv(key); !ok {
			environ = append(environ, kv)
		}
	}
	return environ
}

func (v vcs) run(dir string, args ...string) ([]byte, error) {
	command := shellquote.Join(append([]string{v.binary}, args...)...)
	logger.Debugf("running %s in %q", command, dir)
	result, err := v.runner.RunCommands(exec.RunParams{
		Commands:    command,
		WorkingDir:  dir,
		Environment: v.environment(),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "running %s", command)
	}
	logger.Tracef("stdout: %s", result.Stdout)
	if result.Code != 0 {
		output := string(result.Stderr)
		if output == "" {
			output = string(result.Stdout)
		}
		return nil, &CommandError{
			Command: command,
			Code:    result.Code,
			Output:  output,
		}
	}
	return result.Stdout, nil
}
