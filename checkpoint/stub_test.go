// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package checkpoint_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	"github.com/juju/utils/v4/exec"
)

type stubRunner struct {
	*testing.Stub

	responses []*exec.ExecResponse
}

func newStubRunner() *stubRunner {
	return &stubRunner{Stub: &testing.Stub{}}
}

func (s *stubRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	s.Stub.AddCall("RunCommands", run.Commands, run.WorkingDir)
	if err := s.Stub.NextErr(); err != nil {
		return nil, errors.Trace(err)
	}
	if len(s.responses) == 0 {
		return &exec.ExecResponse{}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}
