// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resolve

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/fs"

	"github.com/juju/charmkit/charm"
	"github.com/juju/charmkit/checkpoint"
)

// Source is somewhere charm metadata can be read from.
type Source interface {
	// Source describes where the metadata is read.
	Source() charm.Source

	// Metadata reads the charm's metadata document.
	Metadata(ctx context.Context) (charm.Document, error)
}

// open reads the metadata in src and builds a charm model from it.
func open(ctx context.Context, src Source) (*charm.Charm, error) {
	doc, err := src.Metadata(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return charm.NewCharm(src.Source(), doc), nil
}

// localSource reads metadata from a charm directory.
type localSource struct {
	dir    string
	source charm.Source
}

func (s *localSource) metadataPath() string {
	return filepath.Join(s.dir, charm.MetadataFile)
}

// Source is part of the Source interface.
func (s *localSource) Source() charm.Source {
	return s.source
}

// Metadata is part of the Source interface.
func (s *localSource) Metadata(context.Context) (charm.Document, error) {
	data, err := os.ReadFile(s.metadataPath())
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("charm metadata in %q", s.dir)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	doc, err := charm.DecodeDocument(data)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q", s.metadataPath())
	}
	return doc, nil
}

// branchSource reads metadata from the head of a version control
// branch.
type branchSource struct {
	log    checkpoint.Log
	branch string
	source charm.Source
}

// Source is part of the Source interface.
func (s *branchSource) Source() charm.Source {
	return s.source
}

// Metadata is part of the Source interface.
func (s *branchSource) Metadata(context.Context) (charm.Document, error) {
	data, err := s.log.ReadFileAtHead(s.branch, charm.MetadataFile)
	if err != nil {
		return nil, errors.Annotatef(err, "reading metadata from %q", s.source.Location)
	}
	doc, err := charm.DecodeDocument(data)
	if err != nil {
		return nil, errors.Annotatef(err, "reading metadata from %q", s.source.Location)
	}
	return doc, nil
}

// copyTree copies the directory src to dst, preserving symlinks, and
// returns dst.
func copyTree(src, dst string) (string, error) {
	if err := fs.Copy(src, dst); err != nil {
		return "", errors.Annotatef(err, "copying %q", src)
	}
	return dst, nil
}
