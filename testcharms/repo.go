// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testcharms holds a corpus of charms and charm templates
// for testing.
//
// The corpus lives in charm-repo, laid out the way a JUJU_REPOSITORY is:
// charms under a series directory, plus a templates directory holding
// skeletons for the builder.
package testcharms

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/juju/utils/v4/fs"

	"github.com/juju/charmkit/charm"
)

// Repo is the test charm repository.
var Repo = NewRepo("charm-repo", "quantal")

// NewRepo returns the charm repository at path, relative to the
// directory of the calling source file. Charms are looked up under
// series.
func NewRepo(path, series string) *CharmRepo {
	// Only valid in a test context, where the source is available.
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		panic("cannot get caller")
	}
	root := filepath.Join(filepath.Dir(file), path)
	if _, err := os.Stat(root); err != nil {
		panic(fmt.Errorf("cannot read repository found at %q: %v", root, err))
	}
	return &CharmRepo{root: root, series: series}
}

// CharmRepo is a charm repository used for testing.
type CharmRepo struct {
	root   string
	series string
}

// Path returns the root of the repository, suitable for use as
// JUJU_REPOSITORY.
func (r *CharmRepo) Path() string {
	return r.root
}

// CharmDirPath returns the directory of the named charm.
func (r *CharmRepo) CharmDirPath(name string) string {
	return filepath.Join(r.root, r.series, name)
}

// TemplatePath returns the directory of the named builder template.
func (r *CharmRepo) TemplatePath(name string) string {
	return filepath.Join(r.root, "templates", name)
}

// Metadata returns the raw metadata.yaml of the named charm.
func (r *CharmRepo) Metadata(name string) []byte {
	data, err := os.ReadFile(filepath.Join(r.CharmDirPath(name), charm.MetadataFile))
	must(err)
	return data
}

// Document returns the decoded metadata of the named charm.
func (r *CharmRepo) Document(name string) charm.Document {
	doc, err := charm.DecodeDocument(r.Metadata(name))
	must(err)
	return doc
}

// ClonedDirPath copies the named charm into dst and returns the path of
// the copy.
func (r *CharmRepo) ClonedDirPath(dst, name string) string {
	return copyInto(dst, name, r.CharmDirPath(name))
}

// RenamedClonedDirPath copies the named charm into dst under newName and
// returns the path of the copy.
func (r *CharmRepo) RenamedClonedDirPath(dst, name, newName string) string {
	return copyInto(dst, newName, r.CharmDirPath(name))
}

// ClonedTemplatePath copies the named template into dst and returns the
// path of the copy.
func (r *CharmRepo) ClonedTemplatePath(dst, name string) string {
	return copyInto(dst, name, r.TemplatePath(name))
}

// ClonedRepoPath builds a repository at dst holding copies of the named
// charms, and returns dst.
func (r *CharmRepo) ClonedRepoPath(dst string, names ...string) string {
	seriesDir := filepath.Join(dst, r.series)
	must(os.MkdirAll(seriesDir, 0755))
	for _, name := range names {
		r.ClonedDirPath(seriesDir, name)
	}
	return dst
}

func copyInto(dst, name, src string) string {
	path := filepath.Join(dst, name)
	must(fs.Copy(src, path))
	return path
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
