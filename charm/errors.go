// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import "github.com/juju/errors"

const (
	// InvalidTemplate is returned when a charm is generated from a
	// template directory that does not exist.
	InvalidTemplate = errors.ConstError("invalid template")

	// Unresolvable is returned when a charm reference can not be
	// resolved to any known source.
	Unresolvable = errors.ConstError("unresolvable charm reference")

	// NoRelations is returned when a relation is looked up on a charm
	// that declares neither a provides nor a requires table.
	NoRelations = errors.ConstError("charm declares no relations")
)
