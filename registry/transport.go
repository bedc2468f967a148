// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package registry

// CharmResponse is the body returned by the registry for a charm lookup.
type CharmResponse struct {
	Charm CharmInfo `json:"charm"`
}

// CharmInfo describes a single charm as published in the registry.
type CharmInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Maintainer  string `json:"maintainer,omitempty"`
	Subordinate bool   `json:"subordinate"`

	// Relations is keyed by relation table (provides, requires, peers)
	// then by relation name. A declaration is either an object or the
	// bare interface name.
	Relations map[string]map[string]interface{} `json:"relations,omitempty"`

	CodeSource CodeSource `json:"code_source"`
}

// CodeSource records where the published charm's code lives.
type CodeSource struct {
	Location string `json:"location"`
	Type     string `json:"type,omitempty"`
}

// ErrorResponse is the body the registry returns alongside an error
// status.
type ErrorResponse struct {
	Message string `json:"message"`
}
