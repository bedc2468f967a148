// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package registry looks charms up in the remote charm directory.
package registry

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/charmkit/charm"
)

// Scheme is the reference prefix naming a charm in the registry.
const Scheme = "cs:"

// DefaultURL is the registry API used when none is configured.
const DefaultURL = "https://manage.jujucharms.com/api/3"

// Config holds the settings of a registry Client.
type Config struct {
	// URL is the base of the registry API.
	URL string

	// Transport performs the HTTP requests. It defaults to
	// http.DefaultClient.
	Transport Transport

	// Logger defaults to the package logger.
	Logger Logger
}

// Validate checks that the configuration can be used.
func (cfg Config) Validate() error {
	if cfg.URL == "" {
		return errors.NotValidf("empty registry URL")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return errors.NewNotValid(err, "registry URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NotValidf("registry URL scheme %q", u.Scheme)
	}
	return nil
}

// Client fetches charm descriptions from the registry.
type Client struct {
	baseURL string
	client  RESTClient
	logger  Logger
}

// NewClient returns a registry client for the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = loggo.GetLogger("charmkit.registry")
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultClient
	}
	requester := NewAPIRequester(transport, logger)
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  NewHTTPRESTClient(requester, nil),
		logger:  logger,
	}, nil
}

// Lookup returns the charm the registry publishes under reference. The
// reference may carry the cs: scheme or be a bare charm id.
func (c *Client) Lookup(ctx context.Context, reference string) (*charm.Charm, error) {
	id := strings.TrimPrefix(reference, Scheme)
	if id == "" {
		return nil, errors.NotValidf("empty charm id in %q", reference)
	}
	c.logger.Debugf("looking up %q in registry", reference)

	var resp CharmResponse
	if err := c.client.Get(ctx, c.baseURL+"/charm/"+id, &resp); err != nil {
		return nil, errors.Annotatef(err, "looking up charm %q", reference)
	}
	source := charm.Source{
		Kind:     charm.RegistrySource,
		Location: reference,
		Origin:   resp.Charm.CodeSource.Location,
		VCS:      resp.Charm.CodeSource.Type,
	}
	return charm.NewCharm(source, toDocument(resp.Charm)), nil
}

// toDocument renders the registry's description as a metadata
// document.
func toDocument(info CharmInfo) charm.Document {
	doc := charm.Document{
		"name":        info.Name,
		"summary":     info.Summary,
		"description": info.Description,
		"subordinate": info.Subordinate,
	}
	if info.Maintainer != "" {
		doc["maintainer"] = info.Maintainer
	}
	for role, relations := range info.Relations {
		table := make(map[string]interface{}, len(relations))
		for name, rel := range relations {
			table[name] = fromJSON(rel)
		}
		doc[role] = table
	}
	return doc
}

// fromJSON converts the float64 numbers produced by the JSON decoder
// back into ints where they are whole.
func fromJSON(v interface{}) interface{} {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = fromJSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = fromJSON(val)
		}
		return out
	}
	return v
}
