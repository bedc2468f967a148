// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads charmkit's settings from the environment.
package config

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"

	"github.com/juju/charmkit/builder"
	"github.com/juju/charmkit/checkpoint"
	"github.com/juju/charmkit/registry"
)

const (
	// RepositoryKey is the root of local: charm references.
	RepositoryKey = "repository"

	// RegistryURLKey is the base URL of the charm registry API.
	RegistryURLKey = "registry-url"

	// CheckpointVCSKey selects the version control system used for
	// checkpoints.
	CheckpointVCSKey = "checkpoint-vcs"

	// HookFileKey is the hook new relation hooks link to.
	HookFileKey = "hook-file"
)

const (
	RepositoryEnvKey    = "JUJU_REPOSITORY"
	RegistryURLEnvKey   = "CHARMKIT_REGISTRY_URL"
	CheckpointVCSEnvKey = "CHARMKIT_CHECKPOINT_VCS"
	HookFileEnvKey      = "CHARMKIT_HOOK_FILE"
)

var configSchema = environschema.Fields{
	RepositoryKey: {
		Description: "The directory local: charm references are relative to.",
		Type:        environschema.Tstring,
		EnvVar:      RepositoryEnvKey,
	},
	RegistryURLKey: {
		Description: "The base URL of the charm registry API.",
		Type:        environschema.Tstring,
		EnvVar:      RegistryURLEnvKey,
	},
	CheckpointVCSKey: {
		Description: "The version control system checkpoints are kept in.",
		Type:        environschema.Tstring,
		EnvVar:      CheckpointVCSEnvKey,
		Values:      []interface{}{checkpoint.Bazaar, checkpoint.Git},
	},
	HookFileKey: {
		Description: "The hook that generated relation hooks link to.",
		Type:        environschema.Tstring,
		EnvVar:      HookFileEnvKey,
	},
}

var configDefaults = schema.Defaults{
	RepositoryKey:    "",
	RegistryURLKey:   registry.DefaultURL,
	CheckpointVCSKey: checkpoint.Bazaar,
	HookFileKey:      builder.DefaultHookFile,
}

var configFields = func() schema.Fields {
	fs, _, err := configSchema.ValidationSchema()
	if err != nil {
		panic(err)
	}
	return fs
}()

// Schema returns the configuration schema.
func Schema() environschema.Fields {
	return configSchema
}

// Config holds validated charmkit settings.
type Config struct {
	attrs map[string]interface{}
}

// New validates attrs, fills in defaults and returns the result.
func New(attrs map[string]interface{}) (*Config, error) {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	v, err := schema.FieldMap(configFields, configDefaults).Coerce(attrs, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "charmkit config")
	}
	cfg := &Config{attrs: v.(map[string]interface{})}
	if err := (registry.Config{URL: cfg.RegistryURL()}).Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// FromEnv returns the configuration described by the environment.
// Empty variables are treated as unset.
func FromEnv() (*Config, error) {
	attrs := make(map[string]interface{})
	for key, attr := range configSchema {
		if value := os.Getenv(attr.EnvVar); value != "" {
			attrs[key] = value
		}
	}
	cfg, err := New(attrs)
	return cfg, errors.Trace(err)
}

// Attrs returns a copy of the validated attributes.
func (c *Config) Attrs() map[string]interface{} {
	attrs := make(map[string]interface{}, len(c.attrs))
	for k, v := range c.attrs {
		attrs[k] = v
	}
	return attrs
}

func (c *Config) Repository() string {
	return c.attrs[RepositoryKey].(string)
}

func (c *Config) RegistryURL() string {
	return c.attrs[RegistryURLKey].(string)
}

func (c *Config) CheckpointVCS() string {
	return c.attrs[CheckpointVCSKey].(string)
}

func (c *Config) HookFile() string {
	return c.attrs[HookFileKey].(string)
}
