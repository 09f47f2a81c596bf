// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Builder layers YAML fragments over a base configuration. Later fragments
// override earlier ones; fields a fragment leaves out keep their value.
type Builder struct {
	yamls  []string
	Config *Config
}

// Use sets the base configuration
func (b *Builder) Use(c *Config) *Builder {
	b.Config = c
	return b
}

// Merge adds YAML fragments to be merged into the configuration
func (b *Builder) Merge(yamls ...string) *Builder {
	b.yamls = append(b.yamls, yamls...)
	return b
}

// Build merges every fragment into the base configuration, DefaultConfig
// when none was set, and returns the sanitized result. It does not validate.
func (b *Builder) Build() (*Config, error) {
	if b.Config == nil {
		b.Config = DefaultConfig()
	}

	var errs error
	for i, y := range b.yamls {
		layer := &Config{}
		if err := yaml.Unmarshal([]byte(y), layer); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to parse fragment %d: %w", i, err))
			continue
		}

		if err := mergo.Merge(b.Config, layer, mergo.WithOverride, mergo.WithTransformers(boolPtrTransformer{})); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to merge fragment %d: %w", i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}

	b.Config.sanitize()
	return b.Config, nil
}

// boolPtrTransformer lets an explicit false in a fragment override true
type boolPtrTransformer struct{}

func (t boolPtrTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*bool)(nil)) {
		return nil
	}

	return func(dst, src reflect.Value) error {
		if src.IsNil() {
			return nil
		}
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}
