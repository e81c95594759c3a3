/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hummer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomoncle/hummer/config"
	"github.com/tomoncle/hummer/database"
)

// DefaultSection is the configuration section a factory reads by default.
const DefaultSection = "database"

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithSection reads options from section instead of DefaultSection.
func WithSection(section string) FactoryOption {
	return func(f *Factory) {
		if section != "" {
			f.section = section
		}
	}
}

func WithLogger(logger database.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRepositories supplies custom repository types at construction.
func WithRepositories(supplier func() []RepositoryType) FactoryOption {
	return func(f *Factory) {
		f.supplier = supplier
	}
}

// Factory creates units of work from the latest options of a configuration
// section. Options are swapped atomically on change notification; sessions
// already open keep the options they were created with.
//
// AddCustomRepositories is expected to be called before the factory is
// shared between goroutines.
type Factory struct {
	model    *database.Model
	source   config.Source
	section  string
	logger   database.Logger
	supplier func() []RepositoryType

	options      atomic.Pointer[database.Options]
	repositories []RepositoryType
	seen         map[string]struct{}

	unsubscribe func()
	closeOnce   sync.Once
	closed      atomic.Bool
}

var _ config.Observer = (*Factory)(nil)

// NewFactory reads the initial options from source and subscribes to their
// changes. model lists the entities each unit of work gets a generic
// repository for.
func NewFactory(model *database.Model, source config.Source, opts ...FactoryOption) (*Factory, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: configuration source is required", ErrInvalidArgument)
	}
	if model == nil {
		model = database.NewModel()
	}
	f := &Factory{
		model:   model,
		source:  source,
		section: DefaultSection,
		logger:  database.GetLogger(),
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	options, err := source.Section(f.section)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration section %q: %w", f.section, err)
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	f.options.Store(&options)

	if f.supplier != nil {
		if types := f.supplier(); len(types) > 0 {
			if err := f.AddCustomRepositories(types); err != nil {
				return nil, err
			}
		}
	}

	f.unsubscribe = source.Subscribe(f.section, f)
	f.logger.Info("Unit of work factory ready", "section", f.section, "driver", options.NormalizedDriver(),
		"command_timeout", options.EffectiveCommandTimeout())
	return f, nil
}

// OptionsChanged replaces the cached options. Invalid options are logged and
// ignored.
func (f *Factory) OptionsChanged(section string, opts database.Options) {
	if f.closed.Load() || section != f.section {
		return
	}
	if err := opts.Validate(); err != nil {
		f.logger.Warn("Ignoring invalid configuration change", "section", section, "error", err)
		return
	}
	f.options.Store(&opts)
	f.logger.Info("Configuration reloaded", "section", section, "driver", opts.NormalizedDriver(),
		"command_timeout", opts.EffectiveCommandTimeout())
}

// Options returns the current options, or the zero value after Close.
func (f *Factory) Options() database.Options {
	if p := f.options.Load(); p != nil {
		return *p
	}
	return database.Options{}
}

func (f *Factory) Model() *database.Model { return f.model }

// RepositoryTypes returns the custom repository types in registration order.
func (f *Factory) RepositoryTypes() []RepositoryType {
	result := make([]RepositoryType, len(f.repositories))
	copy(result, f.repositories)
	return result
}

// AddCustomRepositories appends the types not registered yet. The whole call
// fails without changes when any descriptor is empty or does not implement
// repository.Capability.
func (f *Factory) AddCustomRepositories(types []RepositoryType) error {
	if types == nil {
		return fmt.Errorf("%w: repository types are required", ErrInvalidArgument)
	}
	for _, rt := range types {
		if rt.IsZero() {
			return fmt.Errorf("%w: empty repository type", ErrInvalidArgument)
		}
		if !rt.IsCapable() {
			return fmt.Errorf("%w: %s", ErrTypeConstraint, rt.Key)
		}
	}
	for _, rt := range types {
		if _, ok := f.seen[rt.Key]; ok {
			continue
		}
		f.seen[rt.Key] = struct{}{}
		f.repositories = append(f.repositories, rt)
	}
	return nil
}

// CreateUnitOfWork opens a new session from the current options.
func (f *Factory) CreateUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	options := f.options.Load()
	if options == nil {
		return nil, ErrFactoryClosed
	}
	session, err := database.OpenSession(ctx, *options, f.model, f.logger)
	if err != nil {
		return nil, err
	}
	return newUnitOfWork(session, f.RepositoryTypes(), f.logger), nil
}

// Close unsubscribes from the configuration source and drops the cached
// options. It is safe to call more than once.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		if f.unsubscribe != nil {
			f.unsubscribe()
		}
		f.options.Store(nil)
		f.logger.Info("Unit of work factory closed", "section", f.section)
	})
	return nil
}
