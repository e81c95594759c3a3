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

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/tomoncle/hummer/database"
	yamlv3 "gopkg.in/yaml.v3"
)

// ErrSectionNotFound is returned by Section when nothing is configured under
// the requested name.
var ErrSectionNotFound = errors.New("config: section not found")

// Observer is notified with the freshly decoded options of a section after
// every reload.
type Observer interface {
	OptionsChanged(section string, opts database.Options)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(section string, opts database.Options)

func (f ObserverFunc) OptionsChanged(section string, opts database.Options) { f(section, opts) }

// Source is a named-section configuration provider with change notification.
type Source interface {
	Section(name string) (database.Options, error)
	// Subscribe registers o for changes of the named section. The returned
	// function removes the subscription and may be called more than once.
	Subscribe(name string, o Observer) (unsubscribe func())
}

// Store is a Source backed by koanf. Later loads override earlier ones.
type Store struct {
	mu        sync.RWMutex
	k         *koanf.Koanf
	layers    []layer
	files     []*file.File
	observers map[string]map[uint64]Observer
	nextID    uint64
	logger    database.Logger
}

// layer yields a fresh provider for one loaded source, so the tree can be
// rebuilt from scratch.
type layer func() (koanf.Provider, koanf.Parser)

var _ Source = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		k:         koanf.New("."),
		observers: make(map[string]map[uint64]Observer),
		logger:    database.GetLogger(),
	}
}

func (s *Store) load(l layer) error {
	p, pa := l()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.k.Load(p, pa); err != nil {
		return err
	}
	s.layers = append(s.layers, l)
	return nil
}

// LoadFile merges a YAML file. The file is remembered for Watch.
func (s *Store) LoadFile(path string) error {
	f := file.Provider(path)
	if err := s.load(func() (koanf.Provider, koanf.Parser) { return f, koanfyaml.Parser() }); err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	s.mu.Lock()
	s.files = append(s.files, f)
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadEnv merges environment variables carrying prefix. The first underscore
// after the prefix separates the section from the key, so
// HUMMER_DATABASE_COMMAND_TIMEOUT sets database.command_timeout.
func (s *Store) LoadEnv(prefix string) error {
	envPrefix := strings.ToUpper(strings.TrimSuffix(prefix, "_")) + "_"
	transform := func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.Replace(key, "_", ".", 1)
	}
	err := s.load(func() (koanf.Provider, koanf.Parser) {
		return env.Provider(envPrefix, ".", transform), nil
	})
	if err != nil {
		return fmt.Errorf("config: loading env: %w", err)
	}
	s.notify()
	return nil
}

// Merge loads values keyed by dotted paths or nested maps.
func (s *Store) Merge(values map[string]any) error {
	// koanf keeps references into a loaded map, so every load gets its own copy.
	tree, err := confmap.Provider(values, ".").Read()
	if err != nil {
		return fmt.Errorf("config: merge: %w", err)
	}
	err = s.load(func() (koanf.Provider, koanf.Parser) { return confmap.Provider(tree, ""), nil })
	if err != nil {
		return fmt.Errorf("config: merge: %w", err)
	}
	s.notify()
	return nil
}

// MergeYAML unmarshals a YAML payload and merges it.
func (s *Store) MergeYAML(data []byte) error {
	var raw map[string]any
	if err := yamlv3.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: yaml: %w", err)
	}
	return s.Merge(raw)
}

// Reload rebuilds the configuration from every source loaded so far, in load
// order, and notifies observers. Keys no longer present in any source are
// dropped. On failure the previous configuration stays in place.
func (s *Store) Reload() error {
	s.mu.RLock()
	layers := make([]layer, len(s.layers))
	copy(layers, s.layers)
	s.mu.RUnlock()

	k := koanf.New(".")
	for _, l := range layers {
		p, pa := l()
		if err := k.Load(p, pa); err != nil {
			return fmt.Errorf("config: reload: %w", err)
		}
	}
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	s.notify()
	return nil
}

// Watch reloads the configuration whenever a loaded file changes on disk,
// until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	s.mu.RLock()
	files := make([]*file.File, len(s.files))
	copy(files, s.files)
	s.mu.RUnlock()
	if len(files) == 0 {
		return errors.New("config: no files to watch")
	}

	for i, f := range files {
		err := f.Watch(func(_ interface{}, err error) {
			if err != nil {
				s.logger.Error("Config watch failed", "error", err)
				return
			}
			if err := s.Reload(); err != nil {
				s.logger.Error("Config reload failed", "error", err)
				return
			}
			s.logger.Info("Config reloaded")
		})
		if err != nil {
			for _, started := range files[:i] {
				_ = started.Unwatch()
			}
			return fmt.Errorf("config: watch: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		for _, f := range files {
			_ = f.Unwatch()
		}
	}()
	return nil
}

// Section decodes the options stored under name.
func (s *Store) Section(name string) (database.Options, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.section(name)
}

func (s *Store) section(name string) (database.Options, error) {
	var opts database.Options
	if !s.k.Exists(name) {
		return opts, fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	err := s.k.UnmarshalWithConf(name, &opts, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			TagName:          "koanf",
			Result:           &opts,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return opts, fmt.Errorf("config: decode %s: %w", name, err)
	}
	return opts, nil
}

func (s *Store) Subscribe(name string, o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if s.observers[name] == nil {
		s.observers[name] = make(map[uint64]Observer)
	}
	s.observers[name][id] = o

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers[name], id)
			if len(s.observers[name]) == 0 {
				delete(s.observers, name)
			}
		})
	}
}

// notify decodes every subscribed section and calls its observers outside
// the lock. Sections that fail to decode are logged and skipped.
func (s *Store) notify() {
	type delivery struct {
		section   string
		opts      database.Options
		observers []Observer
	}

	s.mu.RLock()
	var deliveries []delivery
	for name, subs := range s.observers {
		opts, err := s.section(name)
		if err != nil {
			s.logger.Warn("Skipping change notification", "section", name, "error", err)
			continue
		}
		d := delivery{section: name, opts: opts}
		for _, o := range subs {
			d.observers = append(d.observers, o)
		}
		deliveries = append(deliveries, d)
	}
	s.mu.RUnlock()

	for _, d := range deliveries {
		for _, o := range d.observers {
			o.OptionsChanged(d.section, d.opts)
		}
	}
}
