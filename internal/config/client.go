package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const clientBaseName = "client"

// ErrClientConfigNotFound is returned when no client config exists for a namespace.
var ErrClientConfigNotFound = errors.New("client config not found")

// Sections decodes the root keys of a namespaced client config into targets
// registered by modules. Keys without a registered target are ignored.
type Sections struct {
	mu      sync.Mutex
	targets map[string]any
	log     *zap.Logger
}

func NewSections(log *zap.Logger) *Sections {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sections{targets: make(map[string]any), log: log}
}

// Add registers target (a non-nil pointer) to receive the section named key.
func (s *Sections) Add(key string, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("config section %q: target must be a non-nil pointer, got %T", key, target)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[key]; ok {
		return fmt.Errorf("config section %q already registered", key)
	}
	s.targets[key] = target
	return nil
}

func (s *Sections) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Load finds <resourcesDir>/<namespace>/client.{toml,yaml,yml} and decodes
// every registered section. It returns the path that was loaded.
func (s *Sections) Load(resourcesDir, namespace string) (string, error) {
	dir := filepath.Join(resourcesDir, namespace)
	for _, ext := range []string{".toml", ".yaml", ".yml"} {
		path := filepath.Join(dir, clientBaseName+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("read client config %s: %w", path, err)
		}

		s.log.Info("found client config", zap.String("path", path))
		if ext == ".toml" {
			err = s.decodeTOML(data)
		} else {
			err = s.decodeYAML(data)
		}
		if err != nil {
			return "", fmt.Errorf("parse client config %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: namespace %q under %s", ErrClientConfigNotFound, namespace, resourcesDir)
}

func (s *Sections) decodeTOML(data []byte) error {
	var root map[string]toml.Primitive
	md, err := toml.Decode(string(data), &root)
	if err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(root)) {
		target, ok := s.target(key)
		if !ok {
			continue
		}
		if err := md.PrimitiveDecode(root[key], target); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		s.log.Debug("decoded config section", zap.String("section", key))
	}
	return nil
}

func (s *Sections) decodeYAML(data []byte) error {
	var root map[string]yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(root)) {
		target, ok := s.target(key)
		if !ok {
			continue
		}
		node := root[key]
		if err := node.Decode(target); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		s.log.Debug("decoded config section", zap.String("section", key))
	}
	return nil
}

func (s *Sections) target(key string) (any, bool) {
	s.mu.Lock()
	target, ok := s.targets[key]
	s.mu.Unlock()
	if !ok {
		s.log.Info("ignoring unknown key in config root", zap.String("key", key))
	}
	return target, ok
}
