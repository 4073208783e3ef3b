package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Connectors/internal/domain"
)

// definitionsFile: формат YAML файла с определениями.
//
//	definitions:
//	  - key: "2251799813685249"
//	    bpmnProcessId: orders
//	    version: 1
//	    elements:
//	      - elementId: start
//	        correlationPoint: {kind: START_EVENT}
//	        properties:
//	          inbound.type: io.camunda:webhook:1
//	          inbound.context: orders
type definitionsFile struct {
	Definitions []definitionEntry `yaml:"definitions"`
}

type definitionEntry struct {
	Key           string         `yaml:"key"`
	BpmnProcessID string         `yaml:"bpmnProcessId"`
	Version       int            `yaml:"version"`
	TenantID      string         `yaml:"tenantId"`
	Elements      []elementEntry `yaml:"elements"`
}

type elementEntry struct {
	ElementID        string                  `yaml:"elementId"`
	CorrelationPoint domain.CorrelationPoint `yaml:"correlationPoint"`
	Properties       map[string]string       `yaml:"properties"`
}

// FileSource читает process definitions из YAML файла или каталога.
// Реализует inbound.DefinitionSource; файлы перечитываются при каждом вызове.
type FileSource struct {
	Path string
}

// NewFileSource создаёт FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Definitions возвращает определения из всех файлов.
// Отсутствующий путь означает отсутствие определений.
func (s *FileSource) Definitions(context.Context) ([]domain.ProcessDefinition, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	var defs []domain.ProcessDefinition
	seen := map[string]string{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		parsed, err := ParseDefinitions(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for _, def := range parsed {
			if prev, dup := seen[def.Key]; dup {
				return nil, fmt.Errorf("%w: definition %s declared in %s and %s", ErrInvalidConfig, def.Key, prev, file)
			}
			seen[def.Key] = file
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (s *FileSource) files() ([]string, error) {
	if s.Path == "" {
		return nil, nil
	}
	info, err := os.Stat(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat definitions: %w", err)
	}
	if !info.IsDir() {
		return []string{s.Path}, nil
	}

	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(s.Path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ParseDefinitions разбирает YAML с определениями.
func ParseDefinitions(data []byte) ([]domain.ProcessDefinition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	defs := make([]domain.ProcessDefinition, 0, len(file.Definitions))
	for i, entry := range file.Definitions {
		if entry.Key == "" || entry.BpmnProcessID == "" {
			return nil, fmt.Errorf("%w: definitions[%d]: key and bpmnProcessId are required", ErrInvalidConfig, i)
		}
		def := domain.ProcessDefinition{
			Key:           entry.Key,
			BpmnProcessID: entry.BpmnProcessID,
			Version:       entry.Version,
			TenantID:      entry.TenantID,
		}
		for _, el := range entry.Elements {
			if el.ElementID == "" {
				return nil, fmt.Errorf("%w: definitions[%d]: elementId is required", ErrInvalidConfig, i)
			}
			props := el.Properties
			if props == nil {
				props = map[string]string{}
			}
			def.Elements = append(def.Elements, domain.InboundElement{
				ProcessElement:   domain.ProcessElement{ElementID: el.ElementID},
				CorrelationPoint: el.CorrelationPoint,
				Properties:       props,
			})
		}
		def.Normalize()
		defs = append(defs, def)
	}
	return defs, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
