package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dmehra2102/ListForge/internal/domain"
	"gopkg.in/yaml.v3"
)

// ListsFile is the on-disk form of the list type definitions.
//
//	lists:
//	  - name: uploads
//	    table: uploads
//	    kind_column: kind
//	    columns: [title, description]
//	    scope:
//	      foreign_key: gallery
type ListsFile struct {
	Lists []ListDefinition `yaml:"lists"`
}

// ListDefinition declares one list type.
type ListDefinition struct {
	Name           string          `yaml:"name"`
	Table          string          `yaml:"table"`
	PositionColumn string          `yaml:"position_column,omitempty"`
	KindColumn     string          `yaml:"kind_column,omitempty"`
	Columns        []string        `yaml:"columns,omitempty"`
	Scope          ScopeDefinition `yaml:"scope,omitempty"`
}

// ScopeDefinition selects the scope rule. At most one field may be set;
// none means the whole table is one list.
type ScopeDefinition struct {
	ForeignKey string `yaml:"foreign_key,omitempty"`
	Predicate  string `yaml:"predicate,omitempty"`
}

// DefaultLists are the list types served when no definitions file is given:
// gallery uploads and the page tree.
func DefaultLists() []domain.ListConfig {
	return []domain.ListConfig{
		{
			Name:       "uploads",
			Table:      "uploads",
			KindColumn: "kind",
			Columns:    []string{"title", "description"},
			Scope:      domain.ForeignKey("gallery"),
		},
		{
			Name:    "pages",
			Table:   "pages",
			Columns: []string{"title", "body"},
			Scope:   domain.ForeignKey("parent"),
		},
	}
}

// LoadLists reads list definitions from path, falling back to DefaultLists
// when path is empty.
func LoadLists(path string) ([]domain.ListConfig, error) {
	if path == "" {
		return DefaultLists(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lists config: %w", err)
	}
	return ParseLists(raw)
}

// ParseLists decodes YAML list definitions.
func ParseLists(raw []byte) ([]domain.ListConfig, error) {
	var file ListsFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse lists config: %w", err)
	}
	if len(file.Lists) == 0 {
		return nil, fmt.Errorf("%w: no lists defined", domain.ErrInvalidConfig)
	}

	lists := make([]domain.ListConfig, 0, len(file.Lists))
	for _, def := range file.Lists {
		cfg, err := def.toListConfig()
		if err != nil {
			return nil, err
		}
		lists = append(lists, cfg)
	}
	return lists, nil
}

func (d ListDefinition) toListConfig() (domain.ListConfig, error) {
	cfg := domain.ListConfig{
		Name:           d.Name,
		Table:          d.Table,
		PositionColumn: d.PositionColumn,
		KindColumn:     d.KindColumn,
		Columns:        d.Columns,
	}
	if cfg.Table == "" {
		cfg.Table = d.Name
	}

	switch {
	case d.Scope.ForeignKey != "" && d.Scope.Predicate != "":
		return domain.ListConfig{}, fmt.Errorf("%w: list %s sets both foreign_key and predicate scope", domain.ErrInvalidConfig, d.Name)
	case d.Scope.ForeignKey != "":
		cfg.Scope = domain.ForeignKey(d.Scope.ForeignKey)
	case d.Scope.Predicate != "":
		cfg.Scope = domain.Predicate(d.Scope.Predicate)
	default:
		cfg.Scope = domain.NoScope{}
	}

	return cfg, nil
}
