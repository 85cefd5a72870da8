package domain

import (
	"fmt"
	"slices"
)

const DefaultPositionColumn = "position"

// ListConfig describes one list type: the table its items live in, the
// column holding the position and the rule partitioning the table into
// independent lists. It is passed by value and never mutated after Resolve.
type ListConfig struct {
	Name           string
	Table          string
	PositionColumn string
	// KindColumn holds the item type tag. Empty when the table has none.
	KindColumn string
	// Columns are the attribute columns read and written besides id, kind
	// and position. Columns read by the scope rule are added on Resolve.
	Columns []string
	Scope   ScopeRule
}

// Table is the physical layout a store needs to serve a list.
type Table struct {
	Name           string
	PositionColumn string
	KindColumn     string
	Columns        []string
}

// ResolvedList is a validated ListConfig with its scope rule turned into a
// resolver.
type ResolvedList struct {
	Config   ListConfig
	ScopeFor ScopeResolver
}

// Resolve validates the configuration, applies defaults and resolves the
// scope rule.
func (c ListConfig) Resolve() (ResolvedList, error) {
	if c.Name == "" {
		return ResolvedList{}, fmt.Errorf("%w: list name is required", ErrInvalidConfig)
	}
	if !ValidIdentifier(c.Table) {
		return ResolvedList{}, fmt.Errorf("%w: invalid table %q for list %s", ErrInvalidConfig, c.Table, c.Name)
	}
	if c.PositionColumn == "" {
		c.PositionColumn = DefaultPositionColumn
	}
	if !ValidIdentifier(c.PositionColumn) {
		return ResolvedList{}, fmt.Errorf("%w: invalid position column %q", ErrInvalidConfig, c.PositionColumn)
	}
	if c.KindColumn != "" && !ValidIdentifier(c.KindColumn) {
		return ResolvedList{}, fmt.Errorf("%w: invalid kind column %q", ErrInvalidConfig, c.KindColumn)
	}
	if c.Scope == nil {
		c.Scope = NoScope{}
	}

	resolver, scopeColumns, err := c.Scope.resolve()
	if err != nil {
		return ResolvedList{}, fmt.Errorf("list %s: %w", c.Name, err)
	}

	columns := make([]string, 0, len(c.Columns)+len(scopeColumns))
	for _, column := range slices.Concat(scopeColumns, c.Columns) {
		if !ValidIdentifier(column) {
			return ResolvedList{}, fmt.Errorf("%w: invalid column %q", ErrInvalidConfig, column)
		}
		if column == c.PositionColumn || column == c.KindColumn || column == "id" {
			return ResolvedList{}, fmt.Errorf("%w: column %q is reserved", ErrInvalidConfig, column)
		}
		if !slices.Contains(columns, column) {
			columns = append(columns, column)
		}
	}
	c.Columns = columns

	return ResolvedList{Config: c, ScopeFor: resolver}, nil
}

// Table returns the physical layout of the resolved list.
func (r ResolvedList) Table() Table {
	return Table{
		Name:           r.Config.Table,
		PositionColumn: r.Config.PositionColumn,
		KindColumn:     r.Config.KindColumn,
		Columns:        slices.Clone(r.Config.Columns),
	}
}

// CheckAttrs rejects attributes that are not configured columns.
func (r ResolvedList) CheckAttrs(attrs map[string]any) error {
	for name := range attrs {
		if !slices.Contains(r.Config.Columns, name) {
			return fmt.Errorf("%w: %s", ErrInvalidAttribute, name)
		}
	}
	return nil
}
