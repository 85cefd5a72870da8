package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Scope is the partition of a table an item's list lives in. Clause is a SQL
// predicate using ? placeholders bound, in order, to Args. Key identifies the
// partition in logs and metrics.
type Scope struct {
	Key    string
	Clause string
	Args   []any
}

// ScopeResolver maps an item to its scope.
type ScopeResolver func(item *Item) (Scope, error)

// ScopeRule describes how a list type partitions its table. It is one of
// ForeignKey, Predicate, ScopeFunc or NoScope.
type ScopeRule interface {
	// resolve validates the rule and returns the resolver together with the
	// attribute columns it reads.
	resolve() (ScopeResolver, []string, error)
}

// ForeignKey scopes a list by equality on a foreign key column. The "_id"
// suffix is appended when missing, so ForeignKey("gallery") reads gallery_id.
type ForeignKey string

// Predicate scopes a list with a SQL condition in which {attr} placeholders
// are bound to the item's attributes, e.g. "parent_id = {parent_id}". A nil
// attribute on the right of "=" renders as IS NULL, like ForeignKey; nil
// anywhere else fails resolution.
type Predicate string

// ScopeFunc computes the scope directly. The columns it reads must be listed
// in ListConfig.Columns.
type ScopeFunc func(item *Item) (Scope, error)

// NoScope puts every row of the table in a single list.
type NoScope struct{}

var (
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	equalityTail       = regexp.MustCompile(`(^|[^<>!=])=\s*$`)
)

// ValidIdentifier reports whether name is safe to splice into SQL as a table
// or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Column returns the foreign key column name.
func (fk ForeignKey) Column() string {
	name := string(fk)
	if !strings.HasSuffix(name, "_id") {
		name += "_id"
	}
	return name
}

func (fk ForeignKey) resolve() (ScopeResolver, []string, error) {
	column := fk.Column()
	if !ValidIdentifier(column) {
		return nil, nil, fmt.Errorf("%w: invalid scope column %q", ErrInvalidConfig, string(fk))
	}

	resolver := func(item *Item) (Scope, error) {
		value, ok := item.Attr(column)
		if !ok {
			return Scope{}, fmt.Errorf("%w: item has no %s attribute", ErrScopeResolution, column)
		}
		if value == nil {
			return Scope{
				Key:    column + "=NULL",
				Clause: column + " IS NULL",
			}, nil
		}
		return Scope{
			Key:    fmt.Sprintf("%s=%v", column, value),
			Clause: column + " = ?",
			Args:   []any{value},
		}, nil
	}
	return resolver, []string{column}, nil
}

func (p Predicate) resolve() (ScopeResolver, []string, error) {
	template := strings.TrimSpace(string(p))
	if template == "" {
		return nil, nil, fmt.Errorf("%w: empty scope predicate", ErrInvalidConfig)
	}
	if strings.ContainsAny(template, "?;") {
		return nil, nil, fmt.Errorf("%w: scope predicate may not contain '?' or ';'", ErrInvalidConfig)
	}

	// The template is split around its placeholders: literals has one more
	// element than columns, and equality[i] records whether placeholder i is
	// the right operand of "=".
	var (
		columns  []string
		literals []string
		equality []bool
	)
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		literal := template[last:m[0]]
		literals = append(literals, literal)
		equality = append(equality, equalityTail.MatchString(literal))
		columns = append(columns, template[m[2]:m[3]])
		last = m[1]
	}
	literals = append(literals, template[last:])

	resolver := func(item *Item) (Scope, error) {
		var clause, key strings.Builder
		args := make([]any, 0, len(columns))

		for i, column := range columns {
			value, ok := item.Attr(column)
			if !ok {
				return Scope{}, fmt.Errorf("%w: item has no %s attribute", ErrScopeResolution, column)
			}

			if value == nil {
				// SQL NULL never compares equal, so "col = NULL" would select
				// nothing. Equality becomes IS NULL; any other use is an error.
				if !equality[i] {
					return Scope{}, fmt.Errorf("%w: %s is nil outside an equality", ErrScopeResolution, column)
				}
				operand := strings.TrimRight(literals[i][:strings.LastIndex(literals[i], "=")], " \t\n")
				clause.WriteString(operand + " IS NULL")
				key.WriteString(operand + " IS NULL")
				continue
			}

			clause.WriteString(literals[i] + "?")
			key.WriteString(literals[i] + fmt.Sprint(value))
			args = append(args, value)
		}
		clause.WriteString(literals[len(columns)])
		key.WriteString(literals[len(columns)])

		return Scope{Key: key.String(), Clause: clause.String(), Args: args}, nil
	}
	return resolver, columns, nil
}

func (f ScopeFunc) resolve() (ScopeResolver, []string, error) {
	if f == nil {
		return nil, nil, fmt.Errorf("%w: nil scope function", ErrInvalidConfig)
	}

	resolver := func(item *Item) (Scope, error) {
		scope, err := f(item)
		if err != nil {
			return Scope{}, fmt.Errorf("%w: %w", ErrScopeResolution, err)
		}
		if strings.TrimSpace(scope.Clause) == "" {
			return Scope{}, fmt.Errorf("%w: scope function returned an empty clause", ErrScopeResolution)
		}
		if scope.Key == "" {
			scope.Key = scope.Clause
		}
		return scope, nil
	}
	return resolver, nil, nil
}

func (NoScope) resolve() (ScopeResolver, []string, error) {
	resolver := func(*Item) (Scope, error) {
		return Scope{Key: "*", Clause: "1 = 1"}, nil
	}
	return resolver, nil, nil
}
