package domain

import (
	"maps"
	"time"
)

// Item is a persisted record taking part in an ordered list. Items of
// different kinds may share one table and one list.
type Item struct {
	ID        int64
	Kind      string
	Position  *int
	Attrs     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem creates an unsaved item carrying the given attributes.
func NewItem(kind string, attrs map[string]any) *Item {
	item := &Item{
		Kind:  kind,
		Attrs: make(map[string]any, len(attrs)),
	}
	maps.Copy(item.Attrs, attrs)
	return item
}

// InList reports whether the item currently holds a position.
func (i *Item) InList() bool {
	return i.Position != nil
}

// PositionOrZero returns the position, treating a missing one as 0.
func (i *Item) PositionOrZero() int {
	if i.Position == nil {
		return 0
	}
	return *i.Position
}

// Attr returns the named attribute.
func (i *Item) Attr(name string) (any, bool) {
	if i.Attrs == nil {
		return nil, false
	}
	v, ok := i.Attrs[name]
	return v, ok
}

// Pos returns a pointer to p, for filling Item.Position.
func Pos(p int) *int {
	return &p
}

// Comparison is a relational operator applied to the position column.
type Comparison string

const (
	Equal          Comparison = "="
	Greater        Comparison = ">"
	GreaterOrEqual Comparison = ">="
	Less           Comparison = "<"
)

// PositionCond restricts a query or bulk update to the rows whose position
// compares to Value with Op.
type PositionCond struct {
	Op    Comparison
	Value int
}

func PositionEq(v int) PositionCond      { return PositionCond{Op: Equal, Value: v} }
func PositionAbove(v int) PositionCond   { return PositionCond{Op: Greater, Value: v} }
func PositionAtLeast(v int) PositionCond { return PositionCond{Op: GreaterOrEqual, Value: v} }
func PositionBelow(v int) PositionCond   { return PositionCond{Op: Less, Value: v} }

// Valid reports whether the operator is one the store knows how to render.
func (c PositionCond) Valid() bool {
	switch c.Op {
	case Equal, Greater, GreaterOrEqual, Less:
		return true
	}
	return false
}
