package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/ListForge/internal/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// parseID accepts an identifier given either as a number or as a string.
func parseID(v *structpb.Value) (int64, bool) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || f < 1 || f > 1<<53 {
			return 0, false
		}
		return int64(f), true
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(strings.TrimSpace(k.StringValue), 10, 64)
		if err != nil || id < 1 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

func idField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, ok := parseID(v)
	if !ok {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func positionField(req *structpb.Struct, name string, def int) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return def, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return def, nil
	}
	n, ok := parseID(v)
	if !ok || n > math.MaxInt32 {
		return 0, domain.ErrInvalidPosition
	}
	return int(n), nil
}

// idsField returns the identifiers listed under name. Entries that are not
// valid identifiers cannot match any item and are dropped.
func idsField(req *structpb.Struct, name string) ([]int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, fmt.Errorf("%s is required", name)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s must be a list", name)
	}

	ids := make([]int64, 0, len(list.GetValues()))
	for _, entry := range list.GetValues() {
		if id, ok := parseID(entry); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// attrsField converts a Struct of attribute values into Go values. Integral
// numbers become int64 so they compare equal to stored integer columns.
func attrsField(req *structpb.Struct, name string) map[string]any {
	attrs := make(map[string]any)
	v, ok := req.GetFields()[name]
	if !ok {
		return attrs
	}
	for key, field := range v.GetStructValue().GetFields() {
		attrs[key] = fromValue(field)
	}
	return attrs
}

func fromValue(v *structpb.Value) any {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

func itemToMap(item *domain.Item) map[string]any {
	attrs := make(map[string]any, len(item.Attrs))
	for key, value := range item.Attrs {
		attrs[key] = toValue(value)
	}

	var position any
	if item.Position != nil {
		position = *item.Position
	}

	return map[string]any{
		"id":         item.ID,
		"kind":       item.Kind,
		"position":   position,
		"attrs":      attrs,
		"created_at": item.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func itemsToList(items []*domain.Item) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = itemToMap(item)
	}
	return out
}

// toValue normalizes database values into types structpb accepts.
func toValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	case nil, string, bool, int, int32, int64, uint32, uint64, float32, float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}
