package app

import (
	"context"
	"errors"

	listforgev1 "github.com/dmehra2102/ListForge/api/listforgev1"
	"github.com/dmehra2102/ListForge/internal/domain"
	"github.com/dmehra2102/ListForge/internal/interceptors"
	"github.com/dmehra2102/ListForge/internal/orderedlist"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ listforgev1.ListServiceServer = (*ListServiceServer)(nil)

type ListServiceServer struct {
	lists  *orderedlist.Registry
	logger *zap.Logger
	tracer trace.Tracer
}

func NewListServiceServer(lists *orderedlist.Registry, logger *zap.Logger) *ListServiceServer {
	return &ListServiceServer{
		lists:  lists,
		logger: logger,
		tracer: otel.Tracer("list-service"),
	}
}

func (s *ListServiceServer) CreateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "CreateItem")
	defer span.End()

	list, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	item := domain.NewItem(stringField(req, "kind"), attrsField(req, "attrs"))
	if _, ok := req.GetFields()["position"]; ok {
		position, err := positionField(req, "position", 0)
		if err != nil {
			return nil, mapDomainError(err)
		}
		if position > 0 {
			item.Position = domain.Pos(position)
		}
	}

	created, err := list.Create(ctx, item)
	if err != nil {
		return nil, mapDomainError(err)
	}

	span.SetAttributes(
		attribute.String("list", list.Name()),
		attribute.Int64("item.id", created.ID),
	)

	s.log(ctx).Info("item created",
		zap.String("list", list.Name()),
		zap.Int64("item_id", created.ID),
		zap.Intp("position", created.Position),
	)

	return itemResponse(created)
}

func (s *ListServiceServer) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "GetItem")
	defer span.End()

	list, id, err := s.lookupItem(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()), attribute.Int64("item.id", id))

	item, err := list.Get(ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}

	first, err := list.IsFirst(ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}
	last, err := list.IsLast(ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"item":  itemToMap(item),
		"first": first,
		"last":  last,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode item")
	}
	return resp, nil
}

// HigherItem returns the item right above the given one, or a null item when
// it is first.
func (s *ListServiceServer) HigherItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.neighbour(ctx, req, "HigherItem", (*orderedlist.List).HigherItem)
}

// LowerItem returns the item right below the given one, or a null item when
// it is last.
func (s *ListServiceServer) LowerItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.neighbour(ctx, req, "LowerItem", (*orderedlist.List).LowerItem)
}

func (s *ListServiceServer) BottomPosition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "BottomPosition")
	defer span.End()

	list, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()))

	bottom, err := list.BottomPosition(ctx, attrsField(req, "scope"))
	if err != nil {
		return nil, mapDomainError(err)
	}

	return structpb.NewStruct(map[string]any{"bottom_position": bottom})
}

func (s *ListServiceServer) ListItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "ListItems")
	defer span.End()

	list, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()))

	var items []*domain.Item
	if _, byItem := req.GetFields()["id"]; byItem {
		id, err := idField(req, "id")
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		items, err = list.Items(ctx, id)
		if err != nil {
			return nil, mapDomainError(err)
		}
	} else {
		items, err = list.ItemsIn(ctx, attrsField(req, "scope"))
		if err != nil {
			return nil, mapDomainError(err)
		}
	}

	span.SetAttributes(attribute.Int("returned_count", len(items)))
	return itemsResponse(items)
}

func (s *ListServiceServer) InsertAt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "InsertAt")
	defer span.End()

	list, id, err := s.lookupItem(req)
	if err != nil {
		return nil, err
	}

	position, err := positionField(req, "position", 1)
	if err != nil {
		return nil, mapDomainError(err)
	}

	span.SetAttributes(
		attribute.String("list", list.Name()),
		attribute.Int64("item.id", id),
		attribute.Int("position", position),
	)

	item, err := list.InsertAt(ctx, id, position)
	if err != nil {
		return nil, mapDomainError(err)
	}

	s.log(ctx).Info("item inserted",
		zap.String("list", list.Name()),
		zap.Int64("item_id", id),
		zap.Int("position", position),
	)

	return itemResponse(item)
}

func (s *ListServiceServer) MoveLower(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, req, "MoveLower", (*orderedlist.List).MoveLower)
}

func (s *ListServiceServer) MoveHigher(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, req, "MoveHigher", (*orderedlist.List).MoveHigher)
}

func (s *ListServiceServer) MoveToTop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, req, "MoveToTop", (*orderedlist.List).MoveToTop)
}

func (s *ListServiceServer) MoveToBottom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, req, "MoveToBottom", (*orderedlist.List).MoveToBottom)
}

func (s *ListServiceServer) RemoveFromList(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, req, "RemoveFromList", (*orderedlist.List).RemoveFromList)
}

func (s *ListServiceServer) DestroyItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "DestroyItem")
	defer span.End()

	list, id, err := s.lookupItem(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()), attribute.Int64("item.id", id))

	if err := list.Destroy(ctx, id); err != nil {
		return nil, mapDomainError(err)
	}

	s.log(ctx).Info("item destroyed",
		zap.String("list", list.Name()),
		zap.Int64("item_id", id),
	)

	return structpb.NewStruct(map[string]any{"success": true})
}

func (s *ListServiceServer) ReorderItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "ReorderItems")
	defer span.End()

	list, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	ids, err := idsField(req, "ids")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	span.SetAttributes(
		attribute.String("list", list.Name()),
		attribute.Int("ids_count", len(ids)),
	)

	items, err := list.ReorderByIDs(ctx, ids)
	if err != nil {
		return nil, mapDomainError(err)
	}

	s.log(ctx).Info("list reordered",
		zap.String("list", list.Name()),
		zap.Int("requested", len(ids)),
		zap.Int("members", len(items)),
	)

	return itemsResponse(items)
}

func (s *ListServiceServer) neighbour(ctx context.Context, req *structpb.Struct, name string, fn moveFunc) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	list, id, err := s.lookupItem(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()), attribute.Int64("item.id", id))

	item, err := fn(list, ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if item == nil {
		return structpb.NewStruct(map[string]any{"item": nil})
	}
	return itemResponse(item)
}

type moveFunc func(l *orderedlist.List, ctx context.Context, id int64) (*domain.Item, error)

func (s *ListServiceServer) move(ctx context.Context, req *structpb.Struct, name string, fn moveFunc) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	list, id, err := s.lookupItem(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("list", list.Name()), attribute.Int64("item.id", id))

	item, err := fn(list, ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}

	s.log(ctx).Info("item moved",
		zap.String("list", list.Name()),
		zap.String("op", name),
		zap.Int64("item_id", id),
		zap.Intp("position", item.Position),
	)

	return itemResponse(item)
}

// log returns the request-scoped logger when the logging interceptor ran.
func (s *ListServiceServer) log(ctx context.Context) *zap.Logger {
	return interceptors.Logger(ctx, s.logger)
}

func (s *ListServiceServer) lookup(req *structpb.Struct) (*orderedlist.List, error) {
	name := stringField(req, "list")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "list is required")
	}
	list, err := s.lists.Lookup(name)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return list, nil
}

func (s *ListServiceServer) lookupItem(req *structpb.Struct) (*orderedlist.List, int64, error) {
	list, err := s.lookup(req)
	if err != nil {
		return nil, 0, err
	}
	id, err := idField(req, "id")
	if err != nil {
		return nil, 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return list, id, nil
}

func itemResponse(item *domain.Item) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{"item": itemToMap(item)})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode item")
	}
	return resp, nil
}

func itemsResponse(items []*domain.Item) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{"items": itemsToList(items)})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode items")
	}
	return resp, nil
}

func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidAttribute),
		errors.Is(err, domain.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnknownList):
		return status.Error(codes.NotFound, err.Error())
	case domain.IsRetryable(err):
		return status.Error(codes.Aborted, "concurrent list update detected, please retry")
	case errors.Is(err, domain.ErrReferenced):
		return status.Error(codes.FailedPrecondition, "item is still referenced by other rows")
	case errors.Is(err, domain.ErrItemNotFound):
		return status.Error(codes.NotFound, "item not found")
	case errors.Is(err, domain.ErrNotInList):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrScopeResolution):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
