package app

import (
	"context"
	"fmt"
	"net"
	"testing"

	listforgev1 "github.com/dmehra2102/ListForge/api/listforgev1"
	"github.com/dmehra2102/ListForge/internal/domain"
	"github.com/dmehra2102/ListForge/internal/infrastructure/config"
	"github.com/dmehra2102/ListForge/internal/infrastructure/postgres"
	"github.com/dmehra2102/ListForge/internal/interceptors"
	"github.com/dmehra2102/ListForge/internal/orderedlist"
	"github.com/dmehra2102/ListForge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newClient(t *testing.T) *listforgev1.ListServiceClient {
	t.Helper()
	return newClientWithLogger(t, zaptest.NewLogger(t))
}

func newClientWithLogger(t *testing.T, logger *zap.Logger) *listforgev1.ListServiceClient {
	t.Helper()

	db := testutil.OpenDB(t)

	var lists []*orderedlist.List
	for _, cfg := range config.DefaultLists() {
		def, err := cfg.Resolve()
		require.NoError(t, err)
		l, err := orderedlist.New(def, postgres.NewListRepository(db, def.Table()), logger)
		require.NoError(t, err)
		lists = append(lists, l)
	}
	registry, err := orderedlist.NewRegistry(lists...)
	require.NoError(t, err)

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.RecoveryInterceptor(logger, nil),
		interceptors.LoggingInterceptor(logger),
	))
	listforgev1.RegisterListServiceServer(server, NewListServiceServer(registry, logger))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return listforgev1.NewListServiceClient(conn)
}

func call(t *testing.T, c *listforgev1.ListServiceClient, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	return c.Call(context.Background(), method, in)
}

func mustCall(t *testing.T, c *listforgev1.ListServiceClient, method string, req map[string]any) *structpb.Struct {
	t.Helper()
	out, err := call(t, c, method, req)
	require.NoError(t, err)
	return out
}

func itemOf(out *structpb.Struct) map[string]any {
	return out.AsMap()["item"].(map[string]any)
}

func orderOf(out *structpb.Struct) []float64 {
	var ids []float64
	for _, raw := range out.AsMap()["items"].([]any) {
		item := raw.(map[string]any)
		ids = append(ids, item["id"].(float64))
	}
	return ids
}

func createUploads(t *testing.T, c *listforgev1.ListServiceClient, gallery, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		mustCall(t, c, listforgev1.ListService_CreateItem_FullMethodName, map[string]any{
			"list":  "uploads",
			"kind":  "photo",
			"attrs": map[string]any{"gallery_id": gallery, "title": "upload"},
		})
	}
}

func listGallery(t *testing.T, c *listforgev1.ListServiceClient, gallery int) []float64 {
	t.Helper()
	return orderOf(mustCall(t, c, listforgev1.ListService_ListItems_FullMethodName, map[string]any{
		"list":  "uploads",
		"scope": map[string]any{"gallery_id": gallery},
	}))
}

func TestListService_CreateAppends(t *testing.T) {
	c := newClient(t)

	for want := 1; want <= 3; want++ {
		out := mustCall(t, c, listforgev1.ListService_CreateItem_FullMethodName, map[string]any{
			"list":  "uploads",
			"kind":  "video",
			"attrs": map[string]any{"gallery_id": 7, "title": "clip"},
		})
		item := itemOf(out)
		assert.Equal(t, float64(want), item["position"])
		assert.Equal(t, "video", item["kind"])
		attrs := item["attrs"].(map[string]any)
		assert.Equal(t, "clip", attrs["title"])
		assert.Equal(t, float64(7), attrs["gallery_id"])
	}

	got := mustCall(t, c, listforgev1.ListService_GetItem_FullMethodName, map[string]any{"list": "uploads", "id": "2"})
	assert.Equal(t, float64(2), itemOf(got)["position"])
}

func TestListService_MovesAndReorder(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 4)

	out := mustCall(t, c, listforgev1.ListService_MoveLower_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	assert.Equal(t, float64(3), itemOf(out)["position"])
	assert.Equal(t, []float64{1, 3, 2, 4}, listGallery(t, c, 1))

	mustCall(t, c, listforgev1.ListService_MoveHigher_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	mustCall(t, c, listforgev1.ListService_MoveToBottom_FullMethodName, map[string]any{"list": "uploads", "id": 1})
	assert.Equal(t, []float64{2, 3, 4, 1}, listGallery(t, c, 1))

	mustCall(t, c, listforgev1.ListService_MoveToTop_FullMethodName, map[string]any{"list": "uploads", "id": 4})
	assert.Equal(t, []float64{4, 2, 3, 1}, listGallery(t, c, 1))

	out = mustCall(t, c, listforgev1.ListService_InsertAt_FullMethodName, map[string]any{"list": "uploads", "id": 1, "position": 2})
	assert.Equal(t, float64(2), itemOf(out)["position"])
	assert.Equal(t, []float64{4, 1, 2, 3}, listGallery(t, c, 1))

	out = mustCall(t, c, listforgev1.ListService_ReorderItems_FullMethodName, map[string]any{
		"list": "uploads",
		"ids":  []any{3, "2", 99, -1, 1.5},
	})
	assert.Equal(t, []float64{3, 2, 4, 1}, orderOf(out))
	assert.Equal(t, []float64{3, 2, 4, 1}, listGallery(t, c, 1))

	items := orderOf(mustCall(t, c, listforgev1.ListService_ListItems_FullMethodName, map[string]any{"list": "uploads", "id": 4}))
	assert.Equal(t, []float64{3, 2, 4, 1}, items)
}

func TestListService_RemoveAndDestroy(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 3)

	out := mustCall(t, c, listforgev1.ListService_RemoveFromList_FullMethodName, map[string]any{"list": "uploads", "id": 1})
	assert.Nil(t, itemOf(out)["position"])

	out = mustCall(t, c, listforgev1.ListService_DestroyItem_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	assert.Equal(t, true, out.AsMap()["success"])

	assert.Equal(t, []float64{3, 1}, listGallery(t, c, 1))

	_, err := call(t, c, listforgev1.ListService_GetItem_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestListService_Neighbours(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 3)

	out := mustCall(t, c, listforgev1.ListService_HigherItem_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	assert.Equal(t, float64(1), itemOf(out)["id"])

	out = mustCall(t, c, listforgev1.ListService_LowerItem_FullMethodName, map[string]any{"list": "uploads", "id": 2})
	assert.Equal(t, float64(3), itemOf(out)["id"])

	out = mustCall(t, c, listforgev1.ListService_HigherItem_FullMethodName, map[string]any{"list": "uploads", "id": 1})
	assert.Nil(t, out.AsMap()["item"])

	out = mustCall(t, c, listforgev1.ListService_LowerItem_FullMethodName, map[string]any{"list": "uploads", "id": 3})
	assert.Nil(t, out.AsMap()["item"])

	mustCall(t, c, listforgev1.ListService_RemoveFromList_FullMethodName, map[string]any{"list": "uploads", "id": 3})
	_, err := call(t, c, listforgev1.ListService_LowerItem_FullMethodName, map[string]any{"list": "uploads", "id": 3})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestListService_GetItemReportsEnds(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 3)

	tests := []struct {
		id          int
		first, last bool
	}{
		{1, true, false},
		{2, false, false},
		{3, false, true},
	}
	for _, tt := range tests {
		out := mustCall(t, c, listforgev1.ListService_GetItem_FullMethodName, map[string]any{"list": "uploads", "id": tt.id})
		assert.Equal(t, tt.first, out.AsMap()["first"], "item %d", tt.id)
		assert.Equal(t, tt.last, out.AsMap()["last"], "item %d", tt.id)
	}
}

func TestListService_BottomPosition(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 3)

	out := mustCall(t, c, listforgev1.ListService_BottomPosition_FullMethodName, map[string]any{
		"list":  "uploads",
		"scope": map[string]any{"gallery_id": 1},
	})
	assert.Equal(t, float64(3), out.AsMap()["bottom_position"])

	out = mustCall(t, c, listforgev1.ListService_BottomPosition_FullMethodName, map[string]any{
		"list":  "uploads",
		"scope": map[string]any{"gallery_id": 2},
	})
	assert.Equal(t, float64(0), out.AsMap()["bottom_position"])

	_, err := call(t, c, listforgev1.ListService_BottomPosition_FullMethodName, map[string]any{"list": "uploads"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestListService_RejectedRequestsAreNotLoggedAsErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := newClientWithLogger(t, zap.New(core))

	_, err := call(t, c, listforgev1.ListService_CreateItem_FullMethodName, map[string]any{
		"list":  "uploads",
		"attrs": map[string]any{"title": "no gallery"},
	})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = call(t, c, listforgev1.ListService_MoveToTop_FullMethodName, map[string]any{"list": "uploads", "id": 42})
	require.Equal(t, codes.NotFound, status.Code(err))

	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
	assert.Equal(t, 2, logs.FilterMessage("request rejected").Len())
}

func TestListService_Errors(t *testing.T) {
	c := newClient(t)
	createUploads(t, c, 1, 1)

	tests := []struct {
		name   string
		method string
		req    map[string]any
		code   codes.Code
	}{
		{"missing list", listforgev1.ListService_GetItem_FullMethodName, map[string]any{"id": 1}, codes.InvalidArgument},
		{"unknown list", listforgev1.ListService_GetItem_FullMethodName, map[string]any{"list": "widgets", "id": 1}, codes.NotFound},
		{"missing id", listforgev1.ListService_MoveLower_FullMethodName, map[string]any{"list": "uploads"}, codes.InvalidArgument},
		{"bad id", listforgev1.ListService_MoveLower_FullMethodName, map[string]any{"list": "uploads", "id": "abc"}, codes.InvalidArgument},
		{"unknown item", listforgev1.ListService_MoveToTop_FullMethodName, map[string]any{"list": "uploads", "id": 42}, codes.NotFound},
		{"bad position", listforgev1.ListService_InsertAt_FullMethodName, map[string]any{"list": "uploads", "id": 1, "position": 0}, codes.InvalidArgument},
		{"bad attribute", listforgev1.ListService_CreateItem_FullMethodName, map[string]any{"list": "uploads", "attrs": map[string]any{"gallery_id": 1, "owner": 3}}, codes.InvalidArgument},
		{"no scope", listforgev1.ListService_CreateItem_FullMethodName, map[string]any{"list": "uploads", "attrs": map[string]any{"title": "x"}}, codes.FailedPrecondition},
		{"ids not a list", listforgev1.ListService_ReorderItems_FullMethodName, map[string]any{"list": "uploads", "ids": "1,2"}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, c, tt.method, tt.req)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrInvalidPosition, codes.InvalidArgument},
		{domain.ErrInvalidAttribute, codes.InvalidArgument},
		{domain.ErrInvalidID, codes.InvalidArgument},
		{domain.ErrUnknownList, codes.NotFound},
		{domain.ErrItemNotFound, codes.NotFound},
		{domain.ErrNotInList, codes.FailedPrecondition},
		{domain.ErrScopeResolution, codes.FailedPrecondition},
		{domain.ErrConflict, codes.Aborted},
		{fmt.Errorf("%w: %w", domain.ErrStorage, domain.ErrConflict), codes.Aborted},
		{fmt.Errorf("%w: %w", domain.ErrStorage, domain.ErrReferenced), codes.FailedPrecondition},
		{domain.ErrStorage, codes.Internal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(mapDomainError(tt.err)), tt.err.Error())
	}
}
