// Package listforgev1 declares the listforge.v1.ListService gRPC service.
// Requests and responses are google.protobuf.Struct messages, so any gRPC
// client can call it without generated stubs.
package listforgev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "listforge.v1.ListService"

const (
	ListService_CreateItem_FullMethodName     = "/listforge.v1.ListService/CreateItem"
	ListService_GetItem_FullMethodName        = "/listforge.v1.ListService/GetItem"
	ListService_ListItems_FullMethodName      = "/listforge.v1.ListService/ListItems"
	ListService_HigherItem_FullMethodName     = "/listforge.v1.ListService/HigherItem"
	ListService_LowerItem_FullMethodName      = "/listforge.v1.ListService/LowerItem"
	ListService_BottomPosition_FullMethodName = "/listforge.v1.ListService/BottomPosition"
	ListService_InsertAt_FullMethodName       = "/listforge.v1.ListService/InsertAt"
	ListService_MoveLower_FullMethodName      = "/listforge.v1.ListService/MoveLower"
	ListService_MoveHigher_FullMethodName     = "/listforge.v1.ListService/MoveHigher"
	ListService_MoveToTop_FullMethodName      = "/listforge.v1.ListService/MoveToTop"
	ListService_MoveToBottom_FullMethodName   = "/listforge.v1.ListService/MoveToBottom"
	ListService_RemoveFromList_FullMethodName = "/listforge.v1.ListService/RemoveFromList"
	ListService_DestroyItem_FullMethodName    = "/listforge.v1.ListService/DestroyItem"
	ListService_ReorderItems_FullMethodName   = "/listforge.v1.ListService/ReorderItems"
)

// ListServiceServer is the server API for ListService.
type ListServiceServer interface {
	CreateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HigherItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LowerItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BottomPosition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InsertAt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveLower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveHigher(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveToTop(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveToBottom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveFromList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DestroyItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReorderItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterListServiceServer(s grpc.ServiceRegistrar, srv ListServiceServer) {
	s.RegisterService(&ListService_ServiceDesc, srv)
}

type serverMethod func(ListServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call serverMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ListServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ListServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ListService_ServiceDesc is the grpc.ServiceDesc for ListService.
var ListService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ListServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateItem", Handler: unaryHandler(ListService_CreateItem_FullMethodName, ListServiceServer.CreateItem)},
		{MethodName: "GetItem", Handler: unaryHandler(ListService_GetItem_FullMethodName, ListServiceServer.GetItem)},
		{MethodName: "ListItems", Handler: unaryHandler(ListService_ListItems_FullMethodName, ListServiceServer.ListItems)},
		{MethodName: "HigherItem", Handler: unaryHandler(ListService_HigherItem_FullMethodName, ListServiceServer.HigherItem)},
		{MethodName: "LowerItem", Handler: unaryHandler(ListService_LowerItem_FullMethodName, ListServiceServer.LowerItem)},
		{MethodName: "BottomPosition", Handler: unaryHandler(ListService_BottomPosition_FullMethodName, ListServiceServer.BottomPosition)},
		{MethodName: "InsertAt", Handler: unaryHandler(ListService_InsertAt_FullMethodName, ListServiceServer.InsertAt)},
		{MethodName: "MoveLower", Handler: unaryHandler(ListService_MoveLower_FullMethodName, ListServiceServer.MoveLower)},
		{MethodName: "MoveHigher", Handler: unaryHandler(ListService_MoveHigher_FullMethodName, ListServiceServer.MoveHigher)},
		{MethodName: "MoveToTop", Handler: unaryHandler(ListService_MoveToTop_FullMethodName, ListServiceServer.MoveToTop)},
		{MethodName: "MoveToBottom", Handler: unaryHandler(ListService_MoveToBottom_FullMethodName, ListServiceServer.MoveToBottom)},
		{MethodName: "RemoveFromList", Handler: unaryHandler(ListService_RemoveFromList_FullMethodName, ListServiceServer.RemoveFromList)},
		{MethodName: "DestroyItem", Handler: unaryHandler(ListService_DestroyItem_FullMethodName, ListServiceServer.DestroyItem)},
		{MethodName: "ReorderItems", Handler: unaryHandler(ListService_ReorderItems_FullMethodName, ListServiceServer.ReorderItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "listforge/v1/list_service.proto",
}

// ListServiceClient is the client API for ListService.
type ListServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewListServiceClient(cc grpc.ClientConnInterface) *ListServiceClient {
	return &ListServiceClient{cc: cc}
}

// Call invokes the method named by fullMethod, one of the
// ListService_*_FullMethodName constants.
func (c *ListServiceClient) Call(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
