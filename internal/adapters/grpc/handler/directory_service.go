package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ogurasousui/codex-employee-directory/internal/core/employee"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DirectoryServiceName は社員ディレクトリ gRPC サービスの完全修飾名です。
const DirectoryServiceName = "directory.v1.DirectoryService"

const (
	methodLoad                = "/" + DirectoryServiceName + "/Load"
	methodGetView             = "/" + DirectoryServiceName + "/GetView"
	methodGetEmployee         = "/" + DirectoryServiceName + "/GetEmployee"
	methodCreateEmployee      = "/" + DirectoryServiceName + "/CreateEmployee"
	methodUpdateEmployee      = "/" + DirectoryServiceName + "/UpdateEmployee"
	methodDeleteEmployee      = "/" + DirectoryServiceName + "/DeleteEmployee"
	methodBulkDeleteEmployees = "/" + DirectoryServiceName + "/BulkDeleteEmployees"
	methodSetSearchQuery      = "/" + DirectoryServiceName + "/SetSearchQuery"
	methodSetSortField        = "/" + DirectoryServiceName + "/SetSortField"
	methodSetPage             = "/" + DirectoryServiceName + "/SetPage"
	methodToggleSelection     = "/" + DirectoryServiceName + "/ToggleSelection"
	methodSelectAllVisible    = "/" + DirectoryServiceName + "/SelectAllVisible"
	methodClearSelection      = "/" + DirectoryServiceName + "/ClearSelection"
)

// DirectoryServer は DirectoryService のサーバー側インターフェースです。
// メッセージはすべて protobuf の well-known type で表現します。
type DirectoryServer interface {
	Load(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetView(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetEmployee(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	CreateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEmployee(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	BulkDeleteEmployees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetSearchQuery(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SetSortField(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SetPage(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	ToggleSelection(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	SelectAllVisible(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ClearSelection(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterDirectoryServiceServer は srv を DirectoryService として登録します。
func RegisterDirectoryServiceServer(s grpc.ServiceRegistrar, srv DirectoryServer) {
	s.RegisterService(&directoryServiceDesc, srv)
}

var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: DirectoryServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Load", Handler: unaryHandler(methodLoad, newStruct, DirectoryServer.Load)},
		{MethodName: "GetView", Handler: unaryHandler(methodGetView, newEmpty, DirectoryServer.GetView)},
		{MethodName: "GetEmployee", Handler: unaryHandler(methodGetEmployee, newInt64, DirectoryServer.GetEmployee)},
		{MethodName: "CreateEmployee", Handler: unaryHandler(methodCreateEmployee, newStruct, DirectoryServer.CreateEmployee)},
		{MethodName: "UpdateEmployee", Handler: unaryHandler(methodUpdateEmployee, newStruct, DirectoryServer.UpdateEmployee)},
		{MethodName: "DeleteEmployee", Handler: unaryHandler(methodDeleteEmployee, newInt64, DirectoryServer.DeleteEmployee)},
		{MethodName: "BulkDeleteEmployees", Handler: unaryHandler(methodBulkDeleteEmployees, newStruct, DirectoryServer.BulkDeleteEmployees)},
		{MethodName: "SetSearchQuery", Handler: unaryHandler(methodSetSearchQuery, newString, DirectoryServer.SetSearchQuery)},
		{MethodName: "SetSortField", Handler: unaryHandler(methodSetSortField, newString, DirectoryServer.SetSortField)},
		{MethodName: "SetPage", Handler: unaryHandler(methodSetPage, newInt64, DirectoryServer.SetPage)},
		{MethodName: "ToggleSelection", Handler: unaryHandler(methodToggleSelection, newInt64, DirectoryServer.ToggleSelection)},
		{MethodName: "SelectAllVisible", Handler: unaryHandler(methodSelectAllVisible, newEmpty, DirectoryServer.SelectAllVisible)},
		{MethodName: "ClearSelection", Handler: unaryHandler(methodClearSelection, newEmpty, DirectoryServer.ClearSelection)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "directory/v1/directory.proto",
}

func newStruct() *structpb.Struct        { return &structpb.Struct{} }
func newEmpty() *emptypb.Empty           { return &emptypb.Empty{} }
func newInt64() *wrapperspb.Int64Value   { return &wrapperspb.Int64Value{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }

// unaryHandler は生成コードの _Handler 関数と同じ手順でリクエストをデコードし、インターセプタを通して呼び出します。
func unaryHandler[Req, Resp any](fullMethod string, newReq func() Req, call func(DirectoryServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DirectoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		next := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DirectoryServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, next)
	}
}

// toStruct は v を JSON 経由で structpb.Struct に変換します。
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	return out, nil
}

// fromStruct は s を JSON 経由で out にデコードします。
func fromStruct(s *structpb.Struct, out any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

type loadRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

type updateRequest struct {
	ID int `json:"id"`
	employee.Patch
}

type bulkDeleteRequest struct {
	IDs []int `json:"ids"`
}

// BulkDeleteResponse は BulkDeleteEmployees の結果です。
type BulkDeleteResponse struct {
	Removed []int `json:"removed"`
	Failed  []int `json:"failed"`
}

// DirectoryClient は DirectoryService のクライアントです。
type DirectoryClient struct {
	cc grpc.ClientConnInterface
}

// NewDirectoryClient は DirectoryClient を生成します。
func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{cc: cc}
}

// Load は社員一覧を読み込み、読み込み後のビューを返します。
func (c *DirectoryClient) Load(ctx context.Context, forceRefresh bool, opts ...grpc.CallOption) (*employee.PageView, error) {
	in, err := toStruct(loadRequest{ForceRefresh: forceRefresh})
	if err != nil {
		return nil, err
	}
	return c.invokeView(ctx, methodLoad, in, opts...)
}

// GetView は現在のビューを返します。
func (c *DirectoryClient) GetView(ctx context.Context, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodGetView, &emptypb.Empty{}, opts...)
}

// GetEmployee は社員を取得します。
func (c *DirectoryClient) GetEmployee(ctx context.Context, id int, opts ...grpc.CallOption) (*employee.Employee, error) {
	return c.invokeEmployee(ctx, methodGetEmployee, wrapperspb.Int64(int64(id)), opts...)
}

// CreateEmployee は社員を作成します。
func (c *DirectoryClient) CreateEmployee(ctx context.Context, draft employee.Draft, opts ...grpc.CallOption) (*employee.Employee, error) {
	in, err := toStruct(draft)
	if err != nil {
		return nil, err
	}
	return c.invokeEmployee(ctx, methodCreateEmployee, in, opts...)
}

// UpdateEmployee は社員情報を更新します。
func (c *DirectoryClient) UpdateEmployee(ctx context.Context, id int, patch employee.Patch, opts ...grpc.CallOption) (*employee.Employee, error) {
	in, err := toStruct(updateRequest{ID: id, Patch: patch})
	if err != nil {
		return nil, err
	}
	return c.invokeEmployee(ctx, methodUpdateEmployee, in, opts...)
}

// DeleteEmployee は社員を削除します。
func (c *DirectoryClient) DeleteEmployee(ctx context.Context, id int, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodDeleteEmployee, wrapperspb.Int64(int64(id)), &emptypb.Empty{}, opts...)
}

// BulkDeleteEmployees は複数の社員をまとめて削除します。
func (c *DirectoryClient) BulkDeleteEmployees(ctx context.Context, ids []int, opts ...grpc.CallOption) (*BulkDeleteResponse, error) {
	in, err := toStruct(bulkDeleteRequest{IDs: ids})
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, methodBulkDeleteEmployees, in, out, opts...); err != nil {
		return nil, err
	}
	var resp BulkDeleteResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetSearchQuery は検索語を設定します。
func (c *DirectoryClient) SetSearchQuery(ctx context.Context, query string, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodSetSearchQuery, wrapperspb.String(query), opts...)
}

// SetSortField はソート項目を設定します。
func (c *DirectoryClient) SetSortField(ctx context.Context, field string, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodSetSortField, wrapperspb.String(field), opts...)
}

// SetPage は表示ページを設定します。
func (c *DirectoryClient) SetPage(ctx context.Context, page int, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodSetPage, wrapperspb.Int64(int64(page)), opts...)
}

// ToggleSelection は社員の選択状態を反転します。
func (c *DirectoryClient) ToggleSelection(ctx context.Context, id int, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodToggleSelection, wrapperspb.Int64(int64(id)), opts...)
}

// SelectAllVisible は表示中の社員をすべて選択します。
func (c *DirectoryClient) SelectAllVisible(ctx context.Context, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodSelectAllVisible, &emptypb.Empty{}, opts...)
}

// ClearSelection は選択状態を解除します。
func (c *DirectoryClient) ClearSelection(ctx context.Context, opts ...grpc.CallOption) (*employee.PageView, error) {
	return c.invokeView(ctx, methodClearSelection, &emptypb.Empty{}, opts...)
}

func (c *DirectoryClient) invokeView(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*employee.PageView, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	var view employee.PageView
	if err := fromStruct(out, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *DirectoryClient) invokeEmployee(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*employee.Employee, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	var emp employee.Employee
	if err := fromStruct(out, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}
