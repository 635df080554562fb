package handler

import (
	"context"

	"github.com/ogurasousui/codex-employee-directory/internal/core/employee"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DirectoryStore はハンドラが利用する社員ストアの操作です。
type DirectoryStore interface {
	Load(ctx context.Context, forceRefresh bool) error
	Lookup(ctx context.Context, id int) (*employee.Employee, error)
	Create(ctx context.Context, draft employee.Draft) (*employee.Employee, error)
	Update(ctx context.Context, id int, patch employee.Patch) (*employee.Employee, error)
	Remove(ctx context.Context, id int) error
	BulkRemove(ctx context.Context, ids []int) (*employee.BulkRemoveResult, error)
	View() employee.PageView
	SetSearchQuery(query string)
	SetSortField(field string) error
	SetPage(page int) error
	ToggleSelection(id int) (bool, error)
	SelectAllVisible()
	ClearSelection()
}

// DirectoryGrpcHandler は DirectoryService の gRPC 実装です。
type DirectoryGrpcHandler struct {
	store DirectoryStore
}

var _ DirectoryServer = (*DirectoryGrpcHandler)(nil)

// NewDirectoryGrpcHandler は DirectoryGrpcHandler を生成します。
func NewDirectoryGrpcHandler(store DirectoryStore) *DirectoryGrpcHandler {
	return &DirectoryGrpcHandler{store: store}
}

// Load は社員一覧を読み込み、ビューを返します。
// ストアがエラー状態として保持した取得失敗は Error 付きのビューとして返し、
// 中断など状態に残らない失敗のみ gRPC ステータスにします。
func (h *DirectoryGrpcHandler) Load(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in loadRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := h.store.Load(ctx, in.ForceRefresh); err != nil {
		view := h.store.View()
		if view.Error == "" {
			return nil, toStatusError(err)
		}
		return encode(view)
	}
	return h.view()
}

// GetView は現在のビューを返します。
func (h *DirectoryGrpcHandler) GetView(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return h.view()
}

// GetEmployee は社員を取得します。
func (h *DirectoryGrpcHandler) GetEmployee(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	found, err := h.store.Lookup(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatusError(err)
	}
	return encode(found)
}

// CreateEmployee は社員を作成します。
func (h *DirectoryGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	var draft employee.Draft
	if err := fromStruct(req, &draft); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	created, err := h.store.Create(ctx, draft)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encode(created)
}

// UpdateEmployee は社員情報を更新します。id 以外に指定されたフィールドのみ変更します。
func (h *DirectoryGrpcHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	var in updateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	updated, err := h.store.Update(ctx, in.ID, in.Patch)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encode(updated)
}

// DeleteEmployee は社員を削除します。
func (h *DirectoryGrpcHandler) DeleteEmployee(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.store.Remove(ctx, int(req.GetValue())); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// BulkDeleteEmployees は複数の社員をまとめて削除します。
func (h *DirectoryGrpcHandler) BulkDeleteEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in bulkDeleteRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(in.IDs) == 0 {
		return nil, status.Error(codes.InvalidArgument, "ids is required")
	}
	res, err := h.store.BulkRemove(ctx, in.IDs)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encode(BulkDeleteResponse{Removed: res.Deleted, Failed: res.Failed})
}

// SetSearchQuery は検索語を設定し、ビューを返します。
func (h *DirectoryGrpcHandler) SetSearchQuery(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	h.store.SetSearchQuery(req.GetValue())
	return h.view()
}

// SetSortField はソート項目を設定し、ビューを返します。
func (h *DirectoryGrpcHandler) SetSortField(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := h.store.SetSortField(req.GetValue()); err != nil {
		return nil, toStatusError(err)
	}
	return h.view()
}

// SetPage は表示ページを設定し、ビューを返します。
func (h *DirectoryGrpcHandler) SetPage(_ context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if err := h.store.SetPage(int(req.GetValue())); err != nil {
		return nil, toStatusError(err)
	}
	return h.view()
}

// ToggleSelection は社員の選択状態を反転し、ビューを返します。
func (h *DirectoryGrpcHandler) ToggleSelection(_ context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if _, err := h.store.ToggleSelection(int(req.GetValue())); err != nil {
		return nil, toStatusError(err)
	}
	return h.view()
}

// SelectAllVisible は表示中の社員をすべて選択し、ビューを返します。
func (h *DirectoryGrpcHandler) SelectAllVisible(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	h.store.SelectAllVisible()
	return h.view()
}

// ClearSelection は選択状態を解除し、ビューを返します。
func (h *DirectoryGrpcHandler) ClearSelection(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	h.store.ClearSelection()
	return h.view()
}

func (h *DirectoryGrpcHandler) view() (*structpb.Struct, error) {
	return encode(h.store.View())
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
