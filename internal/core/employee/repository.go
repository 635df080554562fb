package employee

import "context"

// Repository はリモート API 上の社員リソースへのアクセスを抽象化します。
type Repository interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id int) (*Employee, error)
	Create(ctx context.Context, draft Draft) (*Employee, error)
	Update(ctx context.Context, id int, patch Patch) (*Employee, error)
	Delete(ctx context.Context, id int) error
}

// ListParams は一覧取得用のパラメータです。Query が空でなければ検索になります。
type ListParams struct {
	Limit int
	Skip  int
	Query string
}

// ListResult は一覧取得結果を表します。
type ListResult struct {
	Employees []Employee
	Total     int
	Skip      int
	Limit     int
}
