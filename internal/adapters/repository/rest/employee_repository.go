package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ogurasousui/codex-employee-directory/internal/core/employee"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/cache"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/gateway"
)

const (
	usersPath       = "/users"
	usersSearchPath = "/users/search"
	usersAddPath    = "/users/add"
)

// Requester は Gateway の呼び出しインターフェースです。
type Requester interface {
	Request(ctx context.Context, resource string, opts gateway.Options, out any) error
}

// EmployeeRepository は REST API を利用した社員リソースへのアクセス実装です。
// 読み取りはキャッシュを優先し、書き込みは常に API を呼び出します。
type EmployeeRepository struct {
	gw    Requester
	cache *cache.Cache[json.RawMessage]
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(gw Requester, c *cache.Cache[json.RawMessage]) *EmployeeRepository {
	if c == nil {
		c = cache.New[json.RawMessage](cache.DefaultTTL, nil)
	}
	return &EmployeeRepository{gw: gw, cache: c}
}

type listResponse struct {
	Users []employee.Employee `json:"users"`
	Total int                 `json:"total"`
	Skip  int                 `json:"skip"`
	Limit int                 `json:"limit"`
}

// List は社員の一覧を取得します。Query が空でなければ検索エンドポイントを利用します。
func (r *EmployeeRepository) List(ctx context.Context, params employee.ListParams) (*employee.ListResult, error) {
	if params.Limit <= 0 {
		return nil, employee.ErrInvalidPageSize
	}
	if params.Skip < 0 {
		return nil, employee.ErrInvalidPage
	}

	q := strings.TrimSpace(params.Query)
	key := listCacheKey(params.Limit, params.Skip, q)

	query := url.Values{}
	query.Set("limit", strconv.Itoa(params.Limit))
	query.Set("skip", strconv.Itoa(params.Skip))
	endpoint := usersPath
	if q != "" {
		endpoint = usersSearchPath
		query.Set("q", q)
	}

	raw, err := r.read(ctx, key, endpoint, query)
	if err != nil {
		return nil, translateGatewayError(err, false)
	}

	var resp listResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("rest: decode employee list: %w", err)
	}
	if resp.Users == nil {
		resp.Users = []employee.Employee{}
	}
	return &employee.ListResult{
		Employees: resp.Users,
		Total:     resp.Total,
		Skip:      resp.Skip,
		Limit:     resp.Limit,
	}, nil
}

// Get は ID で社員を取得します。
func (r *EmployeeRepository) Get(ctx context.Context, id int) (*employee.Employee, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id: %w", employee.ErrInvalidID)
	}

	raw, err := r.read(ctx, itemCacheKey(id), userPath(id), nil)
	if err != nil {
		return nil, translateGatewayError(err, true)
	}

	var emp employee.Employee
	if err := json.Unmarshal(raw, &emp); err != nil {
		return nil, fmt.Errorf("rest: decode employee %d: %w", id, err)
	}
	return &emp, nil
}

// Create は社員を作成します。
func (r *EmployeeRepository) Create(ctx context.Context, draft employee.Draft) (*employee.Employee, error) {
	var created employee.Employee
	if err := r.gw.Request(ctx, usersAddPath, gateway.Options{
		Method: http.MethodPost,
		Body:   draft,
	}, &created); err != nil {
		return nil, translateGatewayError(err, false)
	}
	return &created, nil
}

// Update は社員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, id int, patch employee.Patch) (*employee.Employee, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id: %w", employee.ErrInvalidID)
	}

	var updated employee.Employee
	if err := r.gw.Request(ctx, userPath(id), gateway.Options{
		Method: http.MethodPut,
		Body:   patch,
	}, &updated); err != nil {
		return nil, translateGatewayError(err, true)
	}
	return &updated, nil
}

// Delete は社員を削除します。
func (r *EmployeeRepository) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("id: %w", employee.ErrInvalidID)
	}

	if err := r.gw.Request(ctx, userPath(id), gateway.Options{Method: http.MethodDelete}, nil); err != nil {
		return translateGatewayError(err, true)
	}
	return nil
}

// read はキャッシュを確認し、なければキャッシュキーと同じキーで API を呼び出して結果を保存します。
func (r *EmployeeRepository) read(ctx context.Context, key, resource string, query url.Values) (json.RawMessage, error) {
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	var raw json.RawMessage
	if err := r.gw.Request(ctx, resource, gateway.Options{Key: key, Query: query}, &raw); err != nil {
		return nil, err
	}
	r.cache.Set(key, raw)
	return raw, nil
}

func listCacheKey(limit, skip int, q string) string {
	return fmt.Sprintf("employees-%d-%d-%s", limit, skip, q)
}

func itemCacheKey(id int) string {
	return fmt.Sprintf("employee-%d", id)
}

func userPath(id int) string {
	return usersPath + "/" + strconv.Itoa(id)
}

func translateGatewayError(err error, byID bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrCanceled) {
		return fmt.Errorf("%w: %w", employee.ErrCanceled, err)
	}
	if byID && gateway.IsNotFound(err) {
		return fmt.Errorf("%w: %w", employee.ErrEmployeeNotFound, err)
	}
	return err
}
