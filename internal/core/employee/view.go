package employee

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction はソート方向です。
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

const (
	defaultSortField = "firstName"
	defaultPageSize  = 10
)

// Toggle は反対のソート方向を返します。
func (d Direction) Toggle() Direction {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// ViewState は一覧表示の条件です。
type ViewState struct {
	SearchQuery   string
	SortField     string
	SortDirection Direction
	Page          int
	PageSize      int
}

func defaultViewState(pageSize int) ViewState {
	return ViewState{
		SortField:     defaultSortField,
		SortDirection: Ascending,
		Page:          1,
		PageSize:      pageSize,
	}
}

// PageView は UI が参照する派生ビューです。Employees は呼び出し元が自由に変更できるコピーです。
type PageView struct {
	Employees     []Employee `json:"employees"`
	Page          int        `json:"page"`
	PageSize      int        `json:"pageSize"`
	TotalPages    int        `json:"totalPages"`
	FilteredTotal int        `json:"filteredTotal"`
	Total         int        `json:"total"`
	SearchQuery   string     `json:"searchQuery"`
	SortField     string     `json:"sortField"`
	SortDirection Direction  `json:"sortDirection"`
	Selected      []int      `json:"selected"`
	HasSelection  bool       `json:"hasSelection"`
	Loading       bool       `json:"loading"`
	Error         string     `json:"error,omitempty"`
	Fetched       bool       `json:"fetched"`
}

// Filter は氏名・メール・部署・役職のいずれかに query を大文字小文字を区別せず含む社員を返します。
func Filter(employees []Employee, query string) []Employee {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return slices.Clone(employees)
	}

	fold := cases.Fold()
	needle := fold.String(trimmed)

	filtered := make([]Employee, 0, len(employees))
	for _, e := range employees {
		for _, field := range []string{e.FirstName, e.LastName, e.Email, e.Company.Department, e.Company.Title} {
			if strings.Contains(fold.String(field), needle) {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}

type sortKey struct {
	kind gjson.Type
	str  string
	num  float64
}

func (k sortKey) missing() bool {
	return k.kind == gjson.Null
}

// Sort は field (ドット区切りの JSON パス) と dir に従って安定ソートした新しいスライスを返します。
// 文字列はロケールを考慮し大文字小文字を無視して比較し、数値は数値として比較します。値のない社員は方向に関係なく末尾に並びます。
func Sort(employees []Employee, field string, dir Direction) []Employee {
	type keyed struct {
		emp Employee
		key sortKey
	}

	items := make([]keyed, 0, len(employees))
	for _, e := range employees {
		items = append(items, keyed{emp: e, key: extractSortKey(e, field)})
	}

	collator := collate.New(language.Und, collate.IgnoreCase)
	sign := 1
	if dir == Descending {
		sign = -1
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.key.missing() && b.key.missing():
			return 0
		case a.key.missing():
			return 1
		case b.key.missing():
			return -1
		}
		return sign * compareKeys(collator, a.key, b.key)
	})

	sorted := make([]Employee, len(items))
	for i, it := range items {
		sorted[i] = it.emp
	}
	return sorted
}

func extractSortKey(e Employee, field string) sortKey {
	raw, err := json.Marshal(e)
	if err != nil {
		return sortKey{kind: gjson.Null}
	}
	res := gjson.GetBytes(raw, field)
	switch res.Type {
	case gjson.String:
		return sortKey{kind: gjson.String, str: res.Str}
	case gjson.Number:
		return sortKey{kind: gjson.Number, num: res.Num}
	case gjson.True, gjson.False:
		k := sortKey{kind: gjson.False}
		if res.Type == gjson.True {
			k.kind, k.num = gjson.True, 1
		}
		return k
	case gjson.JSON:
		return sortKey{kind: gjson.JSON, str: res.Raw}
	default:
		return sortKey{kind: gjson.Null}
	}
}

func compareKeys(collator *collate.Collator, a, b sortKey) int {
	switch {
	case a.kind == gjson.String && b.kind == gjson.String:
		return collator.CompareString(a.str, b.str)
	case isNumeric(a) && isNumeric(b):
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	case a.kind != b.kind:
		return int(a.kind) - int(b.kind)
	default:
		return strings.Compare(a.str, b.str)
	}
}

func isNumeric(k sortKey) bool {
	return k.kind == gjson.Number || k.kind == gjson.True || k.kind == gjson.False
}

// Paginate は 1 始まりの page に該当する要素を返します。
func Paginate(employees []Employee, page, pageSize int) []Employee {
	if page < 1 || pageSize < 1 {
		return []Employee{}
	}
	start := (page - 1) * pageSize
	if start >= len(employees) {
		return []Employee{}
	}
	end := min(start+pageSize, len(employees))
	return slices.Clone(employees[start:end])
}

// TotalPages は n 件を pageSize 件ずつ表示した場合のページ数を返します。
func TotalPages(n, pageSize int) int {
	if pageSize < 1 || n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

var zeroRecord = func() []byte {
	raw, _ := json.Marshal(Employee{})
	return raw
}()

// IsSortable は field が社員レコード上のスカラー値を指すパスかどうかを判定します。
// 既知の項目に加え、records のいずれかがスカラー値を持つパスも受け付けます。
func IsSortable(field string, records ...Employee) bool {
	if strings.TrimSpace(field) == "" {
		return false
	}
	if isScalarAt(zeroRecord, field) {
		return true
	}
	for _, e := range records {
		raw, err := json.Marshal(e)
		if err == nil && isScalarAt(raw, field) {
			return true
		}
	}
	return false
}

func isScalarAt(raw []byte, field string) bool {
	res := gjson.GetBytes(raw, field)
	return res.Exists() && res.Type != gjson.JSON
}

func render(employees []Employee, state ViewState) (page []Employee, filteredTotal int) {
	filtered := Filter(employees, state.SearchQuery)
	sorted := Sort(filtered, state.SortField, state.SortDirection)
	return Paginate(sorted, state.Page, state.PageSize), len(filtered)
}
