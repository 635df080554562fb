package employee

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

const (
	defaultFetchLimit      = 30
	defaultFreshness       = 30 * time.Second
	defaultAvatarBaseURL   = "https://dummyjson.com"
	defaultBulkConcurrency = 8
	birthDateLayout        = "2006-01-02"
)

// 作成 API が返さない項目を補うためのデモ用既定値です。
const (
	placeholderDepartment = "New Department"
	placeholderTitle      = "New Employee"
	placeholderCompany    = "Your Company"
	placeholderStreet     = "123 Main St"
	placeholderCity       = "New York"
	placeholderState      = "NY"
	placeholderCountry    = "USA"
	placeholderBloodGroup = "O+"
	placeholderRole       = "user"
)

// Option は Store の構築オプションです。
type Option func(*Store)

// WithFetchLimit は Load で一度に取得する件数を設定します。
func WithFetchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// WithPageSize は初期表示件数を設定します。
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithFreshness は取得済みデータを再利用する期間を設定します。
func WithFreshness(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithAvatarBaseURL は作成した社員のアイコン URL の起点を設定します。
func WithAvatarBaseURL(base string) Option {
	return func(s *Store) {
		if trimmed := strings.TrimSpace(base); trimmed != "" {
			s.avatarBaseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithBulkConcurrency は一括削除時の同時リクエスト数の上限を設定します。
func WithBulkConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

// Store はアプリケーションセッション中の社員一覧、選択状態、表示条件を保持し、
// 楽観的な変更と失敗時の巻き戻しを行います。
// ロックは通信中には保持せず、不変条件 (ID の一意性、選択 ⊆ 一覧) を回復してから解放します。
type Store struct {
	repo   Repository
	clock  Clock
	logger *zap.Logger

	fetchLimit      int
	pageSize        int
	freshness       time.Duration
	avatarBaseURL   string
	bulkConcurrency int

	watchers *watchers

	mu        sync.Mutex
	employees []Employee
	total     int
	selected  map[int]struct{}
	view      ViewState
	loading   int
	errMsg    string
	fetched   bool
	lastFetch time.Time
	// generation は一覧をサーバーの結果で置き換えるたびに進みます。
	generation uint64
}

// BulkRemoveResult は一括削除の結果です。
type BulkRemoveResult struct {
	Deleted []int
	Failed  []int
}

// NewStore は Store を生成します。
func NewStore(repo Repository, clock Clock, logger *zap.Logger, opts ...Option) *Store {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		repo:            repo,
		clock:           clock,
		logger:          logger.Named("store"),
		fetchLimit:      defaultFetchLimit,
		pageSize:        defaultPageSize,
		freshness:       defaultFreshness,
		avatarBaseURL:   defaultAvatarBaseURL,
		bulkConcurrency: defaultBulkConcurrency,
		watchers:        newWatchers(),
		selected:        make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view = defaultViewState(s.pageSize)
	return s
}

// Load は社員一覧を取得して置き換えます。取得済みかつ鮮度期間内であれば forceRefresh が false の間は何もしません。
// 失敗はエラーメッセージとして保持され、一覧は空になります。中断された取得は状態を変更しません。
func (s *Store) Load(ctx context.Context, forceRefresh bool) error {
	s.mu.Lock()
	if !forceRefresh && s.isFreshLocked() {
		s.mu.Unlock()
		s.logger.Debug("using cached employee data")
		return nil
	}
	s.loading++
	s.errMsg = ""
	limit := s.fetchLimit
	s.mu.Unlock()

	result, err := s.repo.List(ctx, ListParams{Limit: limit})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--

	switch {
	case err == nil:
		s.employees = uniqueByID(result.Employees)
		s.total = result.Total
		s.generation++
		s.fetched = true
		s.lastFetch = s.clock.Now()
		s.pruneSelectionLocked()
		s.watchers.send(Event{Type: EventLoaded})
		s.logger.Info("loaded employees", zap.Int("count", len(s.employees)), zap.Int("total", s.total))
		return nil
	case isCanceled(err):
		s.logger.Debug("employee load superseded", zap.Error(err))
		return err
	default:
		s.errMsg = err.Error()
		s.employees = nil
		s.generation++
		s.pruneSelectionLocked()
		s.watchers.send(Event{Type: EventLoadFailed})
		s.logger.Warn("failed to load employees", zap.Error(err))
		return err
	}
}

// ForceRefresh は鮮度情報を破棄して一覧を再取得します。
func (s *Store) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	s.fetched = false
	s.lastFetch = time.Time{}
	s.mu.Unlock()
	return s.Load(ctx, true)
}

// Create は社員を作成し、API が返さない項目を補ったレコードを一覧の先頭に追加します。
func (s *Store) Create(ctx context.Context, draft Draft) (*Employee, error) {
	normalized, err := normalizeDraft(draft)
	if err != nil {
		return nil, err
	}

	s.beginPending()
	created, err := s.repo.Create(ctx, normalized)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.logger.Warn("failed to add employee", zap.Error(err))
		return nil, err
	}

	emp := s.synthesize(normalized, created)
	emp.ID = s.uniqueIDLocked(emp.ID)
	s.employees = slices.Insert(s.employees, 0, emp)
	s.total++
	s.watchers.send(Event{Type: EventCreated, IDs: []int{emp.ID}})
	s.logger.Info("employee added to local state", zap.Int("id", emp.ID))

	out := emp.Clone()
	return &out, nil
}

// Update は社員を楽観的に更新してから API を呼び出します。
// 失敗した場合は更新前のスナップショットで丸ごと置き換えてからエラーを返します。
// 呼び出し中に一覧が再取得されていた場合は、新しい一覧を優先して置き換えません。
// 成功時はサーバーのレスポンスを返し、ローカルのマージ結果はそのまま維持します。
func (s *Store) Update(ctx context.Context, id int, patch Patch) (*Employee, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("id %d: %w", id, ErrEmployeeNotFound)
	}
	snapshot := s.employees[idx].Clone()
	gen := s.generation
	s.employees[idx] = patch.apply(s.employees[idx])
	s.loading++
	s.watchers.send(Event{Type: EventUpdated, IDs: []int{id}})
	s.mu.Unlock()

	updated, err := s.repo.Update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		if s.generation != gen {
			s.logger.Warn("failed to update employee, keeping reloaded state", zap.Int("id", id), zap.Error(err))
			return nil, err
		}
		if i := s.indexLocked(id); i >= 0 {
			s.employees[i] = snapshot
		}
		s.watchers.send(Event{Type: EventRolledBack, IDs: []int{id}})
		s.logger.Warn("failed to update employee, rolled back", zap.Int("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("employee updated", zap.Int("id", id))
	return updated, nil
}

// Remove は社員を楽観的に一覧から取り除いてから API を呼び出します。
// 失敗した場合は元の位置に戻し、総件数も元に戻してからエラーを返します。
// 呼び出し中に一覧が再取得されていた場合は再取得の結果をそのまま残します。
func (s *Store) Remove(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("id %d: %w", id, ErrEmployeeNotFound)
	}
	snapshot := s.employees[idx].Clone()
	gen := s.generation
	s.employees = slices.Delete(s.employees, idx, idx+1)
	s.total = max(0, s.total-1)
	delete(s.selected, id)
	s.watchers.send(Event{Type: EventRemoved, IDs: []int{id}})
	s.mu.Unlock()

	err := s.repo.Delete(ctx, id)
	if err == nil {
		s.logger.Info("employee removed", zap.Int("id", id))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Warn("failed to remove employee, keeping reloaded state", zap.Int("id", id), zap.Error(err))
		return err
	}
	if s.indexLocked(id) < 0 {
		at := min(idx, len(s.employees))
		s.employees = slices.Insert(s.employees, at, snapshot)
		s.total++
	}
	s.watchers.send(Event{Type: EventRolledBack, IDs: []int{id}})
	s.logger.Warn("failed to remove employee, rolled back", zap.Int("id", id), zap.Error(err))
	return err
}

// BulkRemove は ids に一致する社員をまとめて取り除き、選択状態をすべて解除してから
// 削除リクエストを並行に発行します。一部の削除失敗は許容し結果に含めます。
// すべての削除が失敗した場合、または発行前に ctx が終了していた場合は一覧と総件数を元に戻します。
// ただし途中で一覧が再取得されていた場合は戻しません。
func (s *Store) BulkRemove(ctx context.Context, ids []int) (*BulkRemoveResult, error) {
	targets := uniqueIDs(ids)
	if len(targets) == 0 {
		return &BulkRemoveResult{}, nil
	}
	want := make(map[int]struct{}, len(targets))
	for _, id := range targets {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	originalEmployees := slices.Clone(s.employees)
	originalTotal := s.total
	gen := s.generation
	kept := make([]Employee, 0, len(s.employees))
	removed := 0
	for _, e := range s.employees {
		if _, ok := want[e.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.employees = kept
	s.total = max(0, s.total-removed)
	clear(s.selected)
	s.watchers.send(Event{Type: EventRemoved, IDs: targets})
	s.mu.Unlock()

	rollback := func(cause error) (*BulkRemoveResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			s.logger.Warn("bulk delete failed, keeping reloaded state", zap.Ints("ids", targets), zap.Error(cause))
			return nil, fmt.Errorf("employee: bulk remove: %w", cause)
		}
		s.employees = originalEmployees
		s.total = originalTotal
		s.pruneSelectionLocked()
		s.watchers.send(Event{Type: EventRolledBack, IDs: targets})
		s.logger.Warn("bulk delete failed, rolled back", zap.Ints("ids", targets), zap.Error(cause))
		return nil, fmt.Errorf("employee: bulk remove: %w", cause)
	}

	if err := ctx.Err(); err != nil {
		return rollback(err)
	}

	var (
		mu       sync.Mutex
		failures = make(map[int]error)
	)
	g := new(errgroup.Group)
	g.SetLimit(s.bulkConcurrency)
	for _, id := range targets {
		g.Go(func() error {
			if err := s.repo.Delete(ctx, id); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkRemoveResult{}
	errs := make([]error, 0, len(failures))
	for _, id := range targets {
		if err, ok := failures[id]; ok {
			result.Failed = append(result.Failed, id)
			errs = append(errs, fmt.Errorf("id %d: %w", id, err))
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	if len(result.Deleted) == 0 {
		return rollback(errors.Join(errs...))
	}
	if len(result.Failed) > 0 {
		s.logger.Warn("bulk delete partially failed", zap.Ints("failed", result.Failed), zap.Error(errors.Join(errs...)))
	} else {
		s.logger.Info("bulk delete completed", zap.Ints("ids", result.Deleted))
	}
	return result, nil
}

// Lookup はローカルの一覧から社員を探し、存在しなければ API から取得します。
func (s *Store) Lookup(ctx context.Context, id int) (*Employee, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	s.mu.Lock()
	if idx := s.indexLocked(id); idx >= 0 {
		found := s.employees[idx].Clone()
		s.mu.Unlock()
		return &found, nil
	}
	s.mu.Unlock()
	return s.repo.Get(ctx, id)
}

// View は現在の一覧から検索・ソート・ページングを適用した派生ビューを返します。
func (s *Store) View() PageView {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, filteredTotal := render(s.employees, s.view)
	selected := s.selectedLocked()
	return PageView{
		Employees:     page,
		Page:          s.view.Page,
		PageSize:      s.view.PageSize,
		TotalPages:    TotalPages(filteredTotal, s.view.PageSize),
		FilteredTotal: filteredTotal,
		Total:         s.total,
		SearchQuery:   s.view.SearchQuery,
		SortField:     s.view.SortField,
		SortDirection: s.view.SortDirection,
		Selected:      selected,
		HasSelection:  len(selected) > 0,
		Loading:       s.loading > 0,
		Error:         s.errMsg,
		Fetched:       s.fetched,
	}
}

// ViewState は現在の表示条件を返します。
func (s *Store) ViewState() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetSearchQuery は検索語を設定し、先頭ページに戻します。
func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SearchQuery = query
	s.view.Page = 1
	s.watchers.send(Event{Type: EventViewChanged})
}

// SetSortField は同じ項目であればソート方向を反転し、異なる項目であれば昇順で切り替えます。
func (s *Store) SetSortField(field string) error {
	field = strings.TrimSpace(field)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !IsSortable(field, s.employees...) {
		return fmt.Errorf("%q: %w", field, ErrInvalidSortField)
	}
	if s.view.SortField == field {
		s.view.SortDirection = s.view.SortDirection.Toggle()
	} else {
		s.view.SortField = field
		s.view.SortDirection = Ascending
	}
	s.watchers.send(Event{Type: EventViewChanged})
	return nil
}

// SetPage は 1 始まりの表示ページを設定します。
func (s *Store) SetPage(page int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Page = page
	s.watchers.send(Event{Type: EventViewChanged})
	return nil
}

// SetPageSize は 1 ページあたりの表示件数を設定し、先頭ページに戻します。
func (s *Store) SetPageSize(size int) error {
	if size < 1 {
		return ErrInvalidPageSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.PageSize = size
	s.view.Page = 1
	s.watchers.send(Event{Type: EventViewChanged})
	return nil
}

// ToggleSelection は社員の選択状態を反転し、反転後に選択されているかを返します。
func (s *Store) ToggleSelection(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false, fmt.Errorf("id %d: %w", id, ErrEmployeeNotFound)
	}
	_, was := s.selected[id]
	if was {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	s.watchers.send(Event{Type: EventSelectionChanged, IDs: []int{id}})
	return !was, nil
}

// SelectAllVisible は現在のページに表示されている社員をすべて選択します。
func (s *Store) SelectAllVisible() {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, _ := render(s.employees, s.view)
	ids := make([]int, 0, len(page))
	for _, e := range page {
		s.selected[e.ID] = struct{}{}
		ids = append(ids, e.ID)
	}
	s.watchers.send(Event{Type: EventSelectionChanged, IDs: ids})
}

// ClearSelection は選択状態をすべて解除します。
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
	s.watchers.send(Event{Type: EventSelectionChanged})
}

// Selected は選択中の社員 ID を昇順で返します。
func (s *Store) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

// Reset はストアを構築直後の状態に戻します。ウォッチャーは維持されます。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = nil
	s.total = 0
	clear(s.selected)
	s.view = defaultViewState(s.pageSize)
	s.errMsg = ""
	s.fetched = false
	s.lastFetch = time.Time{}
	s.generation++
	s.watchers.send(Event{Type: EventReset})
}

func (s *Store) beginPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
}

func (s *Store) isFreshLocked() bool {
	if !s.fetched || s.lastFetch.IsZero() {
		return false
	}
	return s.clock.Now().Sub(s.lastFetch) < s.freshness
}

func (s *Store) indexLocked(id int) int {
	return slices.IndexFunc(s.employees, func(e Employee) bool { return e.ID == id })
}

func (s *Store) selectedLocked() []int {
	ids := make([]int, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// pruneSelectionLocked は一覧に存在しない ID を選択から取り除きます。
func (s *Store) pruneSelectionLocked() {
	if len(s.selected) == 0 {
		return
	}
	present := make(map[int]struct{}, len(s.employees))
	for _, e := range s.employees {
		present[e.ID] = struct{}{}
	}
	for id := range s.selected {
		if _, ok := present[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// uniqueIDLocked は一覧内で衝突しない ID を返します。
func (s *Store) uniqueIDLocked(id int) int {
	if id > 0 && s.indexLocked(id) < 0 {
		return id
	}
	next := 1
	for _, e := range s.employees {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}

func (s *Store) synthesize(draft Draft, created *Employee) Employee {
	now := s.clock.Now().UTC()

	id := 0
	if created != nil {
		id = created.ID
	}
	if id <= 0 {
		id = int(now.UnixMilli())
	}

	first := strings.ToLower(draft.FirstName)
	birth := now.Add(-time.Duration(draft.Age) * 365 * 24 * time.Hour)

	return Employee{
		ID:         id,
		FirstName:  draft.FirstName,
		LastName:   draft.LastName,
		Email:      draft.Email,
		Phone:      draft.Phone,
		Age:        draft.Age,
		Gender:     draft.Gender,
		Image:      fmt.Sprintf("%s/icon/%s/128", s.avatarBaseURL, first),
		Username:   first + strings.ToLower(draft.LastName),
		BirthDate:  birth.Format(birthDateLayout),
		BloodGroup: placeholderBloodGroup,
		Role:       placeholderRole,
		Company: Company{
			Department: placeholderDepartment,
			Title:      placeholderTitle,
			Name:       placeholderCompany,
		},
		Address: Address{
			Address: placeholderStreet,
			City:    placeholderCity,
			State:   placeholderState,
			Country: placeholderCountry,
		},
	}
}

func normalizeDraft(d Draft) (Draft, error) {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Gender = strings.TrimSpace(d.Gender)
	if d.FirstName == "" || d.LastName == "" {
		return Draft{}, ErrInvalidName
	}
	if d.Age < 0 {
		return Draft{}, ErrInvalidAge
	}
	return d, nil
}

func uniqueByID(employees []Employee) []Employee {
	seen := make(map[int]struct{}, len(employees))
	out := make([]Employee, 0, len(employees))
	for _, e := range employees {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
