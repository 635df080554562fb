package employee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

type fakeRepo struct {
	mu sync.Mutex

	listResult *ListResult
	listErr    error
	listCalls  []ListParams

	getOut *Employee
	getErr error

	createOut   *Employee
	createErr   error
	createDraft Draft

	updateOut  *Employee
	updateErr  error
	updateHook func()

	deleteErrs  map[int]error
	deleteHook  func(id int)
	deleteCalls []int
}

func (r *fakeRepo) List(_ context.Context, params ListParams) (*ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls = append(r.listCalls, params)
	if r.listErr != nil {
		return nil, r.listErr
	}
	res := *r.listResult
	res.Employees = append([]Employee(nil), r.listResult.Employees...)
	return &res, nil
}

func (r *fakeRepo) Get(_ context.Context, id int) (*Employee, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.getOut, nil
}

func (r *fakeRepo) Create(_ context.Context, d Draft) (*Employee, error) {
	r.createDraft = d
	return r.createOut, r.createErr
}

func (r *fakeRepo) Update(_ context.Context, id int, _ Patch) (*Employee, error) {
	if r.updateHook != nil {
		r.updateHook()
	}
	return r.updateOut, r.updateErr
}

func (r *fakeRepo) Delete(_ context.Context, id int) error {
	if r.deleteHook != nil {
		r.deleteHook(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, id)
	return r.deleteErrs[id]
}

func (r *fakeRepo) setListResult(res *ListResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listResult = res
}

func (r *fakeRepo) listCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listCalls)
}

func seedEmployees() []Employee {
	return []Employee{
		{ID: 1, FirstName: "Emily", LastName: "Johnson", Email: "emily.johnson@x.dummyjson.com", Age: 28,
			Company: Company{Department: "Engineering", Title: "Sales Manager", Name: "Dooley"}},
		{ID: 2, FirstName: "Michael", LastName: "Williams", Email: "michael.williams@x.dummyjson.com", Age: 35,
			Company: Company{Department: "Support", Title: "Support Specialist", Name: "Spinka"}},
		{ID: 3, FirstName: "Sophia", LastName: "Brown", Email: "sophia.brown@x.dummyjson.com", Age: 42,
			Company: Company{Department: "Research", Title: "Research Analyst", Name: "Schiller"}},
	}
}

func newLoadedStore(t *testing.T, repo *fakeRepo, clk *stubClock, opts ...Option) *Store {
	t.Helper()
	if repo.listResult == nil {
		repo.listResult = &ListResult{Employees: seedEmployees(), Total: 208}
	}
	s := NewStore(repo, clk, zaptest.NewLogger(t), opts...)
	if err := s.Load(context.Background(), false); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return s
}

func newClock() *stubClock {
	return &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func ptr[T any](v T) *T {
	return &v
}

func employeeIDs(list []Employee) []int {
	ids := make([]int, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestStore_Load_UsesFreshDataWithoutNetwork(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	clk := newClock()
	s := newLoadedStore(t, repo, clk)

	clk.advance(10 * time.Second)
	if err := s.Load(context.Background(), false); err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if got := repo.listCallCount(); got != 1 {
		t.Fatalf("expected exactly one network call, got %d", got)
	}
	if repo.listCalls[0].Limit != defaultFetchLimit || repo.listCalls[0].Skip != 0 {
		t.Fatalf("unexpected list params: %+v", repo.listCalls[0])
	}

	view := s.View()
	if view.Total != 208 || view.FilteredTotal != 3 || !view.Fetched {
		t.Fatalf("unexpected view after load: %+v", view)
	}
}

func TestStore_Load_RefetchesAfterFreshnessOrForce(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	clk := newClock()
	s := newLoadedStore(t, repo, clk)

	if err := s.Load(context.Background(), true); err != nil {
		t.Fatalf("forced Load returned error: %v", err)
	}
	clk.advance(30 * time.Second)
	if err := s.Load(context.Background(), false); err != nil {
		t.Fatalf("stale Load returned error: %v", err)
	}
	if err := s.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh returned error: %v", err)
	}

	if got := repo.listCallCount(); got != 4 {
		t.Fatalf("expected 4 network calls, got %d", got)
	}
}

func TestStore_Load_FailureSetsErrorAndEmptiesCollection(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	clk := newClock()
	s := newLoadedStore(t, repo, clk)
	if _, err := s.ToggleSelection(1); err != nil {
		t.Fatalf("ToggleSelection returned error: %v", err)
	}

	repo.listErr = errors.New("gateway: GET /users: 500 Internal Server Error")
	err := s.Load(context.Background(), true)
	if err == nil {
		t.Fatal("expected load error to be returned")
	}

	view := s.View()
	if view.Error != repo.listErr.Error() {
		t.Fatalf("expected error message, got %q", view.Error)
	}
	if len(view.Employees) != 0 || view.Loading {
		t.Fatalf("expected empty, idle view, got %+v", view)
	}
	if view.HasSelection {
		t.Fatal("selection must be pruned when the collection empties")
	}
}

func TestStore_Load_CanceledLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newLoadedStore(t, repo, newClock())

	repo.listErr = fmt.Errorf("%w: superseded", ErrCanceled)
	if err := s.Load(context.Background(), true); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}

	view := s.View()
	if view.Error != "" || view.FilteredTotal != 3 || view.Loading {
		t.Fatalf("canceled load must not write state, got %+v", view)
	}
}

func TestStore_Create_PrependsSynthesizedRecord(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{createOut: &Employee{ID: 209}}
	clk := newClock()
	s := newLoadedStore(t, repo, clk)

	created, err := s.Create(context.Background(), Draft{
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Age:       36,
		Gender:    "female",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.ID != 209 {
		t.Fatalf("expected id from response, got %d", created.ID)
	}
	if created.Username != "adalovelace" {
		t.Fatalf("unexpected username %q", created.Username)
	}
	if created.Company.Department != placeholderDepartment || created.Company.Title != placeholderTitle {
		t.Fatalf("unexpected company defaults: %+v", created.Company)
	}
	if created.BloodGroup != "O+" || created.Address.City != "New York" {
		t.Fatalf("unexpected demo defaults: %+v", created)
	}
	if created.Image != "https://dummyjson.com/icon/ada/128" {
		t.Fatalf("unexpected image %q", created.Image)
	}
	wantBirth := clk.Now().Add(-36 * 365 * 24 * time.Hour).Format(birthDateLayout)
	if created.BirthDate != wantBirth {
		t.Fatalf("expected birth date %s, got %s", wantBirth, created.BirthDate)
	}
	if repo.createDraft.FirstName != "Ada" {
		t.Fatalf("expected normalized draft, got %+v", repo.createDraft)
	}

	s.mu.Lock()
	first := s.employees[0]
	total := s.total
	s.mu.Unlock()
	if first.ID != 209 || total != 209 {
		t.Fatalf("expected prepended record and incremented total, got id=%d total=%d", first.ID, total)
	}
}

func TestStore_Create_KeepsIDsUnique(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{createOut: &Employee{ID: 2}}
	s := newLoadedStore(t, repo, newClock())

	created, err := s.Create(context.Background(), Draft{FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != 4 {
		t.Fatalf("expected colliding id to be replaced with 4, got %d", created.ID)
	}
}

func TestStore_Create_Failures(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{createErr: errors.New("boom")}
	s := newLoadedStore(t, repo, newClock())

	if _, err := s.Create(context.Background(), Draft{FirstName: "", LastName: "X"}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := s.Create(context.Background(), Draft{FirstName: "A", LastName: "B", Age: -1}); !errors.Is(err, ErrInvalidAge) {
		t.Fatalf("expected ErrInvalidAge, got %v", err)
	}
	if _, err := s.Create(context.Background(), Draft{FirstName: "A", LastName: "B"}); err == nil {
		t.Fatal("expected repository error")
	}

	view := s.View()
	if view.FilteredTotal != 3 || view.Total != 208 || view.Loading {
		t.Fatalf("failed create must not touch state, got %+v", view)
	}
}

func TestStore_Update_OptimisticMergeKeptOnSuccess(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{updateOut: &Employee{ID: 1, FirstName: "Server"}}
	s := newLoadedStore(t, repo, newClock())

	var duringCall Employee
	repo.updateHook = func() {
		s.mu.Lock()
		duringCall = s.employees[s.indexLocked(1)]
		s.mu.Unlock()
	}

	resp, err := s.Update(context.Background(), 1, Patch{FirstName: ptr("Emma"), Department: ptr(""), Title: ptr("Lead")})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if resp.FirstName != "Server" {
		t.Fatalf("expected server response to be returned, got %+v", resp)
	}
	if duringCall.FirstName != "Emma" {
		t.Fatal("expected optimistic update to be visible before the call resolves")
	}

	local, err := s.Lookup(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if local.FirstName != "Emma" || local.Company.Title != "Lead" || local.Company.Department != "Engineering" {
		t.Fatalf("unexpected local record after update: %+v", local)
	}
}

func TestStore_Update_RollbackRestoresSnapshot(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{updateErr: errors.New("gateway: PUT /users/2: 500")}
	s := newLoadedStore(t, repo, newClock())
	before, _ := s.Lookup(context.Background(), 2)

	for i := 0; i < 3; i++ {
		_, err := s.Update(context.Background(), 2, Patch{
			FirstName:  ptr(fmt.Sprintf("Changed%d", i)),
			Age:        ptr(99),
			Department: ptr("Ops"),
		})
		if !errors.Is(err, repo.updateErr) {
			t.Fatalf("expected repository error, got %v", err)
		}
	}

	after, _ := s.Lookup(context.Background(), 2)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected exact snapshot after rollback.\nbefore: %+v\nafter:  %+v", before, after)
	}
	if s.View().Loading {
		t.Fatal("loading flag must clear after a failed update")
	}
}

func TestStore_Update_NotFoundBeforeIO(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newLoadedStore(t, repo, newClock())
	called := false
	repo.updateHook = func() { called = true }

	if _, err := s.Update(context.Background(), 404, Patch{}); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
	if _, err := s.Update(context.Background(), 0, Patch{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if called {
		t.Fatal("no network call expected for local validation errors")
	}
}

func TestStore_Remove_Success(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newLoadedStore(t, repo, newClock())
	if _, err := s.ToggleSelection(2); err != nil {
		t.Fatalf("ToggleSelection returned error: %v", err)
	}

	if err := s.Remove(context.Background(), 2); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	view := s.View()
	if got := employeeIDs(view.Employees); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("unexpected ids after remove: %v", got)
	}
	if view.Total != 207 {
		t.Fatalf("expected total 207, got %d", view.Total)
	}
	if view.HasSelection {
		t.Fatal("removed employee must leave the selection")
	}
}

func TestStore_Remove_RollbackRestoresIndexAndTotal(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{deleteErrs: map[int]error{2: errors.New("network down")}}
	s := newLoadedStore(t, repo, newClock())

	var duringCall []int
	repo.deleteHook = func(int) {
		s.mu.Lock()
		duringCall = employeeIDs(s.employees)
		s.mu.Unlock()
	}

	if err := s.Remove(context.Background(), 2); err == nil {
		t.Fatal("expected remove error")
	}

	if !reflect.DeepEqual(duringCall, []int{1, 3}) {
		t.Fatalf("expected optimistic removal before the call resolves, got %v", duringCall)
	}
	s.mu.Lock()
	ids := employeeIDs(s.employees)
	total := s.total
	s.mu.Unlock()
	if !reflect.DeepEqual(ids, []int{1, 2, 3}) {
		t.Fatalf("expected record back at original index, got %v", ids)
	}
	if total != 208 {
		t.Fatalf("expected total restored to 208, got %d", total)
	}

	if err := s.Remove(context.Background(), 77); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestStore_BulkRemove_TotalFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listResult: &ListResult{Employees: []Employee{{ID: 1, FirstName: "A"}, {ID: 2, FirstName: "B"}}, Total: 2},
		deleteErrs: map[int]error{1: errors.New("network down")},
	}
	s := newLoadedStore(t, repo, newClock())
	original := append([]Employee(nil), s.employees...)

	res, err := s.BulkRemove(context.Background(), []int{1})
	if err == nil || res != nil {
		t.Fatalf("expected rollback error, got res=%+v err=%v", res, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !reflect.DeepEqual(s.employees, original) {
		t.Fatalf("expected original collection, got %+v", s.employees)
	}
	if s.total != 2 {
		t.Fatalf("expected original total 2, got %d", s.total)
	}
}

func TestStore_BulkRemove_PartialFailureTolerated(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{deleteErrs: map[int]error{3: errors.New("not allowed")}}
	s := newLoadedStore(t, repo, newClock())
	if _, err := s.ToggleSelection(1); err != nil {
		t.Fatalf("ToggleSelection returned error: %v", err)
	}

	res, err := s.BulkRemove(context.Background(), []int{2, 3, 3})
	if err != nil {
		t.Fatalf("BulkRemove returned error: %v", err)
	}
	if !reflect.DeepEqual(res.Deleted, []int{2}) || !reflect.DeepEqual(res.Failed, []int{3}) {
		t.Fatalf("unexpected result: %+v", res)
	}

	view := s.View()
	if got := employeeIDs(view.Employees); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("expected only id 1 to remain, got %v", got)
	}
	if view.Total != 206 {
		t.Fatalf("expected total decremented by 2, got %d", view.Total)
	}
	if view.HasSelection {
		t.Fatal("bulk remove clears the whole selection")
	}
	if len(repo.deleteCalls) != 2 {
		t.Fatalf("expected one delete per unique id, got %v", repo.deleteCalls)
	}
}

func TestStore_BulkRemove_CanceledContextRollsBack(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newLoadedStore(t, repo, newClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.BulkRemove(ctx, []int{1, 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := s.View().FilteredTotal; got != 3 {
		t.Fatalf("expected collection restored, got %d records", got)
	}
	if len(repo.deleteCalls) != 0 {
		t.Fatalf("expected no delete calls, got %v", repo.deleteCalls)
	}
}

func TestStore_Remove_FailureAfterReloadKeepsServerState(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{deleteErrs: map[int]error{2: errors.New("network down")}}
	s := newLoadedStore(t, repo, newClock())
	repo.deleteHook = func(int) {
		if err := s.Load(context.Background(), true); err != nil {
			t.Errorf("Load returned error: %v", err)
		}
	}

	if err := s.Remove(context.Background(), 2); err == nil {
		t.Fatal("expected remove error")
	}

	s.mu.Lock()
	ids := employeeIDs(s.employees)
	total := s.total
	s.mu.Unlock()
	if !reflect.DeepEqual(ids, []int{1, 2, 3}) {
		t.Fatalf("expected reloaded collection without duplicates, got %v", ids)
	}
	if total != 208 {
		t.Fatalf("expected server total 208, got %d", total)
	}
}

func TestStore_Update_FailureAfterReloadKeepsServerState(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{updateErr: errors.New("gateway: PUT /users/1: 500")}
	s := newLoadedStore(t, repo, newClock())
	repo.updateHook = func() {
		fresh := seedEmployees()
		fresh[0].Email = "fresh@server"
		repo.setListResult(&ListResult{Employees: fresh, Total: 208})
		if err := s.Load(context.Background(), true); err != nil {
			t.Errorf("Load returned error: %v", err)
		}
	}

	if _, err := s.Update(context.Background(), 1, Patch{Email: ptr("local@edit")}); !errors.Is(err, repo.updateErr) {
		t.Fatalf("expected repository error, got %v", err)
	}

	got, err := s.Lookup(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got.Email != "fresh@server" {
		t.Fatalf("expected reloaded email to survive the failed update, got %q", got.Email)
	}
}

func TestStore_BulkRemove_FailureAfterReloadKeepsServerState(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{deleteErrs: map[int]error{
		1: errors.New("network down"),
		2: errors.New("network down"),
	}}
	s := newLoadedStore(t, repo, newClock())
	var once sync.Once
	repo.deleteHook = func(int) {
		once.Do(func() {
			fresh := append(seedEmployees(), Employee{ID: 4, FirstName: "Liam"})
			repo.setListResult(&ListResult{Employees: fresh, Total: 300})
			if err := s.Load(context.Background(), true); err != nil {
				t.Errorf("Load returned error: %v", err)
			}
		})
	}

	if _, err := s.BulkRemove(context.Background(), []int{1, 2}); err == nil {
		t.Fatal("expected bulk remove error")
	}

	s.mu.Lock()
	ids := employeeIDs(s.employees)
	total := s.total
	s.mu.Unlock()
	if !reflect.DeepEqual(ids, []int{1, 2, 3, 4}) {
		t.Fatalf("expected reloaded collection, got %v", ids)
	}
	if total != 300 {
		t.Fatalf("expected reloaded total 300, got %d", total)
	}
}

func TestStore_SetSortField_AcceptsFieldsOutsideKnownSchema(t *testing.T) {
	t.Parallel()

	height := func(v string) map[string]json.RawMessage {
		return map[string]json.RawMessage{
			"height": json.RawMessage(v),
			"hair":   json.RawMessage(`{"color":"Brown"}`),
		}
	}
	repo := &fakeRepo{listResult: &ListResult{Employees: []Employee{
		{ID: 1, FirstName: "Emily", Extra: height("193.24")},
		{ID: 2, FirstName: "Michael", Extra: height("160.5")},
		{ID: 3, FirstName: "Sophia"},
	}, Total: 3}}
	s := newLoadedStore(t, repo, newClock())

	if err := s.SetSortField("height"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}
	view := s.View()
	if got := employeeIDs(view.Employees); !reflect.DeepEqual(got, []int{2, 1, 3}) {
		t.Fatalf("expected ascending height with missing last, got %v", got)
	}
	if string(view.Employees[0].Extra["height"]) != "160.5" {
		t.Fatalf("expected extra fields in the view, got %+v", view.Employees[0].Extra)
	}

	if err := s.SetSortField("hair.color"); err != nil {
		t.Fatalf("SetSortField(hair.color) returned error: %v", err)
	}
	if err := s.SetSortField("hair"); !errors.Is(err, ErrInvalidSortField) {
		t.Fatalf("expected ErrInvalidSortField for object field, got %v", err)
	}
	if err := s.SetSortField("weight"); !errors.Is(err, ErrInvalidSortField) {
		t.Fatalf("expected ErrInvalidSortField for absent field, got %v", err)
	}
}

func TestStore_SetSortField_TogglesDirection(t *testing.T) {
	t.Parallel()

	s := newLoadedStore(t, &fakeRepo{}, newClock())

	if err := s.SetSortField("email"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}
	if st := s.ViewState(); st.SortField != "email" || st.SortDirection != Ascending {
		t.Fatalf("expected email asc, got %+v", st)
	}
	if err := s.SetSortField("email"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}
	if st := s.ViewState(); st.SortDirection != Descending {
		t.Fatalf("expected desc after second call, got %+v", st)
	}
	if err := s.SetSortField("company.title"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}
	if st := s.ViewState(); st.SortDirection != Ascending {
		t.Fatalf("expected new field to reset to asc, got %+v", st)
	}
	if err := s.SetSortField("company"); !errors.Is(err, ErrInvalidSortField) {
		t.Fatalf("expected ErrInvalidSortField for object path, got %v", err)
	}
}

func TestStore_ViewPipeline(t *testing.T) {
	t.Parallel()

	s := newLoadedStore(t, &fakeRepo{}, newClock(), WithPageSize(2))

	if err := s.SetSortField("age"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}
	if err := s.SetSortField("age"); err != nil {
		t.Fatalf("SetSortField returned error: %v", err)
	}

	view := s.View()
	if got := employeeIDs(view.Employees); !reflect.DeepEqual(got, []int{3, 2}) {
		t.Fatalf("expected oldest first on page 1, got %v", got)
	}
	if view.TotalPages != 2 {
		t.Fatalf("expected 2 pages, got %d", view.TotalPages)
	}

	if err := s.SetPage(2); err != nil {
		t.Fatalf("SetPage returned error: %v", err)
	}
	if got := employeeIDs(s.View().Employees); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("unexpected page 2: %v", got)
	}

	s.SetSearchQuery("RESEARCH")
	view = s.View()
	if view.Page != 1 || !reflect.DeepEqual(employeeIDs(view.Employees), []int{3}) {
		t.Fatalf("expected search to reset page and filter, got %+v", view)
	}

	if err := s.SetPage(0); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	if err := s.SetPageSize(0); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestStore_Selection(t *testing.T) {
	t.Parallel()

	s := newLoadedStore(t, &fakeRepo{}, newClock(), WithPageSize(2))

	selected, err := s.ToggleSelection(3)
	if err != nil || !selected {
		t.Fatalf("expected id 3 selected, got %t %v", selected, err)
	}
	selected, err = s.ToggleSelection(3)
	if err != nil || selected {
		t.Fatalf("expected id 3 deselected, got %t %v", selected, err)
	}
	if _, err := s.ToggleSelection(99); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	s.SelectAllVisible()
	if got := s.Selected(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("expected visible page selected, got %v", got)
	}

	s.ClearSelection()
	if got := s.Selected(); len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}
}

func TestStore_Lookup_FallsBackToRepository(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{getOut: &Employee{ID: 150, FirstName: "Remote"}}
	s := newLoadedStore(t, repo, newClock())

	got, err := s.Lookup(context.Background(), 150)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got.FirstName != "Remote" {
		t.Fatalf("expected remote record, got %+v", got)
	}

	local, err := s.Lookup(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	local.FirstName = "mutated"
	again, _ := s.Lookup(context.Background(), 1)
	if again.FirstName != "Emily" {
		t.Fatal("Lookup must return a copy, not an alias into the store")
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newLoadedStore(t, repo, newClock())
	s.SetSearchQuery("x")
	s.Reset()

	view := s.View()
	if view.Fetched || view.Total != 0 || view.SearchQuery != "" || view.SortField != defaultSortField {
		t.Fatalf("unexpected view after reset: %+v", view)
	}
	if err := s.Load(context.Background(), false); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if repo.listCallCount() != 2 {
		t.Fatalf("expected reset to drop freshness, got %d calls", repo.listCallCount())
	}
}
