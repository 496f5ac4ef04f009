package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/mealplan/internal/auth"
	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/health"
	"example.com/mealplan/internal/outbox"
	"example.com/mealplan/internal/syncer"
)

func TestCreateRecipeSuccess(t *testing.T) {
	store := &mockStore{}
	handler := newTestHandler(store, nil)

	body := `{"name":"Chicken Rice Bowl","tags":["high-protein"],"macros":{"calories":650,"protein_g":45},"prep_minutes":25,"ingredients":[{"name":"chicken breast","quantity":180,"unit":"g"}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/recipes", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.recipes(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp RecipeView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RecipeID == "" {
		t.Fatal("expected generated recipe id")
	}
	if resp.Macros.Calories != 650 {
		t.Fatalf("expected 650 calories got %d", resp.Macros.Calories)
	}
	if store.upserted == nil {
		t.Fatal("recipe was not persisted")
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	body := `{"name":"","macros":{"calories":0}}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/recipes", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.recipes(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCreateRecipeRequiresScope(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/recipes", strings.NewReader(`{}`)), auth.ScopeMealplanRead)

	rr := httptest.NewRecorder()
	handler.recipes(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestRecipeByIDNotFound(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/recipes/missing", nil), auth.ScopeMealplanRead)

	rr := httptest.NewRecorder()
	handler.recipeByID(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestGeneratePlanFromProfile(t *testing.T) {
	plannerStub := &mockPlanner{
		plan: &domain.WeekPlan{
			ID:        "plan-1",
			WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	handler := newTestHandler(&mockStore{}, plannerStub)

	body := `{"week_start":"2026-03-02","profile":{"sex":"male","age_years":30,"height_cm":180,"weight_kg":80,"activity_level":"moderate","goal":"maintain"}}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.generatePlan(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	// Derived targets, not the zero-valued literal ones, reach the planner.
	if plannerStub.lastTargets.Calories != 2759 {
		t.Fatalf("expected derived calories 2759 got %d", plannerStub.lastTargets.Calories)
	}
}

func TestGeneratePlanRejectsMissingTargets(t *testing.T) {
	handler := newTestHandler(&mockStore{}, &mockPlanner{})

	body := `{"week_start":"2026-03-02"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.generatePlan(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestPlanGroceriesRoute(t *testing.T) {
	plannerStub := &mockPlanner{
		groceries: []domain.GroceryItem{{Name: "milk", Quantity: 300, Unit: "ml"}},
	}
	handler := newTestHandler(&mockStore{}, plannerStub)

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/plans/2026-03-02/groceries", nil), auth.ScopeMealplanRead)

	rr := httptest.NewRecorder()
	handler.planByWeek(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp GroceryListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "milk" {
		t.Fatalf("unexpected grocery items: %+v", resp.Items)
	}
}

func TestPlanByWeekNotFound(t *testing.T) {
	handler := newTestHandler(&mockStore{}, &mockPlanner{planErr: domain.ErrPlanNotFound})

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/plans/2026-03-02", nil), auth.ScopeMealplanRead)

	rr := httptest.NewRecorder()
	handler.planByWeek(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestUpsertCheckInValidatesMood(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	body := `{"date":"2026-03-02","weight_kg":79.5,"mood":9}`
	req := authed(httptest.NewRequest(http.MethodPut, "/v1/checkins", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.checkins(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "0 when not recorded") {
		t.Fatalf("expected error to mention mood is optional, got %s", rr.Body.String())
	}
}

func TestUpsertCheckInAcceptsUnrecordedMood(t *testing.T) {
	store := &mockStore{}
	handler := newTestHandler(store, nil)

	body := `{"date":"2026-03-02","weight_kg":79.5,"mood":0}`
	req := authed(httptest.NewRequest(http.MethodPut, "/v1/checkins", strings.NewReader(body)), auth.ScopeMealplanWrite)

	rr := httptest.NewRecorder()
	handler.checkins(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestQueueManualActivityAccepted(t *testing.T) {
	store := &mockStore{}
	handler := newTestHandler(store, nil)

	body := `{"started_at":"2026-03-02T07:00:00Z","ended_at":"2026-03-02T08:00:00Z","activity_type":"run","exertion":7,"calories":450}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(body)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SyncStatus != string(domain.SyncStatusPending) {
		t.Fatalf("expected pending sync status got %q", resp.SyncStatus)
	}
	if store.createdActivity == nil {
		t.Fatal("activity was not persisted")
	}
	if resp.Source != "manual" {
		t.Fatalf("expected default source manual got %q", resp.Source)
	}
}

func TestQueueManualActivityRejectsInvertedRange(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	body := `{"started_at":"2026-03-02T08:00:00Z","ended_at":"2026-03-02T07:00:00Z","activity_type":"run","exertion":7,"calories":450}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(body)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestNutritionDayUpsertQueuesItem(t *testing.T) {
	queue := &mockQueue{nextID: 17}
	handler := newTestHandlerWithQueue(&mockStore{}, nil, queue)

	body := `{"calories":2100,"protein_g":140,"carbs_g":220,"fat_g":70}`
	req := authed(httptest.NewRequest(http.MethodPut, "/v1/nutrition/days/2026-03-05", strings.NewReader(body)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.nutritionDay(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp QueuedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ItemID != 17 {
		t.Fatalf("expected item id 17 got %d", resp.ItemID)
	}

	payload, ok := queue.last.(outbox.NutritionUpsertPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", queue.last)
	}
	if payload.Date != "2026-03-05" || payload.Calories != 2100 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNutritionDayDeleteQueuesItem(t *testing.T) {
	queue := &mockQueue{nextID: 18}
	handler := newTestHandlerWithQueue(&mockStore{}, nil, queue)

	req := authed(httptest.NewRequest(http.MethodDelete, "/v1/nutrition/days/2026-03-05", nil), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.nutritionDay(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rr.Code)
	}
	if _, ok := queue.last.(outbox.NutritionDeletePayload); !ok {
		t.Fatalf("unexpected payload type %T", queue.last)
	}
}

func TestNutritionDayRejectsBadDate(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	req := authed(httptest.NewRequest(http.MethodPut, "/v1/nutrition/days/not-a-date", strings.NewReader(`{}`)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.nutritionDay(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestSyncNowConflict(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)
	handler.syncRunner = &mockSyncRunner{err: syncer.ErrSyncInProgress}

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{}`)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.syncNow(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
}

func TestSyncNowReturnsState(t *testing.T) {
	runner := &mockSyncRunner{}
	handler := newTestHandler(&mockStore{}, nil)
	handler.syncRunner = runner
	handler.state.Update(func(s *syncer.ConnectionState) {
		s.Availability = health.SDKStatusAvailable
		s.HasPermissions = true
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{"days_back":3}`)), auth.ScopeHealthWrite)

	rr := httptest.NewRecorder()
	handler.syncNow(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if runner.daysBack != 3 {
		t.Fatalf("expected days_back 3 got %d", runner.daysBack)
	}

	var resp syncer.ConnectionState
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Availability != health.SDKStatusAvailable || !resp.HasPermissions {
		t.Fatalf("unexpected state: %+v", resp)
	}
}

func TestMissingClaimsUnauthorized(t *testing.T) {
	handler := newTestHandler(&mockStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/recipes", nil)

	rr := httptest.NewRecorder()
	handler.recipes(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func newTestHandler(store *mockStore, plannerStub *mockPlanner) *Handler {
	return newTestHandlerWithQueue(store, plannerStub, &mockQueue{nextID: 1})
}

func newTestHandlerWithQueue(store *mockStore, plannerStub *mockPlanner, queue *mockQueue) *Handler {
	if plannerStub == nil {
		plannerStub = &mockPlanner{}
	}
	return NewHandler(store, plannerStub, &mockSyncRunner{}, queue, &mockPermissions{}, syncer.NewStateHolder())
}

func authed(r *http.Request, scopes ...string) *http.Request {
	scopeSet := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "tester",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

type mockStore struct {
	upserted        *domain.Recipe
	recipes         map[string]domain.Recipe
	createdActivity *domain.ManualActivityLog
}

func (m *mockStore) UpsertRecipe(_ context.Context, recipe domain.Recipe) error {
	m.upserted = &recipe
	return nil
}

func (m *mockStore) GetRecipe(_ context.Context, recipeID string) (*domain.Recipe, error) {
	if recipe, ok := m.recipes[recipeID]; ok {
		return &recipe, nil
	}
	return nil, nil
}

func (m *mockStore) ListRecipes(context.Context, *domain.RecipeCursor, int) ([]domain.Recipe, *domain.RecipeCursor, error) {
	return nil, nil, nil
}

func (m *mockStore) UpsertTrackedMeal(context.Context, domain.TrackedMeal) error { return nil }

func (m *mockStore) ListTrackedMeals(context.Context, time.Time, time.Time) ([]domain.TrackedMeal, error) {
	return nil, nil
}

func (m *mockStore) UpsertCheckIn(context.Context, domain.CheckIn) error { return nil }

func (m *mockStore) ListCheckIns(context.Context, time.Time, time.Time) ([]domain.CheckIn, error) {
	return nil, nil
}

func (m *mockStore) CreateManualActivity(_ context.Context, activity domain.ManualActivityLog) error {
	m.createdActivity = &activity
	return nil
}

func (m *mockStore) ListManualActivities(context.Context, time.Time, time.Time) ([]domain.ManualActivityLog, error) {
	return nil, nil
}

func (m *mockStore) ListDailySummaries(context.Context, time.Time, time.Time) ([]health.DailySummary, error) {
	return nil, nil
}

type mockPlanner struct {
	plan        *domain.WeekPlan
	planErr     error
	groceries   []domain.GroceryItem
	lastTargets domain.MacroTargets
}

func (m *mockPlanner) GenerateWeekPlan(_ context.Context, weekStart time.Time, targets domain.MacroTargets, _ []string) (*domain.WeekPlan, error) {
	m.lastTargets = targets
	if m.planErr != nil {
		return nil, m.planErr
	}
	if m.plan != nil {
		return m.plan, nil
	}
	return &domain.WeekPlan{ID: "generated", WeekStart: weekStart}, nil
}

func (m *mockPlanner) GetWeekPlan(context.Context, time.Time) (*domain.WeekPlan, error) {
	if m.planErr != nil {
		return nil, m.planErr
	}
	if m.plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return m.plan, nil
}

func (m *mockPlanner) GroceryList(context.Context, time.Time) ([]domain.GroceryItem, error) {
	if m.planErr != nil {
		return nil, m.planErr
	}
	return m.groceries, nil
}

type mockSyncRunner struct {
	err      error
	daysBack int
}

func (m *mockSyncRunner) SyncNow(_ context.Context, daysBack int) error {
	m.daysBack = daysBack
	return m.err
}

type mockQueue struct {
	nextID int64
	last   outbox.Payload
}

func (m *mockQueue) Enqueue(_ context.Context, payload outbox.Payload) (int64, error) {
	m.last = payload
	return m.nextID, nil
}

func (m *mockQueue) PublishPendingCount(context.Context) {}

type mockPermissions struct {
	granted map[string]struct{}
}

func (m *mockPermissions) GrantedPermissions(context.Context) (map[string]struct{}, error) {
	return m.granted, nil
}

func (m *mockPermissions) UpdateGrantedPermissions(_ context.Context, granted []string) error {
	m.granted = make(map[string]struct{}, len(granted))
	for _, token := range granted {
		m.granted[token] = struct{}{}
	}
	return nil
}
