// Package api exposes HTTP handlers for the mealplan service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/mealplan/internal/auth"
	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/health"
	"example.com/mealplan/internal/outbox"
	"example.com/mealplan/internal/persistence"
	"example.com/mealplan/internal/syncer"
)

const dateLayout = "2006-01-02"

// Store captures the persistence operations the handlers drive.
type Store interface {
	UpsertRecipe(ctx context.Context, recipe domain.Recipe) error
	GetRecipe(ctx context.Context, recipeID string) (*domain.Recipe, error)
	ListRecipes(ctx context.Context, cursor *domain.RecipeCursor, limit int) ([]domain.Recipe, *domain.RecipeCursor, error)
	UpsertTrackedMeal(ctx context.Context, meal domain.TrackedMeal) error
	ListTrackedMeals(ctx context.Context, start, end time.Time) ([]domain.TrackedMeal, error)
	UpsertCheckIn(ctx context.Context, checkin domain.CheckIn) error
	ListCheckIns(ctx context.Context, start, end time.Time) ([]domain.CheckIn, error)
	CreateManualActivity(ctx context.Context, activity domain.ManualActivityLog) error
	ListManualActivities(ctx context.Context, start, end time.Time) ([]domain.ManualActivityLog, error)
	ListDailySummaries(ctx context.Context, start, end time.Time) ([]health.DailySummary, error)
}

// PlanService captures the planner operations the handlers drive.
type PlanService interface {
	GenerateWeekPlan(ctx context.Context, weekStart time.Time, targets domain.MacroTargets, preferredTags []string) (*domain.WeekPlan, error)
	GetWeekPlan(ctx context.Context, weekStart time.Time) (*domain.WeekPlan, error)
	GroceryList(ctx context.Context, weekStart time.Time) ([]domain.GroceryItem, error)
}

// SyncRunner triggers sync passes.
type SyncRunner interface {
	SyncNow(ctx context.Context, daysBack int) error
}

// Enqueuer records outbox writes.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload outbox.Payload) (int64, error)
	PublishPendingCount(ctx context.Context)
}

// PermissionClient manages the health store's granted permission set.
type PermissionClient interface {
	GrantedPermissions(ctx context.Context) (map[string]struct{}, error)
	UpdateGrantedPermissions(ctx context.Context, granted []string) error
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	store       Store
	planner     PlanService
	syncRunner  SyncRunner
	queue       Enqueuer
	permissions PermissionClient
	state       *syncer.StateHolder
}

// NewHandler builds a Handler.
func NewHandler(store Store, planService PlanService, syncRunner SyncRunner, queue Enqueuer, permissions PermissionClient, state *syncer.StateHolder) *Handler {
	return &Handler{
		store:       store,
		planner:     planService,
		syncRunner:  syncRunner,
		queue:       queue,
		permissions: permissions,
		state:       state,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/recipes", h.recipes)
	mux.HandleFunc("/v1/recipes/", h.recipeByID)
	mux.HandleFunc("/v1/plans", h.generatePlan)
	mux.HandleFunc("/v1/plans/", h.planByWeek)
	mux.HandleFunc("/v1/tracking/meals", h.trackedMeals)
	mux.HandleFunc("/v1/checkins", h.checkins)
	mux.HandleFunc("/v1/macros", h.macroTargets)
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/nutrition/days/", h.nutritionDay)
	mux.HandleFunc("/v1/health/connection", h.connectionState)
	mux.HandleFunc("/v1/health/permissions", h.healthPermissions)
	mux.HandleFunc("/v1/health/summaries", h.dailySummaries)
	mux.HandleFunc("/v1/sync", h.syncNow)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) recipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRecipe(w, r)
	case http.MethodGet:
		h.listRecipes(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanWrite); !ok {
		return
	}

	var req CreateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	now := time.Now().UTC()
	recipe := domain.Recipe{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Tags:        req.Tags,
		Macros:      req.Macros,
		PrepMinutes: req.PrepMinutes,
		Ingredients: req.Ingredients,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.UpsertRecipe(r.Context(), recipe); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeView(recipe))
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	recipes, next, err := h.store.ListRecipes(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RecipeView, 0, len(recipes))
	for _, recipe := range recipes {
		items = append(items, toRecipeView(recipe))
	}
	writeJSON(w, http.StatusOK, ListRecipesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) recipeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/recipes/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing recipe id")
		return
	}

	recipe, err := h.store.GetRecipe(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if recipe == nil {
		writeError(w, http.StatusNotFound, "not_found", "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, toRecipeView(*recipe))
}

func (h *Handler) generatePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeMealplanWrite); !ok {
		return
	}

	var req GeneratePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	weekStart, err := time.Parse(dateLayout, req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "week_start must be YYYY-MM-DD")
		return
	}

	targets := req.Targets
	if req.Profile != nil {
		targets, err = domain.CalculateMacroTargets(*req.Profile)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
	}
	if targets.Calories <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "targets or profile required")
		return
	}

	plan, err := h.planner.GenerateWeekPlan(r.Context(), weekStart, targets, req.PreferredTags)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toPlanView(*plan))
}

func (h *Handler) planByWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	weekRaw, tail, _ := strings.Cut(rest, "/")
	weekStart, err := time.Parse(dateLayout, weekRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "week start must be YYYY-MM-DD")
		return
	}

	switch tail {
	case "":
		plan, err := h.planner.GetWeekPlan(r.Context(), weekStart)
		if err != nil {
			if errors.Is(err, domain.ErrPlanNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "week plan not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toPlanView(*plan))
	case "groceries":
		items, err := h.planner.GroceryList(r.Context(), weekStart)
		if err != nil {
			if errors.Is(err, domain.ErrPlanNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "week plan not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, GroceryListResponse{Items: items})
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown plan resource")
	}
}

func (h *Handler) trackedMeals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.upsertTrackedMeal(w, r)
	case http.MethodGet:
		h.listTrackedMeals(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) upsertTrackedMeal(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanWrite); !ok {
		return
	}

	var req TrackMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}
	if !domain.ValidSlot(domain.MealSlot(req.Slot)) {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown meal slot")
		return
	}

	macros := req.Macros
	if req.RecipeID != "" && macros.Calories == 0 {
		recipe, err := h.store.GetRecipe(r.Context(), req.RecipeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		if recipe == nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown recipe id")
			return
		}
		macros = recipe.Macros
	}

	meal := domain.TrackedMeal{
		Date:     date,
		Slot:     domain.MealSlot(req.Slot),
		RecipeID: req.RecipeID,
		Macros:   macros,
		Eaten:    req.Eaten,
	}
	if err := h.store.UpsertTrackedMeal(r.Context(), meal); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTrackedMealView(meal))
}

func (h *Handler) listTrackedMeals(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	meals, err := h.store.ListTrackedMeals(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	items := make([]TrackedMealView, 0, len(meals))
	for _, meal := range meals {
		items = append(items, toTrackedMealView(meal))
	}
	writeJSON(w, http.StatusOK, map[string][]TrackedMealView{"items": items})
}

func (h *Handler) checkins(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.upsertCheckIn(w, r)
	case http.MethodGet:
		h.listCheckIns(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) upsertCheckIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanWrite); !ok {
		return
	}

	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}
	if req.Mood < 0 || req.Mood > 5 {
		writeError(w, http.StatusBadRequest, "validation_failed", "mood must be between 1 and 5, or 0 when not recorded")
		return
	}

	checkin := domain.CheckIn{
		Date:     date,
		WeightKg: req.WeightKg,
		Mood:     req.Mood,
		Note:     req.Note,
	}
	if err := h.store.UpsertCheckIn(r.Context(), checkin); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toCheckInView(checkin))
}

func (h *Handler) listCheckIns(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	checkins, err := h.store.ListCheckIns(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	items := make([]CheckInView, 0, len(checkins))
	for _, checkin := range checkins {
		items = append(items, toCheckInView(checkin))
	}
	writeJSON(w, http.StatusOK, map[string][]CheckInView{"items": items})
}

func (h *Handler) macroTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeMealplanRead); !ok {
		return
	}

	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	targets, err := domain.CalculateMacroTargets(profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, errors.New("start and end parameters are required")
	}
	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not precede start")
	}
	return start, end, nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
