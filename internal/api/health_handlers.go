package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/mealplan/internal/auth"
	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/health"
	"example.com/mealplan/internal/outbox"
	"example.com/mealplan/internal/syncer"
)

func (h *Handler) connectionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeHealthRead); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) healthPermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireScope(w, r, auth.ScopeHealthRead); !ok {
			return
		}
		granted, err := h.permissions.GrantedPermissions(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "provider_error", err.Error())
			return
		}
		grantedList := make([]string, 0, len(granted))
		for token := range granted {
			grantedList = append(grantedList, token)
		}
		writeJSON(w, http.StatusOK, PermissionsResponse{
			Required: health.RequiredPermissions(),
			Granted:  grantedList,
		})
	case http.MethodPut:
		if _, ok := requireScope(w, r, auth.ScopeHealthWrite); !ok {
			return
		}
		var req UpdatePermissionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := h.permissions.UpdateGrantedPermissions(r.Context(), req.Granted); err != nil {
			writeError(w, http.StatusBadGateway, "provider_error", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) dailySummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeHealthRead); !ok {
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	summaries, err := h.store.ListDailySummaries(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]health.DailySummary{"items": summaries})
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.queueManualActivity(w, r)
	case http.MethodGet:
		h.listManualActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) queueManualActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeHealthWrite); !ok {
		return
	}

	var req QueueActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}
	activity := domain.ManualActivityLog{
		ID:           uuid.NewString(),
		StartedAt:    req.StartedAt.UTC(),
		EndedAt:      req.EndedAt.UTC(),
		ActivityType: req.ActivityType,
		Exertion:     req.Exertion,
		Calories:     req.Calories,
		Source:       source,
		SyncStatus:   domain.SyncStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateManualActivity(r.Context(), activity); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	h.queue.PublishPendingCount(r.Context())

	writeJSON(w, http.StatusAccepted, toActivityView(activity))
}

func (h *Handler) listManualActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeHealthRead); !ok {
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	// end date is inclusive for callers, the query bound is exclusive.
	activities, err := h.store.ListManualActivities(r.Context(), start, end.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, map[string][]ActivityView{"items": items})
}

func (h *Handler) nutritionDay(w http.ResponseWriter, r *http.Request) {
	dateRaw := strings.TrimPrefix(r.URL.Path, "/v1/nutrition/days/")
	if _, err := time.Parse(dateLayout, dateRaw); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, ok := requireScope(w, r, auth.ScopeHealthWrite); !ok {
			return
		}
		var req NutritionDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		id, err := h.queue.Enqueue(r.Context(), outbox.NutritionUpsertPayload{
			Date:     dateRaw,
			Calories: req.Calories,
			ProteinG: req.ProteinG,
			CarbsG:   req.CarbsG,
			FatG:     req.FatG,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, QueuedResponse{ItemID: id})
	case http.MethodDelete:
		if _, ok := requireScope(w, r, auth.ScopeHealthWrite); !ok {
			return
		}
		id, err := h.queue.Enqueue(r.Context(), outbox.NutritionDeletePayload{Date: dateRaw})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, QueuedResponse{ItemID: id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) syncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeHealthWrite); !ok {
		return
	}

	var req SyncRequest
	if r.Body != nil {
		// Body is optional; an empty body means the default window.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}

	if err := h.syncRunner.SyncNow(r.Context(), daysBack); err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync_in_progress", err.Error())
			return
		}
		// Pass failures are also surfaced on the connection state.
		writeJSON(w, http.StatusOK, h.state.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}
