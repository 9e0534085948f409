package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/slotsync/slotsync/services/billing-service/internal/storage"
)

type localWebhookRequest struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"` // subscription.activated | subscription.canceled
	BusinessID string `json:"business_id"`
	Tier       string `json:"tier"`
	OccurredAt string `json:"occurred_at"`
}

// LocalWebhook drives subscription state without a payment provider, for
// development and self-hosted installs. Admin token required.
func (h *Handler) LocalWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := claimsFromContext(r.Context())
	if !isAdmin(claims) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req localWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.EventID = strings.TrimSpace(req.EventID)
	req.Type = strings.TrimSpace(req.Type)
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.Tier = strings.TrimSpace(strings.ToLower(req.Tier))
	req.OccurredAt = strings.TrimSpace(req.OccurredAt)

	if req.EventID == "" || req.Type == "" || req.BusinessID == "" || req.OccurredAt == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		http.Error(w, "invalid occurred_at", http.StatusBadRequest)
		return
	}

	h.logger.Info("billing provider event received",
		"provider", "local",
		"provider_event_id", req.EventID,
		"event_type", req.Type,
		"business_id", req.BusinessID,
		"tier", req.Tier,
	)

	payloadRaw, _ := json.Marshal(req)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.repo.InsertProviderEvent(r.Context(), tx, storage.ProviderEvent{
		Provider:        "local",
		ProviderEventID: req.EventID,
		EventType:       req.Type,
		Payload:         payloadRaw,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("billing provider event duplicate ignored", "provider", "local", "provider_event_id", req.EventID)
			writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			_ = tx.Commit(r.Context())
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	if err := h.recordAudit(r.Context(), tx, r, "billing.provider.local.webhook", "provider", req.BusinessID, map[string]any{
		"provider":          "local",
		"provider_event_id": req.EventID,
		"event_type":        req.Type,
		"tier":              req.Tier,
		"occurred_at":       occurredAt.UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, "failed to record audit event", http.StatusInternalServerError)
		return
	}

	switch req.Type {
	case "subscription.activated":
		if req.Tier == "" {
			http.Error(w, "tier is required for subscription.activated", http.StatusBadRequest)
			return
		}
		if err := h.subSvc.ApplyActivated(r.Context(), tx, req.BusinessID, req.Tier, occurredAt, "local", "", "", nil, nil); err != nil {
			http.Error(w, "failed to apply activation", http.StatusInternalServerError)
			return
		}
	case "subscription.canceled":
		if err := h.subSvc.ApplyCanceled(r.Context(), tx, req.BusinessID, occurredAt, "local", "", "", nil, nil); err != nil {
			http.Error(w, "failed to apply cancellation", http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, "unsupported type", http.StatusBadRequest)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
