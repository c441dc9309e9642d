package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitchsync/pitchsync/internal/api/respond"
)

// AmbiguityEntry is the JSON shape of one pending review row.
type AmbiguityEntry struct {
	ID              int64      `json:"id"`
	MatchID         *int64     `json:"match_id"`
	FieldType       string     `json:"field_type"`
	RawName         string     `json:"raw_name"`
	Candidate1Team  int64      `json:"candidate_1_team"`
	Candidate1Sim   float64    `json:"candidate_1_sim"`
	Candidate2Team  *int64     `json:"candidate_2_team"`
	Candidate2Sim   *float64   `json:"candidate_2_sim"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListAmbiguity returns pending ambiguity-queue entries, oldest first.
func (h *Handler) ListAmbiguity(w http.ResponseWriter, r *http.Request) {
	rows, err := h.pool.Query(r.Context(), `
		SELECT id, match_id, field_type, raw_name, candidate_1_team, candidate_1_sim,
		       candidate_2_team, candidate_2_sim, status, created_at
		FROM ambiguous_match_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 200`)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to list ambiguity queue", err.Error())
		return
	}
	defer rows.Close()

	entries := make([]AmbiguityEntry, 0)
	for rows.Next() {
		var e AmbiguityEntry
		if err := rows.Scan(&e.ID, &e.MatchID, &e.FieldType, &e.RawName, &e.Candidate1Team, &e.Candidate1Sim,
			&e.Candidate2Team, &e.Candidate2Sim, &e.Status, &e.CreatedAt); err != nil {
			respond.WriteErrorDetail(w, http.StatusInternalServerError, "SCAN_FAILED", "failed to read ambiguity row", err.Error())
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to iterate ambiguity queue", err.Error())
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, entries)
}

type resolveRequest struct {
	TeamID     int64  `json:"team_id" validate:"required"`
	ResolvedBy string `json:"resolved_by" validate:"required"`
}

// ResolveAmbiguity attaches the queued raw name to the operator-chosen team:
// it learns an alias (so future identical inputs resolve automatically),
// attaches the match's field to that team if a match_id was recorded, and
// marks the queue entry resolved.
func (h *Handler) ResolveAmbiguity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "id must be numeric")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	if req.TeamID == 0 || req.ResolvedBy == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "team_id and resolved_by are required")
		return
	}

	ctx := r.Context()

	var matchID *int64
	var fieldType, rawName string
	err = h.pool.QueryRow(ctx, `
		SELECT match_id, field_type, raw_name FROM ambiguous_match_queue
		WHERE id = $1 AND status = 'pending'`, id,
	).Scan(&matchID, &fieldType, &rawName)
	if err != nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "pending ambiguity entry not found")
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "TX_FAILED", "failed to begin transaction", err.Error())
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO team_name_aliases (team_id, alias_name, source)
		VALUES ($1, lower(trim($2)), 'ambiguity_resolved')
		ON CONFLICT (team_id, alias_name) DO NOTHING`, req.TeamID, rawName); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "ALIAS_FAILED", "failed to learn alias", err.Error())
		return
	}

	if matchID != nil {
		column := "home_team_id"
		if fieldType == "away" {
			column = "away_team_id"
		}
		if _, err := tx.Exec(ctx, `UPDATE matches SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, *matchID, req.TeamID); err != nil {
			respond.WriteErrorDetail(w, http.StatusInternalServerError, "UPDATE_FAILED", "failed to attach resolved team to match", err.Error())
			return
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ambiguous_match_queue
		SET status = 'resolved', resolved_team = $2, resolved_by = $3, resolved_at = NOW()
		WHERE id = $1`, id, req.TeamID, req.ResolvedBy); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "UPDATE_FAILED", "failed to mark entry resolved", err.Error())
		return
	}

	if err := tx.Commit(ctx); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "TX_FAILED", "failed to commit transaction", err.Error())
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "resolved"})
}

type dismissRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required"`
}

// DismissAmbiguity marks a queue entry dismissed without linking anything —
// used when none of the candidates are actually the right team.
func (h *Handler) DismissAmbiguity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "id must be numeric")
		return
	}

	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	if req.ResolvedBy == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "resolved_by is required")
		return
	}

	tag, err := h.pool.Exec(r.Context(), `
		UPDATE ambiguous_match_queue
		SET status = 'dismissed', resolved_by = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, req.ResolvedBy)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "UPDATE_FAILED", "failed to dismiss entry", err.Error())
		return
	}
	if tag.RowsAffected() == 0 {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "pending ambiguity entry not found")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
