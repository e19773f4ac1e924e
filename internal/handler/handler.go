package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appI18n "github.com/abenov/zanexam/internal/i18n"
	"github.com/abenov/zanexam/internal/judge"
	"github.com/abenov/zanexam/internal/match"
	"github.com/abenov/zanexam/internal/model"
	"github.com/abenov/zanexam/internal/store"
)

// advisoryTimeout bounds the background advisory grading of one submission.
const advisoryTimeout = 3 * time.Minute

// maxSubmissionItems is a sanity bound on submission size.
const maxSubmissionItems = 200

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	orch  *judge.Orchestrator
}

// New creates a handler with its dependencies.
func New(st *store.Store, orch *judge.Orchestrator) *Handler {
	return &Handler{store: st, orch: orch}
}

// Routes registers all application routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/healthz", h.health)
	r.Post("/api/submissions", h.createSubmission)
	r.Get("/api/submissions/{id}", h.getSubmission)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/api/admin/submissions", h.listSubmissions)
		r.Get("/api/admin/export", h.exportSubmissions)
	})
}

type submissionItemRequest struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
}

type submissionRequest struct {
	Student model.Student           `json:"student"`
	Items   []submissionItemRequest `json:"items"`
}

type submissionResponse struct {
	ID             string               `json:"id"`
	Student        model.Student        `json:"student"`
	CreatedAt      time.Time            `json:"created_at"`
	Authoritative  model.ScoreSummary   `json:"authoritative"`
	Verdict        string               `json:"verdict"`
	ScoreLine      string               `json:"score_line"`
	AdvisoryStatus model.AdvisoryStatus `json:"advisory_status"`
	StatusLabel    string               `json:"status_label"`
	Advisory       *advisoryResponse    `json:"advisory,omitempty"`
}

type advisoryResponse struct {
	Summary    model.ScoreSummary `json:"summary"`
	GradedLine string             `json:"graded_line"`
	Judgments  []judgmentView     `json:"judgments"`
}

type judgmentView struct {
	Ordinal     int                  `json:"ordinal"`
	Question    string               `json:"question"`
	UserAnswer  string               `json:"user_answer"`
	Category    model.Category       `json:"category"`
	Explanation string               `json:"explanation"`
	Score       int                  `json:"score"`
	IsCorrect   bool                 `json:"is_correct"`
	Source      model.JudgmentSource `json:"source"`
	SourceLabel string               `json:"source_label"`
}

// createSubmission grades a submission. The authoritative score is computed
// synchronously and returned immediately; advisory grading runs in the
// background and is fetched by polling getSubmission.
func (h *Handler) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "submission has no items")
		return
	}
	if len(req.Items) > maxSubmissionItems {
		respondError(w, http.StatusBadRequest, "too many items")
		return
	}

	items := make([]model.GradingItem, len(req.Items))
	strict := make([]bool, len(req.Items))
	correct := 0
	for i, it := range req.Items {
		items[i] = model.GradingItem{
			Ordinal:       i + 1,
			Question:      it.Question,
			CorrectAnswer: it.CorrectAnswer,
			UserAnswer:    it.UserAnswer,
		}
		strict[i] = match.Matches(it.UserAnswer, it.CorrectAnswer, it.Question)
		if strict[i] {
			correct++
		}
	}

	sub := model.Submission{
		ID:             uuid.NewString(),
		Student:        req.Student,
		CreatedAt:      time.Now(),
		Items:          items,
		StrictCorrect:  strict,
		Authoritative:  model.Summarize(correct, len(items)),
		AdvisoryStatus: model.AdvisoryPending,
	}

	if err := h.store.CreateSubmission(sub); err != nil {
		slog.Error("create submission", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	slog.Info("submission graded",
		"id", sub.ID,
		"student", sub.Student.Name,
		"student_id", sub.Student.ExternalID,
		"items", len(items),
		"correct", sub.Authoritative.Correct,
		"percentage", sub.Authoritative.Percentage,
		"passing", sub.Authoritative.IsPassing,
	)

	go h.gradeAdvisory(sub)

	respondJSON(w, http.StatusCreated, h.submissionView(r.Context(), &sub))
}

// gradeAdvisory runs the advisory track for a stored submission. It never
// fails the submission: the worst outcome is an all-fallback judgment list.
func (h *Handler) gradeAdvisory(sub model.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), advisoryTimeout)
	defer cancel()

	judgments := h.orch.Grade(ctx, sub.Items)
	if err := h.store.UpsertJudgments(sub.ID, judgments); err != nil {
		slog.Error("store advisory judgments", "id", sub.ID, "error", err)
		return
	}
	if err := h.store.SetAdvisoryStatus(sub.ID, model.AdvisoryComplete); err != nil {
		slog.Error("set advisory status", "id", sub.ID, "error", err)
		return
	}
	slog.Info("advisory grading complete", "id", sub.ID,
		"judgments", len(judgments), "advisory", model.Aggregate(judgments).Percentage)
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.store.GetSubmission(id)
	if err != nil {
		slog.Error("get submission", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load submission")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "submission not found")
		return
	}
	respondJSON(w, http.StatusOK, h.submissionView(r.Context(), sub))
}

// submissionView renders a submission with localized verdict labels.
func (h *Handler) submissionView(ctx context.Context, sub *model.Submission) submissionResponse {
	verdictKey := "VerdictFailed"
	if sub.Authoritative.IsPassing {
		verdictKey = "VerdictPassed"
	}
	statusKey := "AdvisoryPending"
	if sub.AdvisoryStatus == model.AdvisoryComplete {
		statusKey = "AdvisoryComplete"
	}

	resp := submissionResponse{
		ID:            sub.ID,
		Student:       sub.Student,
		CreatedAt:     sub.CreatedAt,
		Authoritative: sub.Authoritative,
		Verdict:       appI18n.T(ctx, verdictKey),
		ScoreLine: appI18n.Td(ctx, "ScoreLine", map[string]any{
			"Correct":    sub.Authoritative.Correct,
			"Total":      sub.Authoritative.Total,
			"Percentage": sub.Authoritative.Percentage,
		}),
		AdvisoryStatus: sub.AdvisoryStatus,
		StatusLabel:    appI18n.T(ctx, statusKey),
	}

	if len(sub.Judgments) == 0 {
		return resp
	}

	byOrdinal := make(map[int]model.GradingItem, len(sub.Items))
	for _, item := range sub.Items {
		byOrdinal[item.Ordinal] = item
	}

	views := make([]judgmentView, 0, len(sub.Judgments))
	for _, j := range sub.Judgments {
		item := byOrdinal[j.Ordinal]
		labelKey := "SourceFallback"
		if j.Source == model.SourceRemote {
			labelKey = "SourceRemote"
		}
		views = append(views, judgmentView{
			Ordinal:     j.Ordinal,
			Question:    item.Question,
			UserAnswer:  item.UserAnswer,
			Category:    j.Category,
			Explanation: j.Explanation,
			Score:       j.Score,
			IsCorrect:   j.IsCorrect,
			Source:      j.Source,
			SourceLabel: appI18n.T(ctx, labelKey),
		})
	}
	resp.Advisory = &advisoryResponse{
		Summary:    model.Aggregate(sub.Judgments),
		GradedLine: appI18n.Tp(ctx, "QuestionsGraded", len(views)),
		Judgments:  views,
	}
	return resp
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
