package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

type Router struct {
	answers        ports.AnswerService
	metricsHandler http.Handler
}

func NewRouter(answers ports.AnswerService, metricsHandler http.Handler) *Router {
	return &Router{
		answers:        answers,
		metricsHandler: metricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answer", rt.answer)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Query                string                    `json:"query"`
	AuthorizedProjectIDs []string                  `json:"authorized_project_ids"`
	ProjectScope         []string                  `json:"project_scope,omitempty"`
	History              []domain.ConversationTurn `json:"history,omitempty"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.answers.Answer(r.Context(), domain.Query{
		Text:                 req.Query,
		AuthorizedProjectIDs: req.AuthorizedProjectIDs,
		ProjectScope:         req.ProjectScope,
		History:              req.History,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{
		"error":      publicErrorMessage(err),
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
