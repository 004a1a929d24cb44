// Package server exposes the dialogue controller over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/contract"
	"github.com/okaimono/shopping-agent/agent/dialogue"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

const maxRequestBytes = 64 << 10

// SessionCounter reports how many sessions a store currently holds. Stores
// that cannot count cheaply simply do not implement it.
type SessionCounter interface {
	Count() int
}

// Handler holds the HTTP surface over one dialogue controller.
type Handler struct {
	controller *dialogue.Controller
	sessions   SessionCounter
}

type HandlerOption func(*Handler)

func WithSessionCounter(c SessionCounter) HandlerOption {
	return func(h *Handler) { h.sessions = c }
}

func NewHandler(controller *dialogue.Controller, opts ...HandlerOption) *Handler {
	h := &Handler{controller: controller}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorStatus maps the error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, contract.ErrEmptyInput), errors.Is(err, contract.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Post("/session", h.CreateSession)
		r.Route("/session/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/reset", h.ResetSession)
		})
		r.Post("/favorites/toggle", h.ToggleFavorite)
		r.Get("/favorites", h.ListFavorites)
		r.Get("/favorites/compare", h.CompareFavorites)
		r.Get("/products/search", h.SearchProducts)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if h.sessions != nil {
		payload["sessions"] = h.sessions.Count()
	}
	JSON(w, http.StatusOK, payload)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp,omitempty"`
}

type chatResponse struct {
	Response    string                 `json:"response"`
	Products    []statex.ProductRecord `json:"products,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
	ReviewLinks []contract.ReviewLink  `json:"reviewLinks,omitempty"`
	SessionID   string                 `json:"sessionId"`
	State       string                 `json:"state"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := h.controller.HandleInput(r.Context(), req.SessionID, req.Message)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("chat request failed")
			Error(w, status, "internal error")
			return
		}
		Error(w, status, err.Error())
		return
	}
	JSON(w, http.StatusOK, chatResponse{
		Response:    reply.AgentText,
		Products:    reply.Products,
		Suggestions: reply.Suggestions,
		ReviewLinks: reply.ReviewLinks,
		SessionID:   reply.SessionID,
		State:       string(reply.State),
	})
}

type sessionResponse struct {
	SessionID    string               `json:"sessionId"`
	State        statex.DialogueState `json:"state"`
	Preferences  statex.Preferences   `json:"preferences"`
	TurnCount    int                  `json:"turnCount"`
	CreatedAt    time.Time            `json:"createdAt"`
	LastActivity time.Time            `json:"lastActivity"`
}

func sessionView(s *statex.Session) sessionResponse {
	return sessionResponse{
		SessionID:    s.ID,
		State:        s.State,
		Preferences:  s.Prefs,
		TurnCount:    len(s.History),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.CreateSession(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create session failed")
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusCreated, sessionView(s))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, sessionView(s))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, sessionView(s))
}

type toggleFavoriteRequest struct {
	SessionID string               `json:"sessionId"`
	Product   statex.ProductRecord `json:"product"`
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req toggleFavoriteRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := h.controller.ToggleFavorite(r.Context(), req.SessionID, req.Product)
	if err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"favorited": added})
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	recs, err := h.controller.Favorites(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]any{"favorites": recs})
}

func (h *Handler) CompareFavorites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.controller.CompareFavorites(r.Context(), q.Get("sessionId"), q.Get("productId"))
	if err != nil {
		Error(w, errorStatus(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]any{"offers": recs})
}

// SearchProducts answers a stateless keyword search. An over-filtered query
// is a valid empty result, not an error.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.controller.SearchProducts(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		if errors.Is(err, contract.ErrNoResultsAfterFilter) {
			JSON(w, http.StatusOK, map[string]any{"products": []statex.ProductRecord{}})
			return
		}
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("product search failed")
			Error(w, status, "internal error")
			return
		}
		Error(w, status, err.Error())
		return
	}
	products := result.Products
	if products == nil {
		products = []statex.ProductRecord{}
	}
	JSON(w, http.StatusOK, map[string]any{"products": products})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
