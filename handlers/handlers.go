package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mint-dashboard/gateway"
	"mint-dashboard/logger"
	"mint-dashboard/mint"
	"mint-dashboard/repository"
	"mint-dashboard/session"

	"go.uber.org/zap"
)

// Handler contains the HTTP handlers for the mint dashboard API
type Handler struct {
	Sessions *session.Manager
	Journal  repository.ActivityRepositoryInterface
}

// NewHandler creates and returns a new Handler instance
func NewHandler(sessions *session.Manager, journal repository.ActivityRepositoryInterface) *Handler {
	return &Handler{Sessions: sessions, Journal: journal}
}

type claimRankRequest struct {
	Term *uint64 `json:"term"`
}

type sessionInfo struct {
	Address     string     `json:"address"`
	ConnectedAt time.Time  `json:"connected_at"`
	Ticks       uint64     `json:"ticks"`
	LastTick    *time.Time `json:"last_tick,omitempty"`
}

// Connect handles POST requests opening a session for the configured wallet
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Connect(r.Context())
	if err != nil {
		logger.Logger.Error("Failed to connect session", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Session connected",
		"session": describe(s),
		"state":   s.Synchronizer().View(),
	})
}

// Disconnect handles DELETE requests tearing the session down
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Disconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session disconnected"})
}

// GetSession returns the open session and its clock tick progress
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

// GetState returns the derived view: countdown, reward estimate, balance
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Synchronizer().View())
}

// Refresh re-reads the chain state on demand
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Synchronizer().Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Synchronizer().View())
}

// ClaimRank handles POST requests registering a mint for the given term
func (h *Handler) ClaimRank(w http.ResponseWriter, r *http.Request) {
	var req claimRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Term == nil {
		logger.Logger.Error("Failed to decode claim rank", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request payload",
		})
		return
	}

	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := s.Synchronizer().ClaimRank(r.Context(), *req.Term)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Logger.Info("Rank claimed", zap.Uint64("term", *req.Term), zap.String("tx_hash", receipt.TxHash.Hex()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rank claimed",
		"receipt": receipt,
		"state":   s.Synchronizer().View(),
	})
}

// ClaimReward handles POST requests finalizing a matured mint
func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := s.Synchronizer().ClaimReward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Logger.Info("Reward claimed", zap.String("tx_hash", receipt.TxHash.Hex()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Reward claimed",
		"receipt": receipt,
		"state":   s.Synchronizer().View(),
	})
}

// GetActivity lists the session's claim journal
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.Journal.List(s.Address())
	if err != nil {
		logger.Logger.Error("Failed to list activity", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

func describe(s *session.Session) sessionInfo {
	ticks, last := s.Ticks()
	info := sessionInfo{
		Address:     s.Address().Hex(),
		ConnectedAt: s.ConnectedAt(),
		Ticks:       ticks,
	}
	if !last.IsZero() {
		info.LastTick = &last
	}
	return info
}

// statusFor maps the synchronizer and gateway errors onto HTTP statuses
func statusFor(err error) int {
	var (
		readErr *mint.ReadError
		subErr  *gateway.SubmissionError
		confErr *gateway.ConfirmationError
	)
	switch {
	case errors.Is(err, mint.ErrInvalidTerm):
		return http.StatusBadRequest
	case errors.Is(err, mint.ErrNotConnected),
		errors.Is(err, mint.ErrAlreadyMinting),
		errors.Is(err, mint.ErrNoActiveMint),
		errors.Is(err, mint.ErrNotMatured),
		errors.Is(err, mint.ErrClaimPending),
		errors.Is(err, mint.ErrRankRegressed):
		return http.StatusConflict
	case errors.As(err, &confErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mint.ErrUnconfirmed):
		return http.StatusGatewayTimeout
	case errors.As(err, &subErr), errors.As(err, &readErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Logger.Warn("Failed to encode response", zap.Error(err))
	}
}
