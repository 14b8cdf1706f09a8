package handler

import (
	"net/http"

	"moiledger/internal/analytics"
	"moiledger/internal/page"
	"moiledger/internal/returns"

	"github.com/sirupsen/logrus"
)

const (
	defaultReturnsLimit = 10
	maxReturnsLimit     = 100
)

type ReturnsHandler struct {
	Svc *returns.Service
	Log logrus.FieldLogger
}

func (h *ReturnsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.Get(r.Context(), userID(r), q.Get("familyId"), page.Parse(q, defaultReturnsLimit, maxReturnsLimit))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type AnalyticsHandler struct {
	Svc *analytics.Service
	Log logrus.FieldLogger
}

func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Svc.Get(r.Context(), userID(r), r.URL.Query().Get("familyId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
