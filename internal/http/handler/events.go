package handler

import (
	"net/http"

	"moiledger/internal/ledger"
	"moiledger/internal/page"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type EventHandler struct {
	Svc *ledger.Events
	Log logrus.FieldLogger
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.List(r.Context(), userID(r), q.Get("familyId"), page.Parse(q, defaultListLimit, maxListLimit))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type eventReq struct {
	FamilyID    string              `json:"familyId"`
	Title       *string             `json:"title"`
	Type        *ledger.EventType   `json:"type"`
	Date        *string             `json:"date"`
	Location    *string             `json:"location"`
	Description *string             `json:"description"`
	Status      *ledger.EventStatus `json:"status"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	in := ledger.EventInput{
		FamilyID:    req.FamilyID,
		Location:    req.Location,
		Description: req.Description,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Type != nil {
		in.Type = *req.Type
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	ev, err := h.Svc.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req eventReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	ev, err := h.Svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), ledger.EventPatch{
		Title:       req.Title,
		Type:        req.Type,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *EventHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Svc.Favorites(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventIds": ids})
}

type favoriteReq struct {
	EventID string `json:"eventId"`
}

func (h *EventHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	on, err := h.Svc.ToggleFavorite(r.Context(), userID(r), req.EventID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventId": req.EventID, "favorite": on})
}

func (h *EventHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Search(r.Context(), userID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
