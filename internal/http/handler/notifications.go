package handler

import (
	"net/http"

	"moiledger/internal/apperr"
	"moiledger/internal/notify"

	"github.com/sirupsen/logrus"
)

type NotificationHandler struct {
	Svc *notify.Service
	Log logrus.FieldLogger
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.Svc.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

type markReadReq struct {
	NotificationID string `json:"notificationId"`
	MarkAllRead    bool   `json:"markAllRead"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}

	var err error
	switch {
	case req.MarkAllRead:
		err = h.Svc.MarkAllRead(r.Context(), userID(r))
	case req.NotificationID != "":
		err = h.Svc.MarkRead(r.Context(), userID(r), req.NotificationID)
	default:
		err = apperr.Invalid("notificationId", "notificationId or markAllRead is required")
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
