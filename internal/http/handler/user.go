package handler

import (
	"net/http"

	"moiledger/internal/auth"

	"github.com/sirupsen/logrus"
)

type UserHandler struct {
	Svc *auth.Service
	Log logrus.FieldLogger
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Svc.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserReq struct {
	Name            *string `json:"name"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), userID(r), auth.ProfileUpdate{
		Name:            req.Name,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
