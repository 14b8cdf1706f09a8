package handler

import (
	"net/http"

	"moiledger/internal/auth"

	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	Svc *auth.Service
	JWT *auth.JWT
	Log logrus.FieldLogger
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}

	u, err := h.Svc.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResp{Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}

	u, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: token, User: u})
}
