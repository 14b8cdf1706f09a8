package handler

import (
	"net/http"

	"moiledger/internal/family"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type FamilyHandler struct {
	Svc *family.Service
	Log logrus.FieldLogger
}

func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	fs, err := h.Svc.ListForUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

type familyReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	in := family.CreateInput{Description: req.Description}
	if req.Name != nil {
		in.Name = *req.Name
	}
	f, err := h.Svc.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.Svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req familyReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	f, err := h.Svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), family.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type joinReq struct {
	InviteCode string `json:"inviteCode"`
}

func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	f, err := h.Svc.Join(r.Context(), userID(r), req.InviteCode)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Svc.Members(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

type memberRoleReq struct {
	MembershipID string      `json:"membershipId"`
	Role         family.Role `json:"role"`
}

func (h *FamilyHandler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	var req memberRoleReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	m, err := h.Svc.SetMemberRole(r.Context(), userID(r), chi.URLParam(r, "id"), req.MembershipID, req.Role)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *FamilyHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	f, err := h.Svc.RegenerateInviteCode(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type inviteReq struct {
	Email string `json:"email"`
}

func (h *FamilyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	if err := h.Svc.SendInvite(r.Context(), userID(r), chi.URLParam(r, "id"), req.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}
