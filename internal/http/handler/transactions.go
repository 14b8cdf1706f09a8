package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"moiledger/internal/apperr"
	"moiledger/internal/ledger"
	"moiledger/internal/page"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxImportBytes = 5 << 20

type TransactionHandler struct {
	Svc *ledger.Recorder
	Log logrus.FieldLogger
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.List(r.Context(), userID(r), lq)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseListQuery(r *http.Request) (ledger.ListQuery, error) {
	q := r.URL.Query()
	lq := ledger.ListQuery{
		FamilyID:        q.Get("familyId"),
		EventID:         q.Get("eventId"),
		Search:          q.Get("search"),
		ContributorName: strings.TrimSpace(q.Get("contributorName")),
		Page:            page.Parse(q, defaultListLimit, maxListLimit),
		Asc:             strings.EqualFold(q.Get("sortOrder"), "asc"),
	}
	if v := q.Get("direction"); v != "" && v != "all" {
		d, ok := ledger.ParseDirection(v)
		if !ok {
			return lq, apperr.Invalid("direction", "direction must be given or received")
		}
		lq.Direction = d
	}
	if v := q.Get("paidStatus"); v != "" && v != "all" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return lq, apperr.Invalid("paidStatus", "paidStatus must be true or false")
		}
		lq.Paid = &b
	}
	for _, f := range []struct {
		key string
		dst **int64
	}{{"minAmount", &lq.MinAmount}, {"maxAmount", &lq.MaxAmount}} {
		if v := q.Get(f.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return lq, apperr.Invalid(f.key, f.key+" must be an integer")
			}
			*f.dst = &n
		}
	}
	lq.SortBy = ledger.ParseSortField(q.Get("sortBy"))
	return lq, nil
}

type transactionReq struct {
	EventID         string            `json:"eventId"`
	FamilyID        string            `json:"familyId"`
	ContributorName *string           `json:"contributorName"`
	Amount          *int64            `json:"amount"`
	Direction       *ledger.Direction `json:"direction"`
	Notes           *string           `json:"notes"`
	PaidStatus      *bool             `json:"paidStatus"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	e := ledger.Entry{
		EventID:  req.EventID,
		FamilyID: req.FamilyID,
		Notes:    req.Notes,
	}
	if req.ContributorName != nil {
		e.ContributorName = *req.ContributorName
	}
	if req.Amount != nil {
		e.Amount = *req.Amount
	}
	if req.Direction != nil {
		e.Direction = *req.Direction
	}
	if req.PaidStatus != nil {
		e.PaidStatus = *req.PaidStatus
	}
	t, err := h.Svc.Record(r.Context(), userID(r), e)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req transactionReq
	if err := decode(r, &req); err != nil {
		badJSON(w)
		return
	}
	t, err := h.Svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), ledger.Patch{
		ContributorName: req.ContributorName,
		Amount:          req.Amount,
		Direction:       req.Direction,
		Notes:           req.Notes,
		PaidStatus:      req.PaidStatus,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type importReq struct {
	FamilyID string       `json:"familyId"`
	EventID  string       `json:"eventId"`
	Entries  []ledger.Row `json:"entries"`
}

// Import accepts either a JSON body with entries, or a raw CSV body with familyId
// and eventId in the query string.
func (h *TransactionHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var req importReq
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "text/csv" {
		rows, err := ledger.ReadCSV(r.Body)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		req = importReq{FamilyID: r.URL.Query().Get("familyId"), EventID: r.URL.Query().Get("eventId"), Entries: rows}
	} else {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			badJSON(w)
			return
		}
	}

	res, err := h.Svc.Import(r.Context(), userID(r), req.FamilyID, req.EventID, req.Entries)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TransactionHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="moi-ledger.csv"`)

	// Buffered so a failed query can still report an error status.
	var buf strings.Builder
	if err := h.Svc.Export(r.Context(), userID(r), q.Get("familyId"), q.Get("eventId"), &buf); err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

func (h *TransactionHandler) Contributors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	names, err := h.Svc.Contributors(r.Context(), userID(r), q.Get("familyId"), q.Get("search"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}
