package http

import (
	"net/http"

	"moiledger/internal/analytics"
	"moiledger/internal/auth"
	"moiledger/internal/config"
	"moiledger/internal/family"
	"moiledger/internal/http/handler"
	mw "moiledger/internal/http/middleware"
	"moiledger/internal/ledger"
	"moiledger/internal/logging"
	"moiledger/internal/mail"
	"moiledger/internal/notify"
	"moiledger/internal/returns"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Deps struct {
	Config    config.Config
	DB        *gorm.DB
	JWT       *auth.JWT
	Log       logrus.FieldLogger
	Publisher notify.Publisher // optional
	Mail      mail.Sender      // optional
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authSvc := &auth.Service{DB: d.DB}
	notifySvc := &notify.Service{DB: d.DB, Publisher: d.Publisher, Log: d.Log}
	familySvc := &family.Service{DB: d.DB, Notify: notifySvc, Mail: d.Mail, Log: d.Log}
	recorder := &ledger.Recorder{DB: d.DB, Families: familySvc, Notify: notifySvc, Log: d.Log}
	events := &ledger.Events{DB: d.DB, Families: familySvc, ReminderLead: d.Config.ReminderLeadTime}
	returnsSvc := &returns.Service{Source: &returns.Store{DB: d.DB}, Families: familySvc}
	analyticsSvc := &analytics.Service{Source: &analytics.Store{DB: d.DB}, Families: familySvc}

	ah := &handler.AuthHandler{Svc: authSvc, JWT: d.JWT, Log: d.Log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	uh := &handler.UserHandler{Svc: authSvc, Log: d.Log}
	fh := &handler.FamilyHandler{Svc: familySvc, Log: d.Log}
	eh := &handler.EventHandler{Svc: events, Log: d.Log}
	th := &handler.TransactionHandler{Svc: recorder, Log: d.Log}
	rh := &handler.ReturnsHandler{Svc: returnsSvc, Log: d.Log}
	anh := &handler.AnalyticsHandler{Svc: analyticsSvc, Log: d.Log}
	nh := &handler.NotificationHandler{Svc: notifySvc, Log: d.Log}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Get("/user", uh.Get)
		r.Put("/user", uh.Update)

		r.Route("/families", func(r chi.Router) {
			r.Get("/", fh.List)
			r.Post("/", fh.Create)
			r.Post("/join", fh.Join)

			r.Get("/{id}", fh.Get)
			r.Put("/{id}", fh.Update)
			r.Get("/{id}/members", fh.Members)
			r.Put("/{id}/members", fh.SetMemberRole)
			r.Post("/{id}/invite-code", fh.RegenerateInviteCode)
			r.Post("/{id}/invites", fh.Invite)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eh.List)
			r.Post("/", eh.Create)
			r.Get("/{id}", eh.Get)
			r.Put("/{id}", eh.Update)
			r.Delete("/{id}", eh.Delete)
		})
		r.Get("/favorites", eh.Favorites)
		r.Post("/favorites", eh.ToggleFavorite)
		r.Get("/search", eh.Search)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", th.List)
			r.Post("/", th.Create)
			r.Post("/import", th.Import)
			r.Get("/export", th.Export)

			r.Get("/{id}", th.Get)
			r.Put("/{id}", th.Update)
			r.Delete("/{id}", th.Delete)
		})
		r.Get("/contributors", th.Contributors)

		r.Get("/returns", rh.Get)
		r.Get("/analytics", anh.Get)

		r.Get("/notifications", nh.List)
		r.Put("/notifications", nh.MarkRead)
	})

	return r
}
