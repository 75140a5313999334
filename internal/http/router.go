package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"attachly/internal/config"
	"attachly/internal/http/handlers"
	middlewarex "attachly/internal/http/middleware"
	"attachly/internal/services/application"
	"attachly/internal/services/webhook"
	"attachly/internal/store/repositories"
)

// RouterDependencies holds everything the HTTP surface needs.
type RouterDependencies struct {
	Config        config.Cfg
	Applications  *application.Service
	Opportunities repositories.OpportunityRepository
	Users         repositories.UserRepository
	Webhooks      *webhook.Processor
	Limiter       *middlewarex.RedisLimiter
	UploadDir     string
}

func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Uploaded documents are served straight off disk.
	if deps.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	// Applicant API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.BearerAuth(deps.Users))
		r.Use(middlewarex.RateLimit(deps.Limiter, deps.Config.Sec.RateLimitPerMin))

		r.Get("/opportunities", handlers.ListOpportunities(deps.Opportunities))
		r.Get("/opportunities/{id}", handlers.GetOpportunity(deps.Opportunities))

		r.Post("/applications", handlers.CreateApplication(deps.Applications))
		r.Get("/applications", handlers.ListMyApplications(deps.Applications))
		r.Get("/applications/{id}", handlers.GetApplication(deps.Applications))
		r.Patch("/applications/{id}/cover-letter", handlers.UpdateCoverLetter(deps.Applications))
		r.Delete("/applications/{id}", handlers.WithdrawApplication(deps.Applications))
		r.Post("/applications/{id}/pay", handlers.InitiatePayment(deps.Applications))
	})

	// Back office
	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Config))

		r.Post("/opportunities", handlers.CreateOpportunity(deps.Opportunities))
		r.Put("/opportunities/{id}", handlers.UpdateOpportunity(deps.Opportunities))
		r.Get("/opportunities/{id}/applications", handlers.ListOpportunityApplications(deps.Applications))
		r.Patch("/applications/{id}/status", handlers.SetApplicationStatus(deps.Applications))
	})

	// Provider callbacks: validated by signature, never by session.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{provider}", handlers.ProviderWebhook(deps.Webhooks))
	})

	return r
}
