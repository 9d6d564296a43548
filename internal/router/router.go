// Package router mounts the applicant pages, the staff API and the file
// download route on one chi router.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/handler"
	mw "github.com/parisxmas/intake/internal/middleware"
)

// Handlers is everything the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Intake        *handler.IntakeHandler
	Questionnaire *handler.QuestionnaireHandler
	Live          http.Handler
	Form          *handler.FormHandler
	Submission    *handler.SubmissionHandler
	Document      *handler.DocumentHandler
	Search        *handler.SearchHandler
	Dashboard     *handler.DashboardHandler
	Admin         *handler.AdminHandler
}

func New(jwtSecret string, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.SecureHeaders)

	r.Get("/healthz", handler.Health)
	r.Get("/files/{token}", h.Document.Download)

	// Applicant pages
	r.Group(func(r chi.Router) {
		r.Use(auth.Optional(jwtSecret))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/apply", http.StatusFound)
		})
		r.Get("/login", h.Auth.LoginPage)
		r.Post("/login", h.Auth.LoginForm)
		r.Post("/logout", h.Auth.Logout)

		r.Get("/apply", h.Intake.Show)
		r.Post("/apply", h.Intake.Apply)
		r.Post("/apply/signature", h.Intake.Signature)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)

			r.Get("/questionnaire", h.Questionnaire.Show)
			r.Post("/questionnaire", h.Questionnaire.Apply)
			r.Route("/questionnaire/sections/{key}", func(r chi.Router) {
				r.Post("/topic", h.Questionnaire.Topic)
				r.Post("/entries", h.Questionnaire.AddEntry)
				r.Post("/entries/{index}", h.Questionnaire.UpdateEntry)
				r.Post("/entries/{index}/delete", h.Questionnaire.RemoveEntry)
				r.Post("/entries/{index}/members", h.Questionnaire.ToggleMember)
			})
			if h.Live != nil {
				r.Get("/questionnaire/live", h.Live.ServeHTTP)
			}
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", h.Auth.Login)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			r.Get("/auth/me", h.Auth.Me)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireStaff)

				// Dashboard
				r.Get("/dashboard", h.Dashboard.Dashboard)

				// Form fields
				r.Get("/forms/{formId}/fields", h.Form.List)
				r.Post("/forms/{formId}/fields", h.Form.Create)
				r.Get("/forms/{formId}/fields/{fieldId}", h.Form.Get)
				r.Put("/forms/{formId}/fields/{fieldId}", h.Form.Update)
				r.Delete("/forms/{formId}/fields/{fieldId}", h.Form.Delete)

				// Submissions
				r.Get("/forms/{formId}/submissions", h.Submission.List)
				r.Get("/forms/{formId}/submissions/{subId}", h.Submission.Get)

				// Documents
				r.Get("/documents", h.Document.List)
				r.Post("/documents", h.Document.Upload)
				r.Get("/documents/folders", h.Document.Folders)
				r.Get("/documents/{docId}/url", h.Document.URL)
				r.Delete("/documents/{docId}", h.Document.Delete)

				// Search
				r.Get("/search", h.Search.Query)
				r.Post("/search", h.Search.Search)

				// Users
				r.Get("/users", h.Admin.ListUsers)
				r.Delete("/users/{userId}", h.Admin.DeleteUser)
			})
		})
	})

	return r
}
