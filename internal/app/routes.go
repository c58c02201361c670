package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)
	r.Use(app.requestLogger)
	r.Use(otelchi.Middleware("showtime-booking-api", otelchi.WithChiRoutes(r)))

	r.Get("/healthcheck", app.GetHealth)

	r.Route("/schedules", func(r chi.Router) {
		r.Get("/", app.ListSchedulesHandler)
		r.Post("/", app.CreateScheduleHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetScheduleHandler)
			r.Patch("/", app.UpdateScheduleHandler)
			r.Delete("/", app.DeleteScheduleHandler)
			r.Get("/seats", app.GetSeatMapHandler)
		})
	})

	r.Get("/rooms/{roomId}/available-slots", app.GetAvailableSlotsHandler)

	r.Group(func(r chi.Router) {
		r.Use(app.requireUser)

		r.Get("/users/me/reservations", app.GetReservationsOfUserHandler)

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", app.CreateReservationHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetReservationHandler)
				r.Post("/payment", app.InitiatePaymentHandler)
				if app.config.ManualPaymentConfirm {
					r.Post("/payment/confirm", app.ConfirmPaymentHandler)
				}
				r.Post("/cancel", app.CancelReservationHandler)
				r.Post("/refund", app.RefundReservationHandler)
			})
		})
	})

	r.Post("/webhook/stripe", app.StripeWebhookHandler)

	return r
}
