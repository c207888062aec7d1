package routers

import (
	sessionManager "chat/internal/session_management"

	"github.com/go-chi/chi/v5"
)

func ChatRoutes(r *chi.Mux, h *sessionManager.Handlers) {
	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Get("/ws", h.ChatWS)
		r.Get("/rooms/{roomID}", h.RoomStatus)
		r.Post("/admin/kick", h.AdminKick)
	})
}
