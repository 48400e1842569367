package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Post("/save", h.Save)
		r.Post("/confirm", h.Confirm)

		r.Route("/draft", func(r chi.Router) {
			r.Get("/", h.ShowDraft)
			r.Patch("/", h.UpdateTotals)
			r.Delete("/", h.DiscardDraft)
			r.Post("/selection", h.SelectProduct)
			r.Post("/repeat-last", h.RepeatLastOrder)
			r.Post("/lines", h.AddLine)
			r.Patch("/lines/{lineID}", h.UpdateLine)
			r.Put("/lines/{lineID}/packaging", h.ChangePackaging)
			r.Delete("/lines/{lineID}", h.RemoveLine)
		})
	})
}
