package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/service"
)

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := h.svc.Catalog.List(r.Context(), entity.ItemFilter{
		Category: strings.ToLower(q.Get("category")),
		Search:   q.Get("search"),
		Popular:  q.Get("sort") == "popular",
		Limit:    limit,
		Offset:   offset,
	})
	h.respond(w, r, http.StatusOK, items, err)
}

func (h *Handler) handleFlashSale(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Catalog.FlashSale(r.Context())
	h.respond(w, r, http.StatusOK, items, err)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.Catalog.Preview(r.Context(), chi.URLParam(r, "customID"))
	h.respond(w, r, http.StatusOK, preview, err)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req service.NewItemInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.svc.Catalog.AddItem(r.Context(), identityFrom(r.Context()), req)
	h.respond(w, r, http.StatusCreated, item, err)
}

type discountRequest struct {
	Percent int `json:"percent"`
	Days    int `json:"days"`
}

func (h *Handler) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.svc.Catalog.SetDiscount(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "customID"), req.Percent, req.Days)
	h.respond(w, r, http.StatusOK, item, err)
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	var req service.RateInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Reviews.RateItem(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "customID"), req)
	h.respond(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	review, err := h.svc.Reviews.LikeReview(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, review, err)
}

func (h *Handler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	review, err := h.svc.Reviews.UnlikeReview(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, review, err)
}

func (h *Handler) handleViewCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Carts.View(r.Context(), identityFrom(r.Context()))
	h.respond(w, r, http.StatusOK, cart, err)
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req entity.CartLine
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cart, err := h.svc.Carts.Add(r.Context(), identityFrom(r.Context()), req)
	h.respond(w, r, http.StatusOK, cart, err)
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Carts.Remove(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "customID"))
	h.respond(w, r, http.StatusOK, cart, err)
}
