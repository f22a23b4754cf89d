package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/service"
)

type checkoutRequest struct {
	Items []service.CheckoutItem `json:"items"`
}

type addressRequest struct {
	AddressID string `json:"address_id"`
}

type payRequest struct {
	// Amount is optional; zero charges the order total.
	Amount int64 `json:"amount"`
}

type cardPayRequest struct {
	CardID string `json:"card_id"`
}

type confirmDeliveryRequest struct {
	Received *bool `json:"received"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.svc.Checkout.Checkout(r.Context(), identityFrom(r.Context()), req.Items)
	h.respond(w, r, http.StatusCreated, order, err)
}

func (h *Handler) handleCheckoutCart(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Checkout.CheckoutCart(r.Context(), identityFrom(r.Context()))
	h.respond(w, r, http.StatusCreated, order, err)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Fulfillment.ListOrders(r.Context(), identityFrom(r.Context()))
	h.respond(w, r, http.StatusOK, groups, err)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Fulfillment.GetOrder(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, order, err)
}

func (h *Handler) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Fulfillment.History(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, entries, err)
}

func (h *Handler) handleSelectAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.svc.Checkout.SelectAddress(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), req.AddressID)
	h.respond(w, r, http.StatusOK, order, err)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	session, err := h.svc.Payments.Initiate(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), req.Amount)
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handlePayWithCard(w http.ResponseWriter, r *http.Request) {
	var req cardPayRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Payments.PayWithSavedCard(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), req.CardID)
	h.respond(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	var req confirmDeliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Received == nil {
		h.writeError(w, r, entity.ValidationError("received is required"))
		return
	}
	result, err := h.svc.Fulfillment.ConfirmDelivery(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), *req.Received)
	h.respond(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Fulfillment.Cancel(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, order, err)
}

func (h *Handler) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Fulfillment.ConfirmOrder(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, order, err)
}

func (h *Handler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
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
	orders, err := h.svc.Fulfillment.ListAll(r.Context(), identityFrom(r.Context()), entity.OrderFilter{
		PaymentStatus:  entity.PaymentStatus(q.Get("payment_status")),
		DeliveryStatus: entity.DeliveryStatus(q.Get("delivery_status")),
		Limit:          limit,
		Offset:         offset,
	})
	if orders == nil && err == nil {
		orders = []entity.Order{}
	}
	h.respond(w, r, http.StatusOK, orders, err)
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Fulfillment.MarkShipped(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, order, err)
}

func (h *Handler) handleRequestDelivery(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Fulfillment.RequestDeliveryConfirmation(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, order, err)
}
