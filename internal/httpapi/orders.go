package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

type lineRequest struct {
	MenuItemID    string              `json:"menu_item_id"`
	Quantity      int                 `json:"quantity"`
	Customization order.Customization `json:"customization"`
}

type createOrderRequest struct {
	Customer              order.Customer      `json:"customer"`
	Lines                 []lineRequest       `json:"lines"`
	Type                  order.Type          `json:"order_type"`
	PaymentMethod         order.PaymentMethod `json:"payment_method"`
	Discount              decimal.Decimal     `json:"discount"`
	LoyaltyPointsRedeemed int                 `json:"loyalty_points_redeemed"`
	Notes                 string              `json:"notes"`
}

type orderResponse struct {
	ID                    string               `json:"id"`
	Number                string               `json:"order_number"`
	StoreID               string               `json:"store_id"`
	Customer              order.Customer       `json:"customer"`
	Lines                 []order.Line         `json:"lines"`
	Subtotal              decimal.Decimal      `json:"subtotal"`
	Tax                   decimal.Decimal      `json:"tax"`
	DeliveryFee           decimal.Decimal      `json:"delivery_fee"`
	Discount              decimal.Decimal      `json:"discount"`
	Total                 decimal.Decimal      `json:"total"`
	Type                  order.Type           `json:"order_type"`
	Status                order.Status         `json:"status"`
	PaymentStatus         order.PaymentStatus  `json:"payment_status"`
	PaymentMethod         order.PaymentMethod  `json:"payment_method"`
	PaymentDetails        order.PaymentDetails `json:"payment_details"`
	AssignedTo            string               `json:"assigned_to,omitempty"`
	EstimatedDelivery     *time.Time           `json:"estimated_delivery,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
	PreparationTime       int                  `json:"preparation_time"`
	LoyaltyPointsEarned   int                  `json:"loyalty_points_earned"`
	LoyaltyPointsRedeemed int                  `json:"loyalty_points_redeemed"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:                    o.ID,
		Number:                o.Number,
		StoreID:               o.StoreID,
		Customer:              o.Customer,
		Lines:                 o.Lines,
		Subtotal:              o.Subtotal,
		Tax:                   o.Tax,
		DeliveryFee:           o.DeliveryFee,
		Discount:              o.Discount,
		Total:                 o.Total,
		Type:                  o.Type,
		Status:                o.Status,
		PaymentStatus:         o.PaymentStatus,
		PaymentMethod:         o.PaymentMethod,
		PaymentDetails:        o.PaymentDetails,
		AssignedTo:            o.AssignedTo,
		Notes:                 o.Notes,
		PreparationTime:       o.PreparationTime,
		LoyaltyPointsEarned:   o.LoyaltyPointsEarned,
		LoyaltyPointsRedeemed: o.LoyaltyPointsRedeemed,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	if !o.EstimatedDelivery.IsZero() {
		est := o.EstimatedDelivery
		resp.EstimatedDelivery = &est
	}
	return resp
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lines := make([]order.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.LineRequest{
			MenuItemID:    l.MenuItemID,
			Quantity:      l.Quantity,
			Customization: l.Customization,
		}
	}

	o, err := s.orders.Create(r.Context(), order.CreateRequest{
		StoreID:               r.PathValue("storeID"),
		Customer:              req.Customer,
		Lines:                 lines,
		Type:                  req.Type,
		PaymentMethod:         req.PaymentMethod,
		Discount:              req.Discount,
		LoyaltyPointsRedeemed: req.LoyaltyPointsRedeemed,
		Notes:                 req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type pageResponse struct {
	Orders     []orderResponse `json:"orders"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := s.orders.List(r.Context(), r.PathValue("storeID"), order.ListFilter{
		Statuses: order.ParseStatusFilter(q.Get("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := pageResponse{
		Orders:     make([]orderResponse, len(result.Orders)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for i := range result.Orders {
		resp.Orders[i] = toOrderResponse(&result.Orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status  order.Status `json:"status"`
	ActorID string       `json:"actor_id"`
	Notes   string       `json:"notes"`
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.ActorID, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updatePaymentRequest struct {
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	PaymentID     string              `json:"payment_id"`
}

func (s *Server) updateOrderPayment(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.orders.UpdatePaymentStatus(r.Context(), r.PathValue("id"), req.PaymentStatus, req.PaymentMethod, req.PaymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
