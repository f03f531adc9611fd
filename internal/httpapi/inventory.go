package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
)

type createInventoryRequest struct {
	Name         string             `json:"name"`
	Category     inventory.Category `json:"category"`
	Unit         string             `json:"unit"`
	CurrentStock decimal.Decimal    `json:"current_stock"`
	MinimumStock decimal.Decimal    `json:"minimum_stock"`
	CostPerUnit  decimal.Decimal    `json:"cost_per_unit"`
	Supplier     string             `json:"supplier"`
}

type inventoryItemResponse struct {
	ID            string             `json:"id"`
	StoreID       string             `json:"store_id"`
	Name          string             `json:"name"`
	Category      inventory.Category `json:"category"`
	Unit          string             `json:"unit"`
	CurrentStock  decimal.Decimal    `json:"current_stock"`
	MinimumStock  decimal.Decimal    `json:"minimum_stock"`
	ReorderPoint  decimal.Decimal    `json:"reorder_point"`
	CostPerUnit   decimal.Decimal    `json:"cost_per_unit"`
	Supplier      string             `json:"supplier,omitempty"`
	LastRestocked *time.Time         `json:"last_restocked,omitempty"`
}

func toInventoryItemResponse(it *inventory.Item) inventoryItemResponse {
	resp := inventoryItemResponse{
		ID:           it.ID,
		StoreID:      it.StoreID,
		Name:         it.Name,
		Category:     it.Category,
		Unit:         it.Unit,
		CurrentStock: it.CurrentStock,
		MinimumStock: it.MinimumStock,
		ReorderPoint: it.ReorderPoint,
		CostPerUnit:  it.CostPerUnit,
		Supplier:     it.Supplier,
	}
	if !it.LastRestocked.IsZero() && it.LastRestocked.Unix() != 0 {
		last := it.LastRestocked
		resp.LastRestocked = &last
	}
	return resp
}

func toInventoryItemResponses(items []inventory.Item) []inventoryItemResponse {
	out := make([]inventoryItemResponse, len(items))
	for i := range items {
		out[i] = toInventoryItemResponse(&items[i])
	}
	return out
}

func (s *Server) createInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req createInventoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item := inventory.NewItem(
		uuid.New().String(), r.PathValue("storeID"), req.Name, req.Category,
		req.Unit, req.CurrentStock, req.MinimumStock, req.CostPerUnit,
	)
	item.Supplier = req.Supplier

	if err := s.ledger.AddItem(r.Context(), item); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryItemResponse(item))
}

func (s *Server) listInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.inventory.ListByStore(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryItemResponses(items))
}

func (s *Server) listLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.ledger.LowStock(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryItemResponses(items))
}

func (s *Server) listCriticalStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.ledger.CriticalStock(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryItemResponses(items))
}

type categorySummary struct {
	ItemCount     int             `json:"item_count"`
	TotalValue    decimal.Decimal `json:"total_value"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	LowStockCount int             `json:"low_stock_count"`
}

type valuationResponse struct {
	TotalValue    decimal.Decimal                        `json:"total_value"`
	ItemCount     int                                    `json:"item_count"`
	LowStockCount int                                    `json:"low_stock_count"`
	Categories    map[inventory.Category]categorySummary `json:"categories"`
}

func (s *Server) getValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.ledger.Valuation(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	categories := make(map[inventory.Category]categorySummary, len(v.Categories))
	for cat, cs := range v.Categories {
		categories[cat] = categorySummary{
			ItemCount:     cs.ItemCount,
			TotalValue:    cs.TotalValue,
			AverageCost:   cs.AverageCost,
			LowStockCount: cs.LowStockCount,
		}
	}
	writeJSON(w, http.StatusOK, valuationResponse{
		TotalValue:    v.TotalValue,
		ItemCount:     v.ItemCount,
		LowStockCount: v.LowStockCount,
		Categories:    categories,
	})
}

type suggestionResponse struct {
	Item           inventoryItemResponse `json:"item"`
	Urgency        inventory.Urgency     `json:"urgency"`
	SuggestedOrder decimal.Decimal       `json:"suggested_order"`
	EstimatedCost  decimal.Decimal       `json:"estimated_cost"`
}

func (s *Server) listRestockSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.ledger.RestockSuggestions(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]suggestionResponse, len(suggestions))
	for i, sg := range suggestions {
		out[i] = suggestionResponse{
			Item:           toInventoryItemResponse(&sg.Item),
			Urgency:        sg.Urgency,
			SuggestedOrder: sg.SuggestedOrder,
			EstimatedCost:  sg.EstimatedCost,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type restockRequest struct {
	Quantity    decimal.Decimal  `json:"quantity"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit"`
}

func (s *Server) restockItem(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.ledger.Restock(r.Context(), r.PathValue("id"), req.Quantity, req.CostPerUnit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}
