package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/store"
)

type menuItemResponse struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description,omitempty"`
	Category        menu.Category             `json:"category"`
	Size            menu.Size                 `json:"size"`
	BasePrice       decimal.Decimal           `json:"base_price"`
	Image           string                    `json:"image,omitempty"`
	Ingredients     []menu.Ingredient         `json:"ingredients,omitempty"`
	Options         menu.CustomizationOptions `json:"options"`
	Available       bool                      `json:"available"`
	PreparationTime int                       `json:"preparation_time"`
}

func toMenuItemResponse(item *menu.Item) menuItemResponse {
	return menuItemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Description:     item.Description,
		Category:        item.Category,
		Size:            item.Size,
		BasePrice:       item.BasePrice,
		Image:           item.Image,
		Ingredients:     item.Ingredients,
		Options:         item.Options,
		Available:       item.Available,
		PreparationTime: item.PreparationTime,
	}
}

func (s *Server) listMenu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := menu.Filter{
		Category: menu.Category(q.Get("category")),
		Search:   q.Get("search"),
	}
	if raw := q.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, errBadRequest)
			return
		}
		filter.Available = &available
	}

	items, err := s.menus.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]menuItemResponse, len(items))
	for i := range items {
		out[i] = toMenuItemResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.menus.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

type createMenuItemRequest struct {
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	Category        menu.Category             `json:"category"`
	Size            menu.Size                 `json:"size"`
	BasePrice       decimal.Decimal           `json:"base_price"`
	Image           string                    `json:"image"`
	Ingredients     []menu.Ingredient         `json:"ingredients"`
	Options         menu.CustomizationOptions `json:"options"`
	PreparationTime int                       `json:"preparation_time"`
}

func (s *Server) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item := menu.NewItem(uuid.New().String(), req.Name, req.Category, req.BasePrice)
	item.Description = req.Description
	if req.Size != "" {
		item.Size = req.Size
	}
	item.Image = req.Image
	item.Ingredients = req.Ingredients
	item.Options = req.Options
	if req.PreparationTime > 0 {
		item.PreparationTime = req.PreparationTime
	}

	if err := s.menus.Create(r.Context(), item); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *Server) setMenuAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.menus.SetAvailability(r.Context(), r.PathValue("id"), req.Available); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type storeResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Address   store.Address  `json:"address"`
	Phone     string         `json:"phone,omitempty"`
	Email     string         `json:"email,omitempty"`
	Hours     store.Hours    `json:"hours"`
	Active    bool           `json:"active"`
	ManagerID string         `json:"manager_id,omitempty"`
	Settings  store.Settings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
}

func toStoreResponse(s *store.Store) storeResponse {
	return storeResponse{
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address,
		Phone:     s.Phone,
		Email:     s.Email,
		Hours:     s.Hours,
		Active:    s.Active,
		ManagerID: s.ManagerID,
		Settings:  s.Settings,
		CreatedAt: s.CreatedAt,
	}
}

type createStoreRequest struct {
	Name      string          `json:"name"`
	Address   store.Address   `json:"address"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
	Hours     store.Hours     `json:"hours"`
	ManagerID string          `json:"manager_id"`
	Settings  *store.Settings `json:"settings"`
}

func (s *Server) createStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st := &store.Store{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Address:   req.Address,
		Phone:     req.Phone,
		Email:     req.Email,
		Hours:     req.Hours,
		Active:    true,
		ManagerID: req.ManagerID,
		Settings:  store.DefaultSettings(),
	}
	if req.Settings != nil {
		st.Settings = *req.Settings
	}

	if err := s.stores.Create(r.Context(), st); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoreResponse(st))
}

func (s *Server) getStore(w http.ResponseWriter, r *http.Request) {
	st, err := s.stores.GetByID(r.Context(), r.PathValue("storeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreResponse(st))
}

func (s *Server) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.stores.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]storeResponse, len(stores))
	for i := range stores {
		out[i] = toStoreResponse(&stores[i])
	}
	writeJSON(w, http.StatusOK, out)
}
