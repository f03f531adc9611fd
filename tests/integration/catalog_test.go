//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListMenu_Seeded(t *testing.T) {
	resp := doGet(t, "/api/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != 3 {
		t.Fatalf("expected 3 menu items, got %d", len(items))
	}
}

func TestListMenu_CategoryFilter(t *testing.T) {
	resp := doGet(t, "/api/menu?category=drinks")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != 1 {
		t.Fatalf("expected 1 drink, got %d", len(items))
	}
	if items[0].ID != seedColaID {
		t.Errorf("id: got %q, want %q", items[0].ID, seedColaID)
	}
}

func TestListMenu_BadAvailableFlag(t *testing.T) {
	resp := doGet(t, "/api/menu?available=maybe")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetMenuItem(t *testing.T) {
	resp := doGet(t, "/api/menu/" + seedMargheritaID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	item := decodeJSON[menuItemResponse](t, resp)
	if item.Name != "Margherita" {
		t.Errorf("name: got %q, want Margherita", item.Name)
	}
	if got := money(t, item.BasePrice); got != 10 {
		t.Errorf("base price: got %v, want 10", got)
	}
}

func TestGetMenuItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/menu/menu-missing")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMenuAvailability_Toggle(t *testing.T) {
	// Create a dedicated item so toggling does not disturb other tests.
	created := createMenuItem(t, jsonM{
		"name":       "Quattro Formaggi",
		"category":   "pizza",
		"base_price": "13.00",
	})

	resp := doPatch(t, "/api/menu/"+created.ID+"/availability", jsonM{"available": false})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Unavailable items cannot be ordered.
	order := takeawayOrder(orderLineRequest{MenuItemID: created.ID, Quantity: 1})
	resp = doPost(t, "/api/stores/"+seedStoreID+"/orders", order)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 ordering unavailable item, got %d", resp.StatusCode)
	}
}

func TestStores_CreateAndGet(t *testing.T) {
	body := jsonM{
		"name": "Airport",
		"address": jsonM{
			"street":   "1 Terminal Rd",
			"city":     "Springfield",
			"state":    "IL",
			"zip_code": "62707",
			"country":  "US",
		},
		"hours": jsonM{"open": "06:00", "close": "22:00"},
	}
	resp := doPost(t, "/api/stores", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create store: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}](t, resp)
	resp.Body.Close()

	if created.Name != "Airport" {
		t.Errorf("name: got %q, want Airport", created.Name)
	}
	if !created.Active {
		t.Error("new store should be active")
	}

	resp = doGet(t, "/api/stores/"+created.ID)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get store: expected 200, got %d", resp.StatusCode)
	}
}

func TestStores_List(t *testing.T) {
	resp := doGet(t, "/api/stores")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stores := decodeJSON[[]jsonM](t, resp)
	if len(stores) < 1 {
		t.Fatal("expected at least the seeded store")
	}
}

func createMenuItem(t *testing.T, body jsonM) menuItemResponse {
	t.Helper()

	resp := doPost(t, "/api/menu", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create menu item: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[menuItemResponse](t, resp)
}
