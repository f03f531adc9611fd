//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListInventory_Seeded(t *testing.T) {
	resp := doGet(t, "/api/stores/"+seedStoreID+"/inventory")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]inventoryItemResponse](t, resp)
	if len(items) < 7 {
		t.Fatalf("expected at least 7 seeded items, got %d", len(items))
	}
}

func TestInventory_CreateLowStockRestock(t *testing.T) {
	// Create an item already below its minimum so it shows up as low stock.
	created := createItem(t, jsonM{
		"name":          "Olive Oil",
		"category":      "sauce",
		"unit":          "l",
		"current_stock": "1",
		"minimum_stock": "5",
		"cost_per_unit": "6.00",
		"supplier":      "Liguria Imports",
	})

	low := listItems(t, "/api/stores/"+seedStoreID+"/inventory/low-stock")
	if !containsItem(low, created.ID) {
		t.Errorf("item %s not reported as low stock", created.ID)
	}

	// Restock above the minimum and check it drops off the low stock list.
	resp := doPost(t, "/api/inventory/"+created.ID+"/restock", jsonM{"quantity": "10"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restock: expected 200, got %d", resp.StatusCode)
	}
	restocked := decodeJSON[inventoryItemResponse](t, resp)
	resp.Body.Close()

	if got := money(t, restocked.CurrentStock); got != 11 {
		t.Errorf("stock after restock: got %v, want 11", got)
	}

	low = listItems(t, "/api/stores/"+seedStoreID+"/inventory/low-stock")
	if containsItem(low, created.ID) {
		t.Errorf("item %s still reported as low stock after restock", created.ID)
	}
}

func TestRestock_UnknownItem(t *testing.T) {
	resp := doPost(t, "/api/inventory/does-not-exist/restock", jsonM{"quantity": "5"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestInventoryValuation(t *testing.T) {
	resp := doGet(t, "/api/stores/"+seedStoreID+"/inventory/valuation")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[struct {
		TotalValue string `json:"total_value"`
		ItemCount  int    `json:"item_count"`
	}](t, resp)

	if v.ItemCount < 7 {
		t.Errorf("item count: got %d, want >= 7", v.ItemCount)
	}
	if money(t, v.TotalValue) <= 0 {
		t.Errorf("total value: got %v, want > 0", v.TotalValue)
	}
}

func TestRestockSuggestions(t *testing.T) {
	resp := doGet(t, "/api/stores/"+seedStoreID+"/inventory/suggestions")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func createItem(t *testing.T, body jsonM) inventoryItemResponse {
	t.Helper()

	resp := doPost(t, "/api/stores/"+seedStoreID+"/inventory", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[inventoryItemResponse](t, resp)
}

func listItems(t *testing.T, path string) []inventoryItemResponse {
	t.Helper()

	resp := doGet(t, path)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list %s: expected 200, got %d", path, resp.StatusCode)
	}
	return decodeJSON[[]inventoryItemResponse](t, resp)
}

func containsItem(items []inventoryItemResponse, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
