package handler

import (
	"net/http"
	"testing"
)

func TestSettings(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, http.MethodGet, "/api/settings", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["currency"] != "USD" || result["language"] != "en" {
		t.Errorf("unexpected settings %v", result)
	}

	resp = doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/currency", `{"currency":"eur"}`)
	assertStatus(t, resp, http.StatusOK)
	if parseJSON(t, resp)["currency"] != "EUR" {
		t.Error("expected normalized EUR")
	}
	if got := ta.orchestrator.Snapshot().PreferredCurrency; got != "EUR" {
		t.Errorf("expected orchestrator formatter EUR, got %q", got)
	}

	resp = doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/currency", `{"currency":"ZZZ"}`)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/language", `{"language":"pt-BR"}`)
	assertStatus(t, resp, http.StatusOK)
	if parseJSON(t, resp)["language"] != "pt" {
		t.Error("expected pt")
	}

	resp = doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/language", `{"language":"klingon"}`)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRates(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, http.MethodGet, "/api/currency/rates", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["base"] != "USD" {
		t.Errorf("unexpected base %v", result["base"])
	}
	rates := result["rates"].(map[string]interface{})
	if rates["JPY"] != float64(150) {
		t.Errorf("unexpected JPY rate %v", rates["JPY"])
	}
}
