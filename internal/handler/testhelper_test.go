package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/internal/assets"
	"github.com/gunta/skypilot/internal/auth"
	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/locale"
	"github.com/gunta/skypilot/internal/middleware"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/internal/store"
)

const testJWTSecret = "test-secret-for-handlers"

// fakeAPI is an in-memory stand-in for the remote videos API
type fakeAPI struct {
	mu     sync.Mutex
	videos map[string]model.Video
	order  []string
	nextID int
}

func newFakeAPI() *fakeAPI {
	api := &fakeAPI{videos: make(map[string]model.Video)}
	api.add(model.Video{ID: "video_a", Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "4", Status: model.StatusCompleted, Progress: 100, CreatedAt: 1700000000})
	api.add(model.Video{ID: "video_b", Model: model.ModelSora2Pro, Size: model.SizeLandscape, Seconds: "8", Status: model.StatusQueued, CreatedAt: 1700000100})
	return api
}

func (a *fakeAPI) add(v model.Video) {
	a.videos[v.ID] = v
	a.order = append([]string{v.ID}, a.order...)
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/videos")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	writeJSON := func(v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	notFound := func() {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"Video not found"}}`))
	}

	switch {
	case r.Method == http.MethodGet && path == "":
		page := model.VideoPage{Object: "list"}
		for _, id := range a.order {
			page.Data = append(page.Data, a.videos[id])
		}
		writeJSON(page)
	case r.Method == http.MethodPost && path == "":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		a.nextID++
		v := model.Video{
			ID:        fmt.Sprintf("video_new_%d", a.nextID),
			Model:     body["model"],
			Size:      body["size"],
			Seconds:   body["seconds"],
			Prompt:    body["prompt"],
			Status:    model.StatusQueued,
			CreatedAt: time.Now().Unix(),
		}
		a.add(v)
		writeJSON(v)
	case r.Method == http.MethodGet && len(parts) == 1:
		v, ok := a.videos[parts[0]]
		if !ok {
			notFound()
			return
		}
		writeJSON(v)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "content":
		if _, ok := a.videos[parts[0]]; !ok {
			notFound()
			return
		}
		w.Write([]byte("asset:" + r.URL.Query().Get("variant")))
	case r.Method == http.MethodDelete && len(parts) == 1:
		if _, ok := a.videos[parts[0]]; !ok {
			notFound()
			return
		}
		delete(a.videos, parts[0])
		writeJSON(model.DeleteResult{ID: parts[0], Object: "video.deleted", Deleted: true})
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "remix":
		src, ok := a.videos[parts[0]]
		if !ok {
			notFound()
			return
		}
		a.nextID++
		v := src
		v.ID = fmt.Sprintf("video_remix_%d", a.nextID)
		v.Status = model.StatusQueued
		v.RemixedFromVideoID = &src.ID
		a.add(v)
		writeJSON(v)
	default:
		notFound()
	}
}

// testApp holds all components needed for testing
type testApp struct {
	app          *fiber.App
	orchestrator *service.Orchestrator
	downloadRoot string
}

// setupApp wires handlers the way main.go does, against fake upstreams
func setupApp(t *testing.T) *testApp {
	t.Helper()

	apiServer := httptest.NewServer(newFakeAPI())
	t.Cleanup(apiServer.Close)
	ratesServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"EUR":0.5,"JPY":150},"time_last_update_unix":1700000000}`))
	}))
	t.Cleanup(ratesServer.Close)

	cfg := &config.Config{
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", BaseURL: apiServer.URL, Timeout: 5 * time.Second},
		Currency: config.CurrencyConfig{RatesURL: ratesServer.URL, Base: "USD", Default: "USD", TTL: time.Hour},
		Defaults: model.Defaults{
			Model:          model.ModelSora2,
			Size:           model.SizePortrait,
			Seconds:        "4",
			DownloadChoice: model.ChoiceVideo,
			PollInterval:   10 * time.Millisecond,
		},
	}

	validate := validator.New()

	videoClient := client.NewOpenAIClient(&cfg.OpenAI)
	kv := store.NewFileStore(t.TempDir() + "/store.json")
	settings := store.NewSettings(kv, cfg.Currency.Default).WithDetector(func() locale.Detected {
		return locale.Detected{Locale: "en-US", Currency: "USD"}
	})
	cache := currency.NewCache(client.NewExchangeClient(&cfg.Currency), kv, cfg.Currency.TTL)
	currencySvc := currency.NewService(cache, settings, cfg.Currency.Base)

	orch := service.NewOrchestrator(service.Dependencies{
		Videos:     videoClient,
		Currency:   currencySvc,
		Downloader: assets.NewDownloader(videoClient, nil),
		Defaults:   cfg.Defaults,
	})
	t.Cleanup(func() { orch.Close() })

	downloadRoot := t.TempDir()
	videoHandler := NewVideoHandler(orch, videoClient, currencySvc, downloadRoot, validate)
	stateHandler := NewStateHandler(orch, validate)
	settingsHandler := NewSettingsHandler(settings, currencySvc, orch, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Get("/state", stateHandler.Get)
	api.Get("/state/tracked", stateHandler.Tracked)
	api.Post("/state/reset-error", stateHandler.ResetError)
	api.Patch("/defaults", stateHandler.Defaults)
	api.Get("/capabilities", stateHandler.Capabilities)

	videos := api.Group("/videos")
	videos.Get("/", videoHandler.List)
	videos.Get("/export", videoHandler.Export)
	videos.Post("/watch/cancel", videoHandler.CancelWatch)
	videos.Post("/", rateLimiter.CreateLimit(10000), videoHandler.Create)
	videos.Get("/:id", videoHandler.Get)
	videos.Post("/:id/remix", rateLimiter.CreateLimit(10000), videoHandler.Remix)
	videos.Post("/:id/download", videoHandler.Download)
	videos.Delete("/:id", videoHandler.Delete)

	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings/currency", settingsHandler.SetCurrency)
	api.Put("/settings/language", settingsHandler.SetLanguage)
	api.Get("/currency/rates", settingsHandler.Rates)

	return &testApp{app: app, orchestrator: orch, downloadRoot: downloadRoot}
}

func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, "test-user-123", "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
