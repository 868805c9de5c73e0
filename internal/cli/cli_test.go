package cli

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gunta/skypilot/internal/model"
)

// fakeVideos serves the list, retrieve and delete endpoints.
type fakeVideos struct {
	mu     sync.Mutex
	videos []model.Video
}

func (f *fakeVideos) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/videos"), "/")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && id == "":
		json.NewEncoder(w).Encode(model.VideoPage{Object: "list", Data: f.videos})
	case r.Method == http.MethodGet:
		for _, v := range f.videos {
			if v.ID == id {
				json.NewEncoder(w).Encode(v)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"Video not found"}}`))
	case r.Method == http.MethodDelete:
		for i, v := range f.videos {
			if v.ID == id {
				f.videos = append(f.videos[:i], f.videos[i+1:]...)
				json.NewEncoder(w).Encode(model.DeleteResult{ID: id, Deleted: true})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"Video not found"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeVideos) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.videos)
}

// isolate points the CLI at fake upstreams and a private home directory.
func isolate(t *testing.T) *fakeVideos {
	t.Helper()
	api := &fakeVideos{videos: []model.Video{
		{ID: "video_done", Model: model.ModelSora2Pro, Size: model.SizeWideLandscape, Seconds: "4", Status: model.StatusCompleted, Progress: 100, Prompt: "a lighthouse, at dusk", CreatedAt: 1700000100},
		{ID: "video_wait", Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "8", Status: model.StatusQueued, CreatedAt: 1700000000},
	}}
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)
	ratesServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"EUR":0.5},"time_last_update_unix":1700000000}`))
	}))
	t.Cleanup(ratesServer.Close)

	t.Setenv("SKYPILOT_HOME", t.TempDir())
	t.Setenv("SKYPILOT_STORE", "file")
	t.Setenv("SKYPILOT_PLAY_SOUND", "false")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", apiServer.URL)
	t.Setenv("CURRENCY_RATES_URL", ratesServer.URL)
	t.Setenv("CURRENCY_DEFAULT", "USD")
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG", "LANGUAGE"} {
		t.Setenv(key, "")
	}
	return api
}

// captureStdout returns what fn printed.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	out := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		out <- string(data)
	}()

	runErr := fn()
	w.Close()
	return <-out, runErr
}

func TestRunHelpAndUnknownCommand(t *testing.T) {
	if _, err := captureStdout(t, func() error { return Run([]string{"help"}) }); err != nil {
		t.Fatalf("help: %v", err)
	}
	_, err := captureStdout(t, func() error { return Run([]string{"render"}) })
	if err == nil || !strings.Contains(err.Error(), `unknown command "render"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	err := Run([]string{"list", "--status", "done"})
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestListJSONFiltersByStatus(t *testing.T) {
	isolate(t)

	out, err := captureStdout(t, func() error {
		return Run([]string{"list", "--status", "completed", "--json"})
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var payload struct {
		Videos        []model.Video                 `json:"videos"`
		CostSummaries map[string]*model.CostSummary `json:"costSummaries"`
		Currency      string                        `json:"preferredCurrency"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(payload.Videos) != 1 || payload.Videos[0].ID != "video_done" {
		t.Fatalf("videos = %+v, want only video_done", payload.Videos)
	}
	summary := payload.CostSummaries["video_done"]
	if summary == nil || summary.ActualUSD == nil || *summary.ActualUSD != 2.0 {
		t.Errorf("summary = %+v, want actual 2.00 USD", summary)
	}
	if payload.Currency != "USD" {
		t.Errorf("currency = %q, want USD", payload.Currency)
	}
}

func TestExportWritesCSV(t *testing.T) {
	isolate(t)
	dest := filepath.Join(t.TempDir(), "videos.csv")

	if _, err := captureStdout(t, func() error {
		return Run([]string{"export", "--output", dest})
	}); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "id" {
		t.Errorf("first header = %q, want id", records[0][0])
	}
	if records[1][0] != "video_done" || records[2][0] != "video_wait" {
		t.Errorf("row order = %s, %s", records[1][0], records[2][0])
	}
}

func TestCreateRejectsUnsupportedResolution(t *testing.T) {
	isolate(t)

	err := Run([]string{"create", "--prompt", "a fox", "--model", "sora-2", "--size", "1792x1024"})
	if err == nil || !strings.Contains(err.Error(), "cannot render") {
		t.Fatalf("expected resolution error, got %v", err)
	}

	err = Run([]string{"create", "--model", "sora-2"})
	if err == nil || !strings.Contains(err.Error(), "--prompt is required") {
		t.Fatalf("expected prompt error, got %v", err)
	}
}

func TestDeleteWithYes(t *testing.T) {
	api := isolate(t)

	if _, err := captureStdout(t, func() error {
		return Run([]string{"delete", "--id", "video_wait", "--yes"})
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if api.count() != 1 {
		t.Errorf("expected 1 video left, got %d", api.count())
	}

	_, err := captureStdout(t, func() error {
		return Run([]string{"delete", "--id", "video_missing", "--yes"})
	})
	if err == nil {
		t.Fatal("expected error deleting an unknown video")
	}
}

func TestCurrencySetAndShow(t *testing.T) {
	isolate(t)

	if _, err := captureStdout(t, func() error { return Run([]string{"currency", "eur"}) }); err != nil {
		t.Fatalf("currency eur: %v", err)
	}

	out, err := captureStdout(t, func() error { return Run([]string{"currency", "--json"}) })
	if err != nil {
		t.Fatalf("currency --json: %v", err)
	}
	var payload struct {
		Currency string  `json:"currency"`
		Rate     float64 `json:"rate"`
		Warning  string  `json:"warning"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if payload.Currency != "EUR" || payload.Rate != 0.5 {
		t.Errorf("currency = %+v, want EUR at 0.5", payload)
	}
	if payload.Warning != "" {
		t.Errorf("unexpected warning %q", payload.Warning)
	}

	if err := Run([]string{"currency", "zzz"}); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestLanguageNormalizes(t *testing.T) {
	isolate(t)

	out, err := captureStdout(t, func() error { return Run([]string{"language", "--json", "pt-BR"}) })
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	if !strings.Contains(out, `"language": "pt"`) {
		t.Errorf("output %q does not report pt", out)
	}
}

func TestCreateRejectsShortInterval(t *testing.T) {
	isolate(t)

	err := Run([]string{"create", "--prompt", "a fox", "--watch", "--interval", "3ms"})
	if err == nil || !strings.Contains(err.Error(), "--interval must be at least") {
		t.Fatalf("expected interval error, got %v", err)
	}
}

func TestWatchModelInterruptsOnce(t *testing.T) {
	calls := make(chan struct{}, 2)
	var m tea.Model = newWatchModel(func() { calls <- struct{}{} })

	m, _ = m.Update(videoMsg(model.Video{ID: "video_x", Progress: 40, Status: model.StatusInProgress}))
	if view := m.View(); !strings.Contains(view, "video_x") || !strings.Contains(view, "40%") {
		t.Errorf("view = %q, want id and percentage", view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("interrupt callback not called")
	}
	select {
	case <-calls:
		t.Fatal("interrupt callback called twice")
	case <-time.After(50 * time.Millisecond):
	}
	if !strings.Contains(m.View(), "stopping") {
		t.Errorf("view does not show stopping state: %q", m.View())
	}

	if _, cmd := m.Update(watchDoneMsg{}); cmd == nil {
		t.Error("expected quit command once the watch is done")
	}
}
