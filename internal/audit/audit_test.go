package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evdealer/contractedit/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, Entry{
		TemplateID: "tpl-42",
		SessionID:  "sess-1",
		Actor:      "dashboard",
		Outcome:    OutcomeSaved,
		Detail:     "download https://cdn.example/tpl-42.pdf",
		BodyBytes:  2048,
		DurationMS: 310,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID, got empty string")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.TemplateID != "tpl-42" {
		t.Errorf("TemplateID = %q, want %q", got.TemplateID, "tpl-42")
	}
	if got.Outcome != OutcomeSaved {
		t.Errorf("Outcome = %q, want %q", got.Outcome, OutcomeSaved)
	}
	if got.Actor != "dashboard" {
		t.Errorf("Actor = %q, want %q", got.Actor, "dashboard")
	}
	if got.BodyBytes != 2048 {
		t.Errorf("BodyBytes = %d, want 2048", got.BodyBytes)
	}
	if got.DurationMS != 310 {
		t.Errorf("DurationMS = %d, want 310", got.DurationMS)
	}
}

func TestCreateDefaultsActor(t *testing.T) {
	store := setupStore(t)

	created, err := store.Create(context.Background(), Entry{
		TemplateID: "tpl-42",
		Outcome:    OutcomeFailed,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Actor != "system" {
		t.Errorf("Actor = %q, want %q", created.Actor, "system")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	got, err := store.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for nonexistent ID, got %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed := []Entry{
		{TemplateID: "tpl-1", Outcome: OutcomeSaved},
		{TemplateID: "tpl-1", Outcome: OutcomeRejected},
		{TemplateID: "tpl-2", Outcome: OutcomeSaved},
	}
	for _, e := range seed {
		if _, err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	entries, err := store.List(ctx, ListFilter{TemplateID: "tpl-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for tpl-1, got %d", len(entries))
	}

	entries, err = store.List(ctx, ListFilter{Outcome: OutcomeSaved})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 saved entries, got %d", len(entries))
	}

	entries, err = store.List(ctx, ListFilter{TemplateID: "tpl-2", Outcome: OutcomeRejected})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}
}

func TestListNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, detail := range []string{"first", "second", "third"} {
		if _, err := store.Create(ctx, Entry{
			TemplateID: "tpl-1",
			Outcome:    OutcomeSaved,
			Detail:     detail,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := store.List(ctx, ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Detail != "third" {
		t.Errorf("expected newest entry first, got %+v", entries)
	}
}

func TestListSince(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, Entry{TemplateID: "tpl-1", Outcome: OutcomeSaved}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	if _, err := store.Create(ctx, Entry{TemplateID: "tpl-1", Outcome: OutcomeFailed}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entries, err := store.List(ctx, ListFilter{Since: cutoff})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != OutcomeFailed {
		t.Errorf("expected only the entry after the cutoff, got %+v", entries)
	}
}

func TestCountByOutcome(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	outcomes := []Outcome{OutcomeSaved, OutcomeSaved, OutcomeRejected, OutcomeFailed}
	for _, o := range outcomes {
		if _, err := store.Create(ctx, Entry{TemplateID: "tpl-1", Outcome: o}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	counts, err := store.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome: %v", err)
	}
	if counts[OutcomeSaved] != 2 || counts[OutcomeRejected] != 1 || counts[OutcomeFailed] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPList(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, o := range []Outcome{OutcomeSaved, OutcomeRejected} {
		if _, err := store.Create(ctx, Entry{TemplateID: "tpl-1", Outcome: o}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?outcome=saved", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != OutcomeSaved {
		t.Errorf("expected 1 saved entry, got %+v", entries)
	}
}

func TestHTTPListEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	// An empty trail serializes as [], not null.
	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty list, got %+v", entries)
	}
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)

	created, err := store.Create(context.Background(), Entry{
		TemplateID: "tpl-42",
		Outcome:    OutcomeSaved,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/"+created.ID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPStats(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, o := range []Outcome{OutcomeSaved, OutcomeSaved, OutcomeFailed} {
		if _, err := store.Create(ctx, Entry{TemplateID: "tpl-1", Outcome: o}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var counts map[Outcome]int
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts[OutcomeSaved] != 2 || counts[OutcomeFailed] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
