package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tank-tracker/internal/config"
	"tank-tracker/internal/domain"
	"tank-tracker/internal/dto"
	"tank-tracker/internal/events"
	"tank-tracker/internal/notify"
	"tank-tracker/internal/store"
	"tank-tracker/internal/syncer"
	"tank-tracker/internal/transport"

	"github.com/rs/zerolog"
)

type stubGateway struct {
	changes chan transport.ChangeNotice
}

func (g *stubGateway) FetchStats(ctx context.Context) (*dto.Snapshot, error) {
	return &dto.Snapshot{Success: true}, nil
}
func (g *stubGateway) PushStats(ctx context.Context, payload []byte) error { return nil }
func (g *stubGateway) ClearStats(ctx context.Context) error { return nil }
func (g *stubGateway) DeleteBattle(ctx context.Context, arenaID string) error { return nil }
func (g *stubGateway) ImportStats(ctx context.Context, payload []byte) error { return nil }
func (g *stubGateway) Changes() <-chan transport.ChangeNotice { return g.changes }
func (g *stubGateway) Connected() bool { return false }

type stubSnapshots struct{}

func (stubSnapshots) LoadSnapshot(ctx context.Context) ([]byte, error)    { return nil, nil }
func (stubSnapshots) SaveSnapshot(ctx context.Context, data []byte) error { return nil }
func (stubSnapshots) ClearSnapshot(ctx context.Context) error             { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *events.Reconciler) {
	st := store.New(zerolog.Nop())
	nt := notify.New()
	cfg := &config.Config{DebounceWindow: time.Minute}
	sched := syncer.NewScheduler(cfg, st, &stubGateway{changes: make(chan transport.ChangeNotice)}, stubSnapshots{}, nt, zerolog.Nop())
	rec := events.NewReconciler(st, sched, nt, zerolog.Nop())

	srv := httptest.NewServer(New(st, sched, rec, zerolog.Nop()).Routes())
	t.Cleanup(srv.Close)
	return srv, st, rec
}

func getJSON(t *testing.T, url string, out any) int {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) int {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestTeamEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.OpenBattle("a1", "p1", "Alice", "", "Karelia")
	st.AddDamage("a1", "p1", 100)

	var agg domain.TeamAggregate
	if code := getJSON(t, srv.URL+"/api/team", &agg); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if agg.Damage != 100 || agg.Battles != 1 {
		t.Errorf("aggregate = %+v", agg)
	}
}

func TestBattleEndpoints(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.OpenBattle("a1", "p1", "Alice", "", "Karelia")
	st.AddKill("a1", "p1")

	t.Run("list", func(t *testing.T) {
		var list []domain.BattleScore
		if code := getJSON(t, srv.URL+"/api/battles", &list); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(list) != 1 || list[0].ArenaID != "a1" {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("single", func(t *testing.T) {
		var agg domain.Aggregate
		if code := getJSON(t, srv.URL+"/api/battles/a1", &agg); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if agg.Kills != 1 {
			t.Errorf("aggregate = %+v", agg)
		}
	})

	t.Run("unknown arena", func(t *testing.T) {
		if code := getJSON(t, srv.URL+"/api/battles/ghost", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("current", func(t *testing.T) {
		var cur struct {
			ArenaID string `json:"arenaId"`
		}
		if code := getJSON(t, srv.URL+"/api/battles/current", &cur); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if cur.ArenaID != "a1" {
			t.Errorf("current = %+v", cur)
		}
	})
}

func TestCurrentBattleNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if code := getJSON(t, srv.URL+"/api/battles/current", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.OpenBattle("a1", "p1", "Alice", "", "")

	var snap struct {
		Battles map[string]json.RawMessage `json:"battles"`
	}
	if code := getJSON(t, srv.URL+"/api/export", &snap); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if _, ok := snap.Battles["a1"]; !ok {
		t.Errorf("export = %+v", snap)
	}
}

func TestImportValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if code := postJSON(t, srv.URL+"/api/import", `{"players": {}}`); code != http.StatusBadRequest {
		t.Errorf("invalid payload status = %d, want 400", code)
	}
	if code := postJSON(t, srv.URL+"/api/import", `{"battles": {}}`); code != http.StatusOK {
		t.Errorf("valid payload status = %d, want 200", code)
	}
}

func TestEventInlet(t *testing.T) {
	srv, st, rec := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	if code := postJSON(t, srv.URL+"/api/events",
		`{"type": "hangarStatus", "playerId": "p1", "playerName": "Alice", "inHangar": true}`); code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", code)
	}

	deadline := time.Now().Add(time.Second)
	for !st.HasPlayer("p1") {
		if time.Now().After(deadline) {
			t.Fatal("event never reached the store")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("unknown type", func(t *testing.T) {
		if code := postJSON(t, srv.URL+"/api/events", `{"type": "mystery"}`); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	t.Run("not json", func(t *testing.T) {
		if code := postJSON(t, srv.URL+"/api/events", `not json`); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}
