package dto

import (
	"encoding/json"
	"testing"

	"tank-tracker/internal/domain"
)

func TestDecodeBattle(t *testing.T) {
	t.Run("flat record", func(t *testing.T) {
		raw := json.RawMessage(`{
			"startTime": 1700000000000,
			"duration": 320,
			"win": 1,
			"mapName": "Karelia",
			"players": {
				"p1": {"name": "Alice", "damage": 450, "kills": 2, "points": 1050, "vehicle": "T-34"}
			}
		}`)

		b := DecodeBattle(raw)
		if b.StartTime != 1700000000000 {
			t.Errorf("StartTime = %d", b.StartTime)
		}
		if b.Duration != 320 {
			t.Errorf("Duration = %d, want 320", b.Duration)
		}
		if b.Win != domain.WinVictory {
			t.Errorf("Win = %d, want %d", b.Win, domain.WinVictory)
		}
		if b.MapName != "Karelia" {
			t.Errorf("MapName = %q", b.MapName)
		}
		rec := b.Players["p1"]
		if rec == nil {
			t.Fatal("player p1 missing")
		}
		if rec.Name != "Alice" || rec.Damage != 450 || rec.Kills != 2 || rec.Points != 1050 || rec.Vehicle != "T-34" {
			t.Errorf("player record = %+v", rec)
		}
	})

	t.Run("envelope is unwrapped", func(t *testing.T) {
		raw := json.RawMessage(`{
			"arenaId": "a1",
			"battle": {"startTime": 5, "duration": 10, "win": 2, "players": {}}
		}`)

		b := DecodeBattle(raw)
		if b.StartTime != 5 || b.Duration != 10 || b.Win != domain.WinDraw {
			t.Errorf("unwrapped battle = %+v", b)
		}
	})

	t.Run("missing fields fall back to defaults", func(t *testing.T) {
		b := DecodeBattle(json.RawMessage(`{}`))
		if b.StartTime != 0 || b.Duration != 0 {
			t.Errorf("zero fields = %d/%d", b.StartTime, b.Duration)
		}
		if b.Win != domain.WinUnknown {
			t.Errorf("Win = %d, want %d", b.Win, domain.WinUnknown)
		}
		if b.MapName != domain.UnknownMap {
			t.Errorf("MapName = %q, want sentinel", b.MapName)
		}
	})

	t.Run("out-of-range win becomes unknown", func(t *testing.T) {
		b := DecodeBattle(json.RawMessage(`{"win": 7}`))
		if b.Win != domain.WinUnknown {
			t.Errorf("Win = %d, want %d", b.Win, domain.WinUnknown)
		}
	})

	t.Run("negative numerics are clamped", func(t *testing.T) {
		b := DecodeBattle(json.RawMessage(`{"duration": -5, "players": {"p1": {"damage": -100, "kills": -1}}}`))
		if b.Duration != 0 {
			t.Errorf("Duration = %d, want 0", b.Duration)
		}
		rec := b.Players["p1"]
		if rec.Damage != 0 || rec.Kills != 0 {
			t.Errorf("clamped record = %+v", rec)
		}
	})

	t.Run("garbage is tolerated", func(t *testing.T) {
		b := DecodeBattle(json.RawMessage(`"not an object"`))
		if b == nil {
			t.Fatal("decode must not return nil")
		}
		if b.Win != domain.WinUnknown || b.MapName != domain.UnknownMap {
			t.Errorf("garbage battle = %+v", b)
		}
	})
}

func TestDecodePlayerRecord(t *testing.T) {
	t.Run("points derived when absent", func(t *testing.T) {
		rec := DecodePlayerRecord(map[string]any{"name": "Bob", "damage": float64(200), "kills": float64(1)})
		want := domain.DerivePoints(200, 1)
		if rec.Points != want {
			t.Errorf("Points = %d, want %d", rec.Points, want)
		}
	})

	t.Run("explicit points win over derivation", func(t *testing.T) {
		rec := DecodePlayerRecord(map[string]any{"damage": float64(200), "kills": float64(1), "points": float64(42)})
		if rec.Points != 42 {
			t.Errorf("Points = %d, want 42", rec.Points)
		}
	})

	t.Run("envelope is unwrapped", func(t *testing.T) {
		rec := DecodePlayerRecord(map[string]any{
			"playerId": "p1",
			"player":   map[string]any{"name": "Carol", "damage": float64(10)},
		})
		if rec.Name != "Carol" || rec.Damage != 10 {
			t.Errorf("unwrapped record = %+v", rec)
		}
	})

	t.Run("sentinels on empty record", func(t *testing.T) {
		rec := DecodePlayerRecord(map[string]any{})
		if rec.Name != domain.UnknownPlayer || rec.Vehicle != domain.UnknownVehicle {
			t.Errorf("sentinel record = %+v", rec)
		}
	})
}

func TestDecodeSnapshot(t *testing.T) {
	snap := &Snapshot{
		Battles: map[string]json.RawMessage{
			"a1": json.RawMessage(`{"duration": 10, "players": {}}`),
		},
		Players: map[string]json.RawMessage{
			"p1": json.RawMessage(`"Alice"`),
			"p2": json.RawMessage(`{"playerId": "p2", "player": {"name": "Bob"}}`),
			"p3": json.RawMessage(`""`),
		},
	}

	dec := DecodeSnapshot(snap)
	if len(dec.Battles) != 1 || dec.Battles["a1"].Duration != 10 {
		t.Errorf("battles = %+v", dec.Battles)
	}
	if dec.Players["p1"] != "Alice" {
		t.Errorf("bare name entry = %q", dec.Players["p1"])
	}
	if dec.Players["p2"] != "Bob" {
		t.Errorf("object entry = %q", dec.Players["p2"])
	}
	if _, ok := dec.Players["p3"]; ok {
		t.Error("empty name must be dropped")
	}
}
