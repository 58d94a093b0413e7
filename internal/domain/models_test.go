package domain

import "testing"

func TestNewBattleDefaults(t *testing.T) {
	b := NewBattle(1700000000000)

	if b.StartTime != 1700000000000 {
		t.Errorf("StartTime = %d, want 1700000000000", b.StartTime)
	}
	if b.Duration != 0 {
		t.Errorf("Duration = %d, want 0", b.Duration)
	}
	if b.Win != WinUnknown {
		t.Errorf("Win = %d, want %d", b.Win, WinUnknown)
	}
	if b.MapName != UnknownMap {
		t.Errorf("MapName = %q, want %q", b.MapName, UnknownMap)
	}
	if b.Decided() {
		t.Error("new battle must not be decided")
	}
}

func TestDecided(t *testing.T) {
	for _, tc := range []struct {
		win  int
		want bool
	}{
		{WinUnknown, false},
		{WinDefeat, true},
		{WinVictory, true},
		{WinDraw, true},
	} {
		b := NewBattle(0)
		b.Win = tc.win
		if got := b.Decided(); got != tc.want {
			t.Errorf("Decided() with win=%d = %v, want %v", tc.win, got, tc.want)
		}
	}
}

func TestDerivePoints(t *testing.T) {
	if got := DerivePoints(450, 2); got != 450+2*PointsPerFrag {
		t.Errorf("DerivePoints(450, 2) = %d, want %d", got, 450+2*PointsPerFrag)
	}
	if got := DerivePoints(0, 0); got != 0 {
		t.Errorf("DerivePoints(0, 0) = %d, want 0", got)
	}
}

func TestBattlePoints(t *testing.T) {
	t.Run("sums player points", func(t *testing.T) {
		b := NewBattle(0)
		b.Players["p1"] = &PlayerRecord{Points: 10}
		b.Players["p2"] = &PlayerRecord{Points: 20}

		if got := BattlePoints(b); got != 30 {
			t.Errorf("BattlePoints = %d, want 30", got)
		}
	})

	t.Run("adds team bonus once on victory", func(t *testing.T) {
		b := NewBattle(0)
		b.Win = WinVictory
		b.Players["p1"] = &PlayerRecord{Points: 10}
		b.Players["p2"] = &PlayerRecord{Points: 20}

		if got := BattlePoints(b); got != PointsPerTeamWin+30 {
			t.Errorf("BattlePoints = %d, want %d", got, PointsPerTeamWin+30)
		}
	})

	t.Run("no bonus on defeat or draw", func(t *testing.T) {
		for _, win := range []int{WinDefeat, WinDraw, WinUnknown} {
			b := NewBattle(0)
			b.Win = win
			b.Players["p1"] = &PlayerRecord{Points: 100}
			if got := BattlePoints(b); got != 100 {
				t.Errorf("BattlePoints with win=%d = %d, want 100", win, got)
			}
		}
	})
}
