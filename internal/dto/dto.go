// Package dto decodes backend wire payloads into canonical domain records.
// Decoding never fails: missing or wrong-typed fields fall back to zero
// values and display sentinels, so malformed server data degrades instead
// of erroring.
package dto

import (
	"encoding/json"
	"strconv"

	"tank-tracker/internal/domain"
)

// Snapshot is the wire shape of a full stats payload, as fetched from the
// backend or pushed to it.
type Snapshot struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message,omitempty"`
	Battles map[string]json.RawMessage `json:"battles"`
	Players map[string]json.RawMessage `json:"players"`
}

// Decoded is a snapshot in canonical domain form, ready to merge.
type Decoded struct {
	Battles map[string]*domain.Battle
	Players map[string]string
}

// DecodeSnapshot normalizes a wire snapshot. Records may arrive wrapped in
// an envelope object carrying an inner identity field; the envelope is
// unwrapped before field extraction.
func DecodeSnapshot(s *Snapshot) Decoded {
	dec := Decoded{
		Battles: make(map[string]*domain.Battle, len(s.Battles)),
		Players: make(map[string]string, len(s.Players)),
	}
	for arenaID, raw := range s.Battles {
		dec.Battles[arenaID] = DecodeBattle(raw)
	}
	for playerID, raw := range s.Players {
		if name := decodeDirectoryName(raw); name != "" {
			dec.Players[playerID] = name
		}
	}
	return dec
}

// DecodeBattle turns one wire battle record into a domain Battle.
func DecodeBattle(raw json.RawMessage) *domain.Battle {
	obj := unwrap(asMap(raw), "arenaId", "battle")

	b := domain.NewBattle(toInt64(obj["startTime"]))
	b.Duration = clampNonNegative(toInt(obj["duration"]))
	if win, ok := obj["win"]; ok {
		b.Win = decodeWin(win)
	}
	if name := toString(obj["mapName"]); name != "" {
		b.MapName = name
	}
	if players, ok := obj["players"].(map[string]any); ok {
		for playerID, v := range players {
			b.Players[playerID] = DecodePlayerRecord(v)
		}
	}
	return b
}

// DecodePlayerRecord turns one wire player record into a domain PlayerRecord.
// Points are derived from damage and kills when not explicitly supplied.
func DecodePlayerRecord(v any) *domain.PlayerRecord {
	obj, _ := v.(map[string]any)
	obj = unwrap(obj, "playerId", "player")

	rec := domain.NewPlayerRecord()
	if name := toString(obj["name"]); name != "" {
		rec.Name = name
	}
	if vehicle := toString(obj["vehicle"]); vehicle != "" {
		rec.Vehicle = vehicle
	}
	rec.Damage = clampNonNegative(toInt(obj["damage"]))
	rec.Kills = clampNonNegative(toInt(obj["kills"]))
	if _, ok := obj["points"]; ok {
		rec.Points = clampNonNegative(toInt(obj["points"]))
	} else {
		rec.Points = domain.DerivePoints(rec.Damage, rec.Kills)
	}
	return rec
}

// decodeDirectoryName handles a player directory entry, which may be a bare
// name string or an object carrying a name field.
func decodeDirectoryName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	obj := unwrap(asMap(raw), "playerId", "player")
	return toString(obj["name"])
}

// unwrap returns the inner record when obj is an envelope: an object that
// carries an identity field alongside a nested record object.
func unwrap(obj map[string]any, idField, innerField string) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	if _, hasID := obj[idField]; hasID {
		if inner, ok := obj[innerField].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

func decodeWin(v any) int {
	w := toInt(v)
	switch w {
	case domain.WinDefeat, domain.WinVictory, domain.WinDraw:
		return w
	default:
		return domain.WinUnknown
	}
}

func asMap(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
