package dto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidImport marks payloads rejected by import validation.
var ErrInvalidImport = errors.New("invalid import payload")

// ValidateImport checks an import payload before any of it is applied.
// Validation is all-or-nothing: one bad battle or player record rejects the
// whole payload.
func ValidateImport(payload []byte) error {
	if err := validateImport(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return nil
}

func validateImport(payload []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return fmt.Errorf("import payload is not a JSON object: %w", err)
	}

	rawBattles, ok := top["battles"]
	if !ok {
		return fmt.Errorf("import payload missing battles")
	}
	var battles map[string]map[string]any
	if err := json.Unmarshal(rawBattles, &battles); err != nil {
		return fmt.Errorf("battles is not an object of battle records: %w", err)
	}
	for arenaID, battle := range battles {
		if err := validateBattle(battle); err != nil {
			return fmt.Errorf("battle %s: %w", arenaID, err)
		}
	}

	if rawPlayers, ok := top["players"]; ok {
		var players map[string]any
		if err := json.Unmarshal(rawPlayers, &players); err != nil {
			return fmt.Errorf("players is not an object: %w", err)
		}
		for playerID, v := range players {
			if err := validateDirectoryEntry(v); err != nil {
				return fmt.Errorf("player %s: %w", playerID, err)
			}
		}
	}

	return nil
}

func validateBattle(battle map[string]any) error {
	for _, field := range []string{"startTime", "duration", "win"} {
		if v, ok := battle[field]; ok {
			if _, isNum := v.(float64); !isNum {
				return fmt.Errorf("field %s must be a number", field)
			}
		}
	}
	if v, ok := battle["mapName"]; ok {
		if _, isStr := v.(string); !isStr {
			return fmt.Errorf("field mapName must be a string")
		}
	}

	players, ok := battle["players"].(map[string]any)
	if !ok {
		return fmt.Errorf("missing players object")
	}
	for playerID, v := range players {
		rec, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("player %s: record must be an object", playerID)
		}
		if err := validatePlayerRecord(rec); err != nil {
			return fmt.Errorf("player %s: %w", playerID, err)
		}
	}
	return nil
}

func validatePlayerRecord(rec map[string]any) error {
	name, ok := rec["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("missing required field name")
	}
	for _, field := range []string{"damage", "kills", "points"} {
		if v, ok := rec[field]; ok {
			n, isNum := v.(float64)
			if !isNum {
				return fmt.Errorf("field %s must be a number", field)
			}
			if n < 0 {
				return fmt.Errorf("field %s must not be negative", field)
			}
		}
	}
	if v, ok := rec["vehicle"]; ok {
		if _, isStr := v.(string); !isStr {
			return fmt.Errorf("field vehicle must be a string")
		}
	}
	return nil
}

func validateDirectoryEntry(v any) error {
	switch entry := v.(type) {
	case string:
		if entry == "" {
			return fmt.Errorf("name must not be empty")
		}
		return nil
	case map[string]any:
		if name, ok := entry["name"].(string); !ok || name == "" {
			return fmt.Errorf("missing required field name")
		}
		return nil
	default:
		return fmt.Errorf("entry must be a name string or an object")
	}
}
