package events

import "tank-tracker/internal/domain"

// Event is a typed game-state event from the host game's SDK.
type Event interface {
	isEvent()
}

// HangarStatus reports the local player entering or leaving the hangar.
type HangarStatus struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	InHangar   bool   `json:"inHangar"`
}

// VehicleInfo reports the vehicle currently selected by the local player.
type VehicleInfo struct {
	Vehicle string `json:"vehicle"`
}

// PlatoonStatus reports platoon membership changes.
type PlatoonStatus struct {
	InPlatoon bool `json:"inPlatoon"`
	Size      int  `json:"size"`
}

// ArenaInfo marks the start of a battle in a specific arena.
type ArenaInfo struct {
	ArenaID string `json:"arenaId"`
	MapName string `json:"mapName"`
}

// BattlePeriod reports battle phase tags.
type BattlePeriod struct {
	Period string `json:"period"`
}

const PeriodPreBattle = "prebattle"

// DamageFeedback credits damage dealt by the local player.
type DamageFeedback struct {
	Damage int `json:"damage"`
}

// KillFeedback credits one kill by the local player.
type KillFeedback struct{}

// BattleResult is the authoritative terminal record for an arena.
type BattleResult struct {
	ArenaID    string           `json:"arenaId"`
	Duration   int              `json:"duration"`
	WinnerTeam int              `json:"winnerTeam"`
	PlayerTeam int              `json:"playerTeam"`
	MapName    string           `json:"mapName"`
	Vehicle    domain.Aggregate `json:"vehicle"`
}

func (HangarStatus) isEvent()   {}
func (VehicleInfo) isEvent()    {}
func (PlatoonStatus) isEvent()  {}
func (ArenaInfo) isEvent()      {}
func (BattlePeriod) isEvent()   {}
func (DamageFeedback) isEvent() {}
func (KillFeedback) isEvent()   {}
func (BattleResult) isEvent()   {}
