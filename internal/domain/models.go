package domain

// Win states for a battle. WinUnknown marks a battle still in progress
// (or one whose result never reached this client).
const (
	WinUnknown = -1
	WinDefeat  = 0
	WinVictory = 1
	WinDraw    = 2
)

// Display sentinels used until real values arrive from the game or the server.
const (
	UnknownMap     = "Unknown Map"
	UnknownPlayer  = "Unknown Player"
	UnknownVehicle = "Unknown Vehicle"
)

const (
	// PointsPerFrag is the score bonus granted for each kill on top of damage.
	PointsPerFrag = 300

	// PointsPerTeamWin is the fixed team bonus counted once per battle won.
	PointsPerTeamWin = 1000
)

// PlayerRecord holds one player's accumulated stats within a single battle.
// Damage, kills and points are monotonically non-decreasing while the battle
// is live; merges with server data take the maximum per field.
type PlayerRecord struct {
	Name    string `json:"name"`
	Damage  int    `json:"damage"`
	Kills   int    `json:"kills"`
	Points  int    `json:"points"`
	Vehicle string `json:"vehicle"`
}

// Battle is one match instance, keyed by the server-assigned arena id.
// Duration 0 means the battle is still in progress.
type Battle struct {
	StartTime int64                    `json:"startTime"`
	Duration  int                      `json:"duration"`
	Win       int                      `json:"win"`
	MapName   string                   `json:"mapName"`
	UpdatedAt int64                    `json:"updatedAt,omitempty"`
	Players   map[string]*PlayerRecord `json:"players"`
}

func NewBattle(startTime int64) *Battle {
	return &Battle{
		StartTime: startTime,
		Duration:  0,
		Win:       WinUnknown,
		MapName:   UnknownMap,
		Players:   make(map[string]*PlayerRecord),
	}
}

func NewPlayerRecord() *PlayerRecord {
	return &PlayerRecord{
		Name:    UnknownPlayer,
		Vehicle: UnknownVehicle,
	}
}

// Decided reports whether a battle result has been applied.
func (b *Battle) Decided() bool {
	return b.Win != WinUnknown
}

// Clone returns a deep copy with no shared player records, safe to hand to
// readers outside the owning store's lock.
func (b *Battle) Clone() *Battle {
	c := *b
	c.Players = make(map[string]*PlayerRecord, len(b.Players))
	for id, rec := range b.Players {
		r := *rec
		c.Players[id] = &r
	}
	return &c
}

// Aggregate is the common points/damage/kills triple served by the store.
type Aggregate struct {
	Points int `json:"points"`
	Damage int `json:"damage"`
	Kills  int `json:"kills"`
}

// TeamAggregate covers the whole store.
type TeamAggregate struct {
	Aggregate
	Wins    int `json:"wins"`
	Battles int `json:"battles"`
}

// BattleScore pairs a battle with its total team points.
type BattleScore struct {
	ArenaID string  `json:"arenaId"`
	Battle  *Battle `json:"battle"`
	Points  int     `json:"points"`
}

// BestWorst holds the highest and lowest scoring decided battles.
// Both are nil when no battle has a result yet.
type BestWorst struct {
	Best  *BattleScore `json:"bestBattle"`
	Worst *BattleScore `json:"worstBattle"`
}

// DerivePoints computes a player's points when the server did not supply them.
func DerivePoints(damage, kills int) int {
	return damage + kills*PointsPerFrag
}

// BattlePoints is the team score of one battle: the sum of all players'
// points, plus the team-win bonus once if the battle was won.
func BattlePoints(b *Battle) int {
	total := 0
	for _, p := range b.Players {
		total += p.Points
	}
	if b.Win == WinVictory {
		total += PointsPerTeamWin
	}
	return total
}
