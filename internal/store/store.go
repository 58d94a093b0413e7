// Package store owns the canonical in-memory battle stats model and serves
// memoized aggregate queries over it. Server snapshots are merged in through
// Reconcile; live game events mutate it through the typed mutators. The
// merge is commutative and idempotent because this client shares the backend
// state with squad-mates' clients and must not assume single-writer
// ownership.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"tank-tracker/internal/domain"
	"tank-tracker/internal/dto"

	"github.com/rs/zerolog"
)

// ErrUnknownArena is returned when a terminal result arrives for a battle
// this client never opened.
var ErrUnknownArena = fmt.Errorf("unknown arena")

type Store struct {
	mu      sync.Mutex
	battles map[string]*domain.Battle
	order   []string // arena ids in insertion order, for deterministic tie-breaks
	players map[string]string
	cache   *memoCache
	logger  zerolog.Logger
}

func New(logger zerolog.Logger) *Store {
	return &Store{
		battles: make(map[string]*domain.Battle),
		players: make(map[string]string),
		cache:   newMemoCache(),
		logger:  logger,
	}
}

// snapshot is the serialized form of the whole model, used for persistence,
// outbound pushes and change comparison. encoding/json sorts map keys, so
// equal models serialize identically.
type snapshot struct {
	Battles map[string]*domain.Battle `json:"battles"`
	Players map[string]string         `json:"players"`
}

// Reconcile merges a decoded server snapshot into the model. The merge is
// additive: arenas the server did not mention are left untouched. For arenas
// present on both sides, numeric fields take the maximum, a decided win
// overrides an unknown one, and a non-sentinel local map name is kept.
// coldLoad invalidates every cached aggregate instead of just the touched
// scopes. Returns whether anything changed.
func (s *Store) Reconcile(dec dto.Decoded, coldLoad bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false

	arenaIDs := make([]string, 0, len(dec.Battles))
	for arenaID := range dec.Battles {
		arenaIDs = append(arenaIDs, arenaID)
	}
	sort.Strings(arenaIDs)

	for _, arenaID := range arenaIDs {
		incoming := dec.Battles[arenaID]
		local, ok := s.battles[arenaID]
		if !ok {
			s.battles[arenaID] = incoming
			s.order = append(s.order, arenaID)
			s.cache.bump(battleScope(arenaID), teamScope)
			for playerID := range incoming.Players {
				s.cache.bump(playerScope(playerID))
			}
			changed = true
			continue
		}
		if s.mergeBattle(arenaID, local, incoming) {
			changed = true
		}
	}

	for playerID, name := range dec.Players {
		if name == "" {
			continue
		}
		if cur := s.players[playerID]; cur == "" || cur == domain.UnknownPlayer {
			if cur != name {
				s.players[playerID] = name
				changed = true
			}
		}
	}

	// Conservative: best/worst is never served stale after a reconcile.
	s.cache.bump(bestWorstScope)
	if coldLoad {
		s.cache.invalidateAll()
	}

	s.logger.Debug().
		Int("incoming_battles", len(dec.Battles)).
		Int("total_battles", len(s.battles)).
		Bool("changed", changed).
		Bool("cold_load", coldLoad).
		Msg("snapshot reconciled")

	return changed
}

func (s *Store) mergeBattle(arenaID string, local, incoming *domain.Battle) bool {
	changed := false

	if local.StartTime == 0 && incoming.StartTime != 0 {
		local.StartTime = incoming.StartTime
		changed = true
	}
	if incoming.Duration > local.Duration {
		local.Duration = incoming.Duration
		changed = true
	}
	if incoming.Win != domain.WinUnknown && incoming.Win != local.Win {
		local.Win = incoming.Win
		changed = true
	}
	if (local.MapName == "" || local.MapName == domain.UnknownMap) &&
		incoming.MapName != "" && incoming.MapName != domain.UnknownMap {
		local.MapName = incoming.MapName
		changed = true
	}

	for playerID, rec := range incoming.Players {
		cur, ok := local.Players[playerID]
		if !ok {
			local.Players[playerID] = rec
			s.cache.bump(playerScope(playerID))
			changed = true
			continue
		}
		if mergePlayerRecord(cur, rec) {
			s.cache.bump(playerScope(playerID))
			changed = true
		}
	}

	if changed {
		s.cache.bump(battleScope(arenaID), teamScope)
	}
	return changed
}

func mergePlayerRecord(local, incoming *domain.PlayerRecord) bool {
	changed := false
	if incoming.Damage > local.Damage {
		local.Damage = incoming.Damage
		changed = true
	}
	if incoming.Kills > local.Kills {
		local.Kills = incoming.Kills
		changed = true
	}
	if incoming.Points > local.Points {
		local.Points = incoming.Points
		changed = true
	}
	if (local.Name == "" || local.Name == domain.UnknownPlayer) &&
		incoming.Name != "" && incoming.Name != domain.UnknownPlayer {
		local.Name = incoming.Name
		changed = true
	}
	if (local.Vehicle == "" || local.Vehicle == domain.UnknownVehicle) &&
		incoming.Vehicle != "" && incoming.Vehicle != domain.UnknownVehicle {
		local.Vehicle = incoming.Vehicle
		changed = true
	}
	return changed
}

// OpenBattle lazily creates the battle record for an arena and stamps the
// local player's name and vehicle onto it.
func (s *Store) OpenBattle(arenaID, playerID, playerName, vehicle, mapName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		b = domain.NewBattle(time.Now().UnixMilli())
		s.battles[arenaID] = b
		s.order = append(s.order, arenaID)
	}
	if mapName != "" {
		b.MapName = mapName
	}

	rec := s.ensureRecord(b, playerID)
	if playerName != "" {
		rec.Name = playerName
	}
	if vehicle != "" {
		rec.Vehicle = vehicle
	}

	s.cache.bump(battleScope(arenaID), playerScope(playerID), teamScope, bestWorstScope)
}

// AddDamage credits damage to a player in a battle, deriving the matching
// point gain. Increments are additive, so the stored value never regresses
// even when feedback events arrive out of order.
func (s *Store) AddDamage(arenaID, playerID string, amount int) {
	if amount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		return
	}
	rec := s.ensureRecord(b, playerID)
	rec.Damage += amount
	rec.Points += amount
	b.UpdatedAt = time.Now().UnixMilli()

	s.cache.bump(battleScope(arenaID), playerScope(playerID), teamScope, bestWorstScope)
}

// AddKill credits one kill and the per-frag point bonus.
func (s *Store) AddKill(arenaID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		return
	}
	rec := s.ensureRecord(b, playerID)
	rec.Kills++
	rec.Points += domain.PointsPerFrag
	b.UpdatedAt = time.Now().UnixMilli()

	s.cache.bump(battleScope(arenaID), playerScope(playerID), teamScope, bestWorstScope)
}

// TouchBattle stamps the battle's last-update time. Returns false when the
// arena is unknown.
func (s *Store) TouchBattle(arenaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		return false
	}
	b.UpdatedAt = time.Now().UnixMilli()
	return true
}

// FinalizeBattle applies the authoritative battle result. Unlike reconcile
// merges, the local player's stats are overwritten exactly: the terminal
// server-computed record wins over provisional live counts.
func (s *Store) FinalizeBattle(arenaID string, duration, win int, mapName, playerID string, stats domain.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArena, arenaID)
	}

	if duration <= 0 {
		// Duration 0 is the in-progress sentinel; a finalized battle must close.
		duration = 1
	}
	b.Duration = duration
	b.Win = win
	if b.MapName == "" || b.MapName == domain.UnknownMap {
		if mapName != "" {
			b.MapName = mapName
		}
	}
	b.UpdatedAt = time.Now().UnixMilli()

	if playerID != "" {
		rec := s.ensureRecord(b, playerID)
		rec.Damage = stats.Damage
		rec.Kills = stats.Kills
		rec.Points = stats.Points
		s.cache.bump(playerScope(playerID))
	}

	s.cache.bump(battleScope(arenaID), teamScope, bestWorstScope)
	return nil
}

func (s *Store) ensureRecord(b *domain.Battle, playerID string) *domain.PlayerRecord {
	rec, ok := b.Players[playerID]
	if !ok {
		rec = domain.NewPlayerRecord()
		if name, ok := s.players[playerID]; ok && name != "" {
			rec.Name = name
		}
		b.Players[playerID] = rec
	}
	return rec
}

// HasBattle reports whether an arena is known locally.
func (s *Store) HasBattle(arenaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.battles[arenaID]
	return ok
}

// RegisterPlayer adds or updates a player directory entry.
func (s *Store) RegisterPlayer(playerID, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = name
}

// HasPlayer reports whether the directory knows a player.
func (s *Store) HasPlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[playerID]
	return ok
}

// PlayerCount is the size of the player directory.
func (s *Store) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// PlayerName resolves a display name from the directory, falling back to
// the sentinel.
func (s *Store) PlayerName(playerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.players[playerID]; ok && name != "" {
		return name
	}
	return domain.UnknownPlayer
}

// BattleAggregate returns the points/damage/kills totals for one battle.
func (s *Store) BattleAggregate(arenaID string) (domain.Aggregate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[arenaID]
	if !ok {
		return domain.Aggregate{}, false
	}

	key := battleScope(arenaID)
	if v, ok := s.cache.get(key); ok {
		return v.(domain.Aggregate), true
	}

	agg := battleAggregate(b)
	s.cache.put(key, agg)
	return agg, true
}

// CurrentBattleAggregate returns the totals for the battle in progress: the
// arena with duration still at zero. The most recently opened one wins if
// stale in-progress arenas linger.
func (s *Store) CurrentBattleAggregate() (string, domain.Aggregate, bool) {
	s.mu.Lock()
	arenaID := ""
	for i := len(s.order) - 1; i >= 0; i-- {
		if b := s.battles[s.order[i]]; b.Duration == 0 {
			arenaID = s.order[i]
			break
		}
	}
	s.mu.Unlock()

	if arenaID == "" {
		return "", domain.Aggregate{}, false
	}
	agg, ok := s.BattleAggregate(arenaID)
	return arenaID, agg, ok
}

// PlayerAggregate returns a player's lifetime totals across all battles.
func (s *Store) PlayerAggregate(playerID string) domain.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := playerScope(playerID)
	if v, ok := s.cache.get(key); ok {
		return v.(domain.Aggregate)
	}

	var agg domain.Aggregate
	for _, arenaID := range s.order {
		if rec, ok := s.battles[arenaID].Players[playerID]; ok {
			agg.Points += rec.Points
			agg.Damage += rec.Damage
			agg.Kills += rec.Kills
		}
	}
	s.cache.put(key, agg)
	return agg
}

// TeamAggregate returns totals across the entire store, including the
// per-win team bonus.
func (s *Store) TeamAggregate() domain.TeamAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.get(teamScope); ok {
		return v.(domain.TeamAggregate)
	}

	var agg domain.TeamAggregate
	for _, arenaID := range s.order {
		b := s.battles[arenaID]
		agg.Points += domain.BattlePoints(b)
		for _, rec := range b.Players {
			agg.Damage += rec.Damage
			agg.Kills += rec.Kills
		}
		if b.Win == domain.WinVictory {
			agg.Wins++
		}
		agg.Battles++
	}
	s.cache.put(teamScope, agg)
	return agg
}

// BestAndWorstBattle scans the decided battles for the highest and lowest
// team score. Ties go to the first battle encountered in insertion order.
func (s *Store) BestAndWorstBattle() domain.BestWorst {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.get(bestWorstScope); ok {
		return v.(domain.BestWorst)
	}

	var result domain.BestWorst
	for _, arenaID := range s.order {
		b := s.battles[arenaID]
		if !b.Decided() {
			continue
		}
		points := domain.BattlePoints(b)
		if result.Best == nil || points > result.Best.Points {
			result.Best = &domain.BattleScore{ArenaID: arenaID, Battle: b, Points: points}
		}
		if result.Worst == nil || points < result.Worst.Points {
			result.Worst = &domain.BattleScore{ArenaID: arenaID, Battle: b, Points: points}
		}
	}

	// Detach from the live model before the result leaves the lock; the
	// cached copy stays immutable until a version bump discards it.
	if result.Best != nil {
		result.Best.Battle = result.Best.Battle.Clone()
	}
	if result.Worst != nil {
		result.Worst.Battle = result.Worst.Battle.Clone()
	}
	s.cache.put(bestWorstScope, result)
	return result
}

// List returns all battles with their scores, in insertion order. The
// returned battles are deep copies; callers marshal them outside the lock.
func (s *Store) List() []domain.BattleScore {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]domain.BattleScore, 0, len(s.order))
	for _, arenaID := range s.order {
		b := s.battles[arenaID]
		list = append(list, domain.BattleScore{ArenaID: arenaID, Battle: b.Clone(), Points: domain.BattlePoints(b)})
	}
	return list
}

// Snapshot serializes the whole model.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(snapshot{Battles: s.battles, Players: s.players})
}

// Restore replaces the model with a previously serialized snapshot.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.battles = snap.Battles
	if s.battles == nil {
		s.battles = make(map[string]*domain.Battle)
	}
	s.players = snap.Players
	if s.players == nil {
		s.players = make(map[string]string)
	}
	// A corrupted snapshot may carry null records; drop them rather than
	// panic later.
	for arenaID, b := range s.battles {
		if b == nil {
			delete(s.battles, arenaID)
			continue
		}
		if b.Players == nil {
			b.Players = make(map[string]*domain.PlayerRecord)
			continue
		}
		for playerID, rec := range b.Players {
			if rec == nil {
				delete(b.Players, playerID)
			}
		}
	}

	s.order = make([]string, 0, len(s.battles))
	for arenaID := range s.battles {
		s.order = append(s.order, arenaID)
	}
	sort.Slice(s.order, func(i, j int) bool {
		bi, bj := s.battles[s.order[i]], s.battles[s.order[j]]
		if bi.StartTime != bj.StartTime {
			return bi.StartTime < bj.StartTime
		}
		return s.order[i] < s.order[j]
	})

	s.cache.invalidateAll()
	return nil
}

// Clear wipes the whole model.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.battles = make(map[string]*domain.Battle)
	s.order = nil
	s.players = make(map[string]string)
	s.cache.invalidateAll()
}

func battleAggregate(b *domain.Battle) domain.Aggregate {
	agg := domain.Aggregate{Points: domain.BattlePoints(b)}
	for _, rec := range b.Players {
		agg.Damage += rec.Damage
		agg.Kills += rec.Kills
	}
	return agg
}
