// Package events translates inbound game-state events into stats store
// mutations, tracking the one live battle of the local player. The
// reconciler is confined to a single goroutine: events go in through a
// channel and all handling is sequential.
package events

import (
	"context"

	"tank-tracker/internal/constants"
	"tank-tracker/internal/domain"
	"tank-tracker/internal/notify"
	"tank-tracker/internal/store"

	"github.com/rs/zerolog"
)

// Syncer is the slice of the sync scheduler the reconciler drives.
type Syncer interface {
	NotifyChange()
	PersistNow(ctx context.Context) error
}

type Reconciler struct {
	store    *store.Store
	sched    Syncer
	notifier *notify.Notifier
	logger   zerolog.Logger
	events   chan Event

	currentArenaID  string
	currentPlayerID string
	currentVehicle  string
	inPlatoon       bool
	platoonSize     int
}

func NewReconciler(st *store.Store, sched Syncer, nt *notify.Notifier, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:    st,
		sched:    sched,
		notifier: nt,
		logger:   logger,
		events:   make(chan Event, 64),
	}
}

// Submit queues an event for handling. When the queue is full (the loop is
// backed up or already stopped) the event is logged and dropped, never
// blocking the caller.
func (r *Reconciler) Submit(e Event) {
	select {
	case r.events <- e:
	default:
		r.logger.Warn().Msg("event queue full, dropping event")
	}
}

// Run drains the event channel until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.events:
			r.handle(e)
		}
	}
}

func (r *Reconciler) handle(e Event) {
	switch ev := e.(type) {
	case HangarStatus:
		r.handleHangar(ev)
	case VehicleInfo:
		r.currentVehicle = ev.Vehicle
	case PlatoonStatus:
		r.handlePlatoon(ev)
	case ArenaInfo:
		r.handleArena(ev)
	case BattlePeriod:
		r.handlePeriod(ev)
	case DamageFeedback:
		r.handleDamage(ev)
	case KillFeedback:
		r.handleKill()
	case BattleResult:
		r.handleResult(ev)
	default:
		r.logger.Debug().Msg("ignoring unknown event")
	}
}

// handleHangar registers the local player in the directory, subject to the
// squad-size guard: in a too-large platoon, or outside a platoon with other
// players already tracked, registration is left to squad-mates' clients so
// this one does not clobber their directory entries.
func (r *Reconciler) handleHangar(ev HangarStatus) {
	if !ev.InHangar {
		return
	}
	// Back in the hangar means the previous arena is over.
	r.currentArenaID = ""

	if ev.PlayerID == "" {
		return
	}
	r.currentPlayerID = ev.PlayerID

	if !r.store.HasPlayer(ev.PlayerID) {
		switch {
		case r.platoonSize > constants.MaxTrackedPlatoonSize:
			r.logger.Debug().Int("platoon_size", r.platoonSize).Msg("platoon too large, skipping registration")
			return
		case !r.inPlatoon && r.store.PlayerCount() > 1:
			r.logger.Debug().Int("tracked", r.store.PlayerCount()).Msg("not in platoon with others tracked, skipping registration")
			return
		}
		r.store.RegisterPlayer(ev.PlayerID, ev.PlayerName)
		r.logger.Info().Str("player_id", ev.PlayerID).Str("name", ev.PlayerName).Msg("registered local player")
	}

	r.sched.NotifyChange()
}

func (r *Reconciler) handlePlatoon(ev PlatoonStatus) {
	r.inPlatoon = ev.InPlatoon
	r.platoonSize = ev.Size

	// Rare event: persist immediately, no debounce needed.
	r.notifier.Emit(notify.StatsUpdated)
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := r.sched.PersistNow(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("persist after platoon change failed")
	}
}

func (r *Reconciler) handleArena(ev ArenaInfo) {
	if ev.ArenaID == "" || r.currentPlayerID == "" {
		r.logger.Debug().Str("arena_id", ev.ArenaID).Msg("arena info without arena or player, ignoring")
		return
	}
	r.currentArenaID = ev.ArenaID

	// Whether the player was registered decides the sync trigger below;
	// first-ever appearance syncs through the hangar path instead, which
	// avoids racing a half-built directory entry to the backend.
	registered := r.store.HasPlayer(r.currentPlayerID)

	name := ev.MapName
	playerName := r.resolveName()
	r.store.OpenBattle(ev.ArenaID, r.currentPlayerID, playerName, r.currentVehicle, name)
	if !registered {
		r.store.RegisterPlayer(r.currentPlayerID, playerName)
	}

	r.logger.Info().
		Str("arena_id", ev.ArenaID).
		Str("map", name).
		Str("vehicle", r.currentVehicle).
		Msg("battle started")
	r.notifier.Emit(notify.StatsUpdated)

	if registered {
		r.sched.NotifyChange()
	}
}

func (r *Reconciler) handlePeriod(ev BattlePeriod) {
	if ev.Period != PeriodPreBattle {
		return
	}
	if r.currentArenaID == "" || r.currentPlayerID == "" {
		return
	}
	if r.store.TouchBattle(r.currentArenaID) {
		r.notifier.Emit(notify.StatsUpdated)
	}
}

func (r *Reconciler) handleDamage(ev DamageFeedback) {
	if !r.liveBattleReady() || ev.Damage <= 0 {
		return
	}
	r.store.AddDamage(r.currentArenaID, r.currentPlayerID, ev.Damage)
	r.notifier.Emit(notify.StatsUpdated)
	r.sched.NotifyChange()
}

func (r *Reconciler) handleKill() {
	if !r.liveBattleReady() {
		return
	}
	r.store.AddKill(r.currentArenaID, r.currentPlayerID)
	r.notifier.Emit(notify.StatsUpdated)
	r.sched.NotifyChange()
}

// handleResult applies the authoritative terminal record. A result for an
// arena this client never opened is an inconsistency worth reporting, but
// never fatal: the event is logged and dropped.
func (r *Reconciler) handleResult(ev BattleResult) {
	if ev.ArenaID == "" {
		return
	}

	win := resolveWin(ev.WinnerTeam, ev.PlayerTeam)
	err := r.store.FinalizeBattle(ev.ArenaID, ev.Duration, win, ev.MapName, r.currentPlayerID, ev.Vehicle)
	if err != nil {
		r.logger.Error().Err(err).Str("arena_id", ev.ArenaID).Msg("battle result for unknown arena, dropping")
		return
	}

	r.logger.Info().
		Str("arena_id", ev.ArenaID).
		Int("win", win).
		Int("duration", ev.Duration).
		Msg("battle finalized")
	r.notifier.Emit(notify.StatsUpdated)

	if r.currentPlayerID != "" && r.store.HasPlayer(r.currentPlayerID) {
		r.sched.NotifyChange()
	}
}

func (r *Reconciler) liveBattleReady() bool {
	return r.currentArenaID != "" &&
		r.currentPlayerID != "" &&
		r.store.HasPlayer(r.currentPlayerID)
}

// resolveName prefers the directory entry for the local player and falls
// back to the sentinel.
func (r *Reconciler) resolveName() string {
	return r.store.PlayerName(r.currentPlayerID)
}

// resolveWin maps the winning team onto the battle outcome: team 0 means a
// draw.
func resolveWin(winnerTeam, playerTeam int) int {
	switch {
	case winnerTeam == 0:
		return domain.WinDraw
	case winnerTeam == playerTeam:
		return domain.WinVictory
	default:
		return domain.WinDefeat
	}
}
