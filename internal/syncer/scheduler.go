// Package syncer coordinates state exchange with the backend: debounced
// outbound pushes, pull-on-remote-change, and the local snapshot flushes
// that make restarts cheap.
package syncer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"tank-tracker/internal/config"
	"tank-tracker/internal/constants"
	"tank-tracker/internal/dto"
	"tank-tracker/internal/notify"
	"tank-tracker/internal/store"
	"tank-tracker/internal/transport"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// SnapshotStore is the slice of the persistence gateway the scheduler needs.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) ([]byte, error)
	SaveSnapshot(ctx context.Context, data []byte) error
	ClearSnapshot(ctx context.Context) error
}

type Scheduler struct {
	store     *store.Store
	gateway   transport.Gateway
	persist   SnapshotStore
	notifier  *notify.Notifier
	logger    zerolog.Logger
	debouncer *Debouncer
	fetches   singleflight.Group
}

func NewScheduler(
	cfg *config.Config,
	st *store.Store,
	gw transport.Gateway,
	ps SnapshotStore,
	nt *notify.Notifier,
	logger zerolog.Logger,
) *Scheduler {
	s := &Scheduler{
		store:    st,
		gateway:  gw,
		persist:  ps,
		notifier: nt,
		logger:   logger,
	}
	s.debouncer = NewDebouncer(cfg.DebounceWindow, s.flush)
	return s
}

// NotifyChange schedules a debounced push. Rapid local mutations within the
// window collapse into a single outbound push of the state as of the last
// mutation, since the snapshot is taken when the debounce fires.
func (s *Scheduler) NotifyChange() {
	s.debouncer.Trigger()
}

func (s *Scheduler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.BackendTimeout)
	defer cancel()

	if err := s.Push(ctx); err != nil {
		s.logger.Error().Err(err).Msg("debounced push failed")
	}
}

// Push sends the current model to the backend and persists it locally. The
// local save happens even when the push fails, so offline play is not lost.
func (s *Scheduler) Push(ctx context.Context) error {
	snap, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}

	pushErr := s.gateway.PushStats(ctx, snap)
	if pushErr != nil {
		s.logger.Warn().Err(pushErr).Msg("push to backend failed")
	}
	if err := s.persist.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error().Err(err).Msg("local snapshot save failed")
		return err
	}
	return pushErr
}

// PersistNow saves the model locally without a backend push. Used for rare
// events where the debounce overhead is not worth it.
func (s *Scheduler) PersistNow(ctx context.Context) error {
	snap, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	return s.persist.SaveSnapshot(ctx, snap)
}

// Pull fetches the backend snapshot and reconciles it into the model. A UI
// notification is emitted only when the serialized state actually changed,
// which spares the dashboard redundant redraws.
func (s *Scheduler) Pull(ctx context.Context, coldLoad bool) error {
	before, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}

	snap, err := s.fetchStats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	s.store.Reconcile(dto.DecodeSnapshot(snap), coldLoad)

	after, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if bytes.Equal(before, after) {
		s.logger.Debug().Msg("pull produced no changes")
		return nil
	}

	s.notifier.Emit(notify.StatsUpdated)
	if err := s.persist.SaveSnapshot(ctx, after); err != nil {
		s.logger.Error().Err(err).Msg("local snapshot save failed")
	}
	return nil
}

// fetchStats collapses concurrent backend fetches into one: a pull driven by
// a change notice can race one driven by an import or delete, and both want
// the same snapshot.
func (s *Scheduler) fetchStats(ctx context.Context) (*dto.Snapshot, error) {
	v, err, _ := s.fetches.Do("fetch", func() (any, error) {
		return s.gateway.FetchStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.Snapshot), nil
}

// Refresh wipes the local model and reloads it from the backend. Used after
// a battle is deleted server-side.
func (s *Scheduler) Refresh(ctx context.Context) error {
	snap, err := s.fetchStats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	s.store.Clear()
	s.store.Reconcile(dto.DecodeSnapshot(snap), true)
	s.notifier.Emit(notify.StatsUpdated)

	after, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := s.persist.SaveSnapshot(ctx, after); err != nil {
		s.logger.Error().Err(err).Msg("local snapshot save failed")
	}
	return nil
}

// ClearAll clears the backend state, the local model and the persisted
// snapshot.
func (s *Scheduler) ClearAll(ctx context.Context) error {
	if err := s.gateway.ClearStats(ctx); err != nil {
		return fmt.Errorf("clear backend stats: %w", err)
	}
	s.store.Clear()
	if err := s.persist.ClearSnapshot(ctx); err != nil {
		return err
	}
	s.notifier.Emit(notify.StatsCleared)
	return nil
}

// DeleteBattle removes one battle server-side, then refreshes the whole
// local model from the backend.
func (s *Scheduler) DeleteBattle(ctx context.Context, arenaID string) error {
	if err := s.gateway.DeleteBattle(ctx, arenaID); err != nil {
		return fmt.Errorf("delete battle %s: %w", arenaID, err)
	}
	return s.Refresh(ctx)
}

// Import pushes a validated import payload to the backend and pulls the
// merged result back.
func (s *Scheduler) Import(ctx context.Context, payload []byte) error {
	if err := dto.ValidateImport(payload); err != nil {
		return fmt.Errorf("validate import: %w", err)
	}
	if err := s.gateway.ImportStats(ctx, payload); err != nil {
		return fmt.Errorf("import stats: %w", err)
	}
	return s.Pull(ctx, false)
}

// ColdLoad restores the persisted snapshot and reconciles the backend state
// on top of it, invalidating every cached aggregate.
func (s *Scheduler) ColdLoad(ctx context.Context) error {
	data, err := s.persist.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if data != nil {
		if err := s.store.Restore(data); err != nil {
			s.logger.Warn().Err(err).Msg("persisted snapshot unreadable, starting empty")
		}
	}

	if err := s.Pull(ctx, true); err != nil {
		// Backend may be unreachable at startup; the restored local state
		// still serves, and pull-on-change catches us up later.
		s.logger.Warn().Err(err).Msg("initial pull failed")
	}
	return nil
}

// Run watches for server-initiated change notices and re-pulls, and flushes
// the local snapshot periodically.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.SnapshotFlushInterval)
	defer ticker.Stop()
	defer s.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.gateway.Changes():
			if !ok {
				return
			}
			pullCtx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
			if err := s.Pull(pullCtx, false); err != nil {
				s.logger.Warn().Err(err).Msg("pull on remote change failed")
			}
			cancel()
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
			if err := s.PersistNow(flushCtx); err != nil {
				s.logger.Warn().Err(err).Msg("periodic snapshot flush failed")
			}
			cancel()
		}
	}
}
