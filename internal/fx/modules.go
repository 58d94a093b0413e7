package fx

import (
	"context"

	"tank-tracker/internal/config"
	"tank-tracker/internal/constants"
	"tank-tracker/internal/events"
	"tank-tracker/internal/logger"
	"tank-tracker/internal/notify"
	"tank-tracker/internal/persistence"
	"tank-tracker/internal/server"
	"tank-tracker/internal/store"
	"tank-tracker/internal/syncer"
	"tank-tracker/internal/transport"

	"go.uber.org/fx"
)

func ProvideAccessKey(ps *persistence.Store) (transport.AccessKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	key, err := ps.AccessKey(ctx)
	if err != nil {
		return "", err
	}
	return transport.AccessKey(key), nil
}

func ProvideGateway(g *transport.FallbackGateway) transport.Gateway {
	return g
}

func ProvideSnapshotStore(ps *persistence.Store) syncer.SnapshotStore {
	return ps
}

func ProvideSyncer(s *syncer.Scheduler) events.Syncer {
	return s
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// persistence
	fx.Provide(persistence.New),
	fx.Provide(persistence.NewStore),
	fx.Provide(ProvideAccessKey),
	// transport
	fx.Provide(transport.NewRESTClient),
	fx.Provide(transport.NewSocketClient),
	fx.Provide(transport.NewGateway),
	fx.Provide(ProvideGateway),
	// core
	fx.Provide(store.New),
	fx.Provide(notify.New),
	fx.Provide(ProvideSnapshotStore),
	fx.Provide(syncer.NewScheduler),
	fx.Provide(ProvideSyncer),
	fx.Provide(events.NewReconciler),
	// server
	fx.Provide(server.New),
)
