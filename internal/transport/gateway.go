// Package transport carries stats between this client and the backend over
// two channels: a realtime websocket with request/acknowledgment semantics,
// and a plain REST channel. The combined gateway prefers the realtime
// channel and falls back to REST once, so the core treats both uniformly.
package transport

import (
	"context"
	"errors"

	"tank-tracker/internal/dto"

	"github.com/rs/zerolog"
)

var (
	// ErrNoAccessKey means no credential is available; network operations
	// fail fast instead of retrying.
	ErrNoAccessKey = errors.New("no access key available")

	// ErrNotConnected means the realtime channel has no live connection.
	ErrNotConnected = errors.New("realtime channel not connected")

	// ErrAckTimeout means the realtime channel did not acknowledge a request
	// within the bounded wait.
	ErrAckTimeout = errors.New("no acknowledgment before timeout")
)

// AccessKey is the opaque credential scoping all backend operations to one
// widget instance.
type AccessKey string

// ChangeNotice is a server-initiated notification that shared state changed.
type ChangeNotice struct {
	Key string `json:"key"`
}

type Gateway interface {
	FetchStats(ctx context.Context) (*dto.Snapshot, error)
	PushStats(ctx context.Context, payload []byte) error
	ClearStats(ctx context.Context) error
	DeleteBattle(ctx context.Context, arenaID string) error
	ImportStats(ctx context.Context, payload []byte) error

	// Changes delivers change notices already filtered to this access key.
	Changes() <-chan ChangeNotice
	Connected() bool
}

// FallbackGateway fronts the socket and REST clients. Every operation tries
// the realtime channel when connected and degrades to REST on failure; if
// both fail the REST error is surfaced. A push that timed out waiting for
// its ack may still land server-side in addition to the REST retry, which is
// safe because backend updates are merges, not appends.
type FallbackGateway struct {
	socket *SocketClient
	rest   *RESTClient
	logger zerolog.Logger
}

func NewGateway(socket *SocketClient, rest *RESTClient, logger zerolog.Logger) *FallbackGateway {
	return &FallbackGateway{socket: socket, rest: rest, logger: logger}
}

func (g *FallbackGateway) FetchStats(ctx context.Context) (*dto.Snapshot, error) {
	if g.socket.Connected() {
		snap, err := g.socket.FetchStats(ctx)
		if err == nil {
			return snap, nil
		}
		g.logger.Warn().Err(err).Msg("realtime fetch failed, falling back to rest")
	}
	return g.rest.FetchStats(ctx)
}

func (g *FallbackGateway) PushStats(ctx context.Context, payload []byte) error {
	if g.socket.Connected() {
		if err := g.socket.PushStats(ctx, payload); err == nil {
			return nil
		} else {
			g.logger.Warn().Err(err).Msg("realtime push failed, falling back to rest")
		}
	}
	return g.rest.PushStats(ctx, payload)
}

func (g *FallbackGateway) ClearStats(ctx context.Context) error {
	if g.socket.Connected() {
		if err := g.socket.ClearStats(ctx); err == nil {
			return nil
		} else {
			g.logger.Warn().Err(err).Msg("realtime clear failed, falling back to rest")
		}
	}
	return g.rest.ClearStats(ctx)
}

func (g *FallbackGateway) DeleteBattle(ctx context.Context, arenaID string) error {
	if g.socket.Connected() {
		if err := g.socket.DeleteBattle(ctx, arenaID); err == nil {
			return nil
		} else {
			g.logger.Warn().Err(err).Str("arena_id", arenaID).Msg("realtime delete failed, falling back to rest")
		}
	}
	return g.rest.DeleteBattle(ctx, arenaID)
}

func (g *FallbackGateway) ImportStats(ctx context.Context, payload []byte) error {
	if g.socket.Connected() {
		if err := g.socket.ImportStats(ctx, payload); err == nil {
			return nil
		} else {
			g.logger.Warn().Err(err).Msg("realtime import failed, falling back to rest")
		}
	}
	return g.rest.ImportStats(ctx, payload)
}

func (g *FallbackGateway) Changes() <-chan ChangeNotice {
	return g.socket.Changes()
}

func (g *FallbackGateway) Connected() bool {
	return g.socket.Connected()
}
