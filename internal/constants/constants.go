package constants

import "time"

const (
	// DebounceWindow coalesces bursts of local mutations into one push.
	DebounceWindow = 500 * time.Millisecond

	// SocketAckTimeout bounds the wait for a realtime acknowledgment before
	// the REST fallback runs.
	SocketAckTimeout = 3 * time.Second

	SnapshotFlushInterval = 30 * time.Second
)

const (
	BackendTimeout  = 10 * time.Second
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	SocketWriteWait      = 10 * time.Second
	SocketPongWait       = 60 * time.Second
	SocketPingPeriod     = (SocketPongWait * 9) / 10
	SocketMaxMessageSize = 512 * 1024

	SocketReconnectAttempts = 5
	SocketReconnectBackoff  = 5 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// MaxTrackedPlatoonSize caps how large a platoon this client will register
	// players for; beyond it registration is left to squad-mates' clients.
	MaxTrackedPlatoonSize = 3
)
