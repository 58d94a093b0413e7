package store

// The aggregate queries are memoized under strongly typed scope keys rather
// than string-prefixed cache keys. Each scope carries a monotonic version
// counter; every mutation bumps the counters of the scopes it touches,
// including in-place merges that keep the battle count unchanged. A memo
// entry is valid only while its recorded version matches the scope's counter.

type scopeKind int

const (
	scopeBattle scopeKind = iota
	scopePlayer
	scopeTeam
	scopeBestWorst
)

type scope struct {
	kind scopeKind
	id   string
}

func battleScope(arenaID string) scope  { return scope{kind: scopeBattle, id: arenaID} }
func playerScope(playerID string) scope { return scope{kind: scopePlayer, id: playerID} }

var (
	teamScope      = scope{kind: scopeTeam}
	bestWorstScope = scope{kind: scopeBestWorst}
)

type memoEntry struct {
	version uint64
	value   any
}

type memoCache struct {
	versions map[scope]uint64
	entries  map[scope]memoEntry
}

func newMemoCache() *memoCache {
	return &memoCache{
		versions: make(map[scope]uint64),
		entries:  make(map[scope]memoEntry),
	}
}

func (c *memoCache) bump(scopes ...scope) {
	for _, s := range scopes {
		c.versions[s]++
	}
}

func (c *memoCache) invalidateAll() {
	for s := range c.versions {
		c.versions[s]++
	}
	c.entries = make(map[scope]memoEntry)
}

func (c *memoCache) get(s scope) (any, bool) {
	e, ok := c.entries[s]
	if !ok || e.version != c.versions[s] {
		return nil, false
	}
	return e.value, true
}

func (c *memoCache) put(s scope, v any) {
	c.entries[s] = memoEntry{version: c.versions[s], value: v}
}
