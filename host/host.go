// Package host declares the collaborator interfaces the embedding
// process supplies (§6.1). tscore calls these; it never implements
// them. A concrete host adapts its own command dispatch, keyspace
// notification, persistence and clustering machinery to this surface.
package host

import "io"

// CommandCategory mirrors the host's ACL category tags (§4.7, §6.1).
type CommandCategory string

const (
	CategoryRead       CommandCategory = "read"
	CategoryWrite      CommandCategory = "write"
	CategoryFast       CommandCategory = "fast"
	CategoryDenyOOM    CommandCategory = "denyoom"
	CategoryTimeseries CommandCategory = "timeseries"
)

// CommandHandler is invoked by the host's dispatcher with the raw
// argument vector of a TS.* command; tscore's command package supplies
// one per command name.
type CommandHandler func(args []string) (reply interface{}, err error)

// Registrar lets tscore declare its command surface to the host at
// startup (§6.1 "a command registrar").
type Registrar interface {
	RegisterCommand(name string, arity int, categories []CommandCategory, handler CommandHandler) error
}

// KeyEventSink receives the keyspace lifecycle events tscore's series
// table must react to. The host calls these; tscore never originates
// them.
type KeyEventSink interface {
	OnKeyDeleted(key string)
	OnKeyRenamed(oldKey, newKey string)
	OnKeyMoved(key string, fromDB, toDB int)
	OnKeyExpired(key string)
	OnDBFlushed(db int)
	OnKeyRestored(key string)
	OnDBSwapped(db1, db2 int)
}

// Persister is the save/load callback pair the host drives during RDB
// -equivalent snapshotting (§4.10, §6.1).
type Persister interface {
	Save(w io.Writer) error
	Load(r io.Reader) error
}

// AOFRewriter produces the textual command sequence the host appends to
// its rewrite log for one key (§4.10 Rewrite).
type AOFRewriter interface {
	RewriteAOF(key string) ([]string, error)
}

// Notifier publishes a keyspace notification event on channel, tagged
// per §4.7 (e.g. "ts.add", "ts.add:dest").
type Notifier interface {
	Notify(channel, event string) error
}

// FanoutScatter dispatches a command's shard-local arguments across the
// cluster and returns the per-shard raw replies for gather-side
// reduction (§6.1's cluster fan-out primitive; §4 Supplemented features'
// command.FanoutReducer consumes the result).
type FanoutScatter interface {
	Scatter(command string, args []string) ([][]byte, error)
}
