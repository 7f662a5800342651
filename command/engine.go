package command

import (
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/host"
)

// Engine owns every logical database the host has opened (its own
// SELECT index) and is what OnKeyMoved/OnDBSwapped reach through to
// find the peer database named by a cross-database event (§5). A host
// that exposes only a single database has no need for it: NewDatabase
// alone is a complete, standalone KeyEventSink for everything except
// moves and swaps, which OnKeyMoved/OnDBSwapped no-op without an
// Engine.
type Engine struct {
	global   config.Global
	notifier host.Notifier

	dbs map[int]*Database
}

// NewEngine builds an Engine with no databases open yet; DB lazily
// creates one on first reference, mirroring a host that opens logical
// databases on demand.
func NewEngine(global config.Global, notifier host.Notifier) *Engine {
	return &Engine{
		global:   global,
		notifier: notifier,
		dbs:      map[int]*Database{},
	}
}

// DB returns the Database at the given logical index, creating it
// empty on first use.
func (e *Engine) DB(index int) *Database {
	db, ok := e.dbs[index]
	if ok {
		return db
	}
	db = NewDatabase(e.global, e.notifier)
	db.engine = e
	db.dbIndex = index
	e.dbs[index] = db
	return db
}

// swap exchanges the Database objects registered at db1 and db2 so
// that whichever database the host subsequently addresses as db1 sees
// what was previously db2's series table and index, and vice versa
// (§5, §8 property 10). Their dbIndex fields are updated to match so a
// later OnKeyMoved/OnDBSwapped delivered against either still resolves
// itself correctly.
func (e *Engine) swap(db1, db2 int) {
	a, b := e.DB(db1), e.DB(db2)
	a.dbIndex, b.dbIndex = db2, db1
	e.dbs[db1], e.dbs[db2] = b, a
}
