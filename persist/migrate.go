package persist

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/ethereum/go-ethereum/log"

	tserr "github.com/ledgerwatch/tscore/errors"
)

// migration upgrades a snapshot stream one FormatVersion forward.
// Idempotency is expected: From must match the stream's current
// version exactly, so re-running Migrate against an already-upgraded
// stream is a no-op.
type migration struct {
	Name string
	From uint32
	Up   func(io.Reader) (Snapshot, error)
}

// migrations apply sequentially by ascending From; add one entry here
// whenever FormatVersion is bumped, skip branches are never needed
// because each migration fully reads its source version into a
// Snapshot and the next migration (or Load) re-serializes from there.
var migrations []migration

// Migrator runs registered migrations against an on-disk snapshot
// until it reads at the current FormatVersion, then loads it.
type Migrator struct {
	Migrations []migration
}

func NewMigrator() *Migrator {
	return &Migrator{Migrations: migrations}
}

// Migrate reads the version header from r, applies any migration whose
// From matches, and returns the up-to-date Snapshot. A stream already
// at FormatVersion is loaded directly.
func (m *Migrator) Migrate(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(4)
	if err != nil {
		return Snapshot{}, tserr.Wrap(tserr.Unsupported, err)
	}
	version := binary.LittleEndian.Uint32(peek)
	if version == FormatVersion {
		return Load(br)
	}
	for _, mig := range m.Migrations {
		if mig.From != version {
			continue
		}
		log.Info("applying snapshot migration", "name", mig.Name, "from", version)
		return mig.Up(br)
	}
	return Snapshot{}, tserr.New(tserr.Unsupported, "no migration registered for snapshot version %d", version)
}
