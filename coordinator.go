// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package occstore

import (
	"sort"

	"github.com/arcflow-db/occstore/pkg/fingerprint"
	"github.com/arcflow-db/occstore/pkg/logger"
)

// preparedTxn is one entry of the prepared-transaction registry: the
// timestamp the coordinator proposed to validate at, and the
// transaction itself (its read/write/increment sets are re-examined by
// every later Prepare call racing against it).
type preparedTxn struct {
	ts  Timestamp
	txn *Transaction
}

// preparedIncRef is one prepared transaction's increment touch on a
// key: the timestamp it proposed and the op kinds it queued for that
// key, needed to check commutativity against a competing increment.
type preparedIncRef struct {
	ts  Timestamp
	ops []OpKind
}

// Coordinator is the single-threaded Transaction Coordinator: it owns
// a VersionStore plus the prepared-transaction registry and implements
// the OCC validation (Prepare), application (Commit), and rollback
// (Abort) of transactions. Every method runs to completion before the
// next call starts; there is no internal concurrency.
type Coordinator struct {
	cfg   Config
	store *VersionStore

	prepared map[uint64]preparedTxn

	// Pre-filters over the prepared registry's current key set, one per
	// fan-out kind (write/read/increment). Rebuilt whenever the registry
	// changes. A filter never has false negatives, so a "definitely
	// absent" answer lets Prepare skip scanning the registry for a key
	// with no prepared touches of that kind; it never changes a
	// decision, only whether the registry gets walked to reach it.
	writeFilter *fingerprint.Filter
	readFilter  *fingerprint.Filter
	incFilter   *fingerprint.Filter
}

// NewCoordinator builds a Coordinator with an empty store, applying
// cfg's defaults for any zero-valued tuning field.
func NewCoordinator(cfg Config) *Coordinator {
	cfg.validate()
	c := &Coordinator{
		cfg:      cfg,
		store:    NewVersionStore(cfg.HistoryMaxLevel, cfg.HistoryP),
		prepared: make(map[uint64]preparedTxn),
	}
	c.rebuildFilters()
	return c
}

func (c *Coordinator) rebuildFilters() {
	var writeKeys, readKeys, incKeys []string
	for _, p := range c.prepared {
		for k := range p.txn.writeSet {
			writeKeys = append(writeKeys, k)
		}
		for k := range p.txn.readSet {
			readKeys = append(readKeys, k)
		}
		for k := range p.txn.incrementSet {
			incKeys = append(incKeys, k)
		}
	}
	build := func(keys []string) *fingerprint.Filter {
		f := fingerprint.New(len(keys), c.cfg.FingerprintFalsePositiveRate)
		for _, k := range keys {
			f.Add(k)
		}
		return f
	}
	c.writeFilter = build(writeKeys)
	c.readFilter = build(readKeys)
	c.incFilter = build(incKeys)
}

func (c *Coordinator) preparedWriteTimestamps(key string) []Timestamp {
	if !c.writeFilter.MaybeContains(key) {
		return nil
	}
	var out []Timestamp
	for _, p := range c.prepared {
		if _, ok := p.txn.writeSet[key]; ok {
			out = append(out, p.ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (c *Coordinator) preparedReadTimestamps(key string) []Timestamp {
	if !c.readFilter.MaybeContains(key) {
		return nil
	}
	var out []Timestamp
	for _, p := range c.prepared {
		if _, ok := p.txn.readSet[key]; ok {
			out = append(out, p.ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (c *Coordinator) preparedIncrements(key string) []preparedIncRef {
	if !c.incFilter.MaybeContains(key) {
		return nil
	}
	var out []preparedIncRef
	for _, p := range c.prepared {
		incs, ok := p.txn.incrementSet[key]
		if !ok {
			continue
		}
		ops := make([]OpKind, len(incs))
		for i, inc := range incs {
			ops[i] = inc.Op
		}
		out = append(out, preparedIncRef{ts: p.ts, ops: ops})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ts.Less(out[j].ts) })
	return out
}

func (c *Coordinator) preparedIncrementTimestamps(key string) []Timestamp {
	refs := c.preparedIncrements(key)
	out := make([]Timestamp, len(refs))
	for i, r := range refs {
		out[i] = r.ts
	}
	return out
}

// anyLessOrEqual reports whether the ascending-sorted ts contains an
// element <= t.
func anyLessOrEqual(ts []Timestamp, t Timestamp) bool {
	return len(ts) > 0 && !ts[0].Greater(t)
}

// anyBetweenExclusive reports whether the ascending-sorted ts contains
// an element strictly between lo and t.
func anyBetweenExclusive(ts []Timestamp, lo, t Timestamp) bool {
	for _, x := range ts {
		if x.Greater(lo) && x.Less(t) {
			return true
		}
	}
	return false
}

// firstGreater returns the smallest element of the ascending-sorted ts
// that is strictly greater than t.
func firstGreater(ts []Timestamp, t Timestamp) (Timestamp, bool) {
	for _, x := range ts {
		if x.Greater(t) {
			return x, true
		}
	}
	return InvalidTimestamp, false
}

// Prepare validates txn against the current store state and the
// prepared registry, proposing to commit it at t. A re-prepare of an
// id already in the registry at the same t is idempotent and returns
// OK immediately; at a different t, the old entry is dropped and
// validation runs fresh against the new proposal.
func (c *Coordinator) Prepare(id uint64, txn *Transaction, t Timestamp) (Reply, Timestamp) {
	log := logger.GetLogger()

	if p, ok := c.prepared[id]; ok {
		if p.ts.Equal(t) {
			log.Debugf("[%d] already prepared at %v", id, t)
			return OK, InvalidTimestamp
		}
		log.Debugf("[%d] re-preparing at %v, dropping old entry at %v", id, t, p.ts)
		delete(c.prepared, id)
		c.rebuildFilters()
	}

	for k, tr := range txn.ReadSet() {
		lo, hi, ok := c.store.GetRange(k, tr)
		if !ok || !lo.Equal(tr) {
			// No version of k is valid at exactly tr: nothing this
			// replica holds can contradict the read, so it is not
			// re-checked against the prepared registry either.
			continue
		}

		if !hi.IsValid() {
			// k's read version is still the latest; the only possible
			// conflict is a transaction prepared to write or increment
			// it out from under this read.
			if pw := c.preparedWriteTimestamps(k); len(pw) > 0 && (c.cfg.Linearizable || anyLessOrEqual(pw, t)) {
				log.Debugf("[%d] ABSTAIN: read of %q races a prepared write", id, k)
				return ABSTAIN, InvalidTimestamp
			}
			if pi := c.preparedIncrementTimestamps(k); len(pi) > 0 && (c.cfg.Linearizable || anyLessOrEqual(pi, t)) {
				log.Debugf("[%d] ABSTAIN: read of %q races a prepared increment", id, k)
				return ABSTAIN, InvalidTimestamp
			}
			continue
		}

		if c.cfg.Linearizable || t.Greater(hi) {
			assertf(t.Greater(lo), "occstore: read-set timestamp %v for %q not after range start %v", t, k, lo)
			log.Debugf("[%d] FAIL: %q was overwritten at %v before proposed %v", id, k, hi, t)
			return FAIL, InvalidTimestamp
		}

		// Non-linearizable and t is not after hi: only a prepared
		// write/increment strictly between lo and t can invalidate the
		// read; anything else committed or prepared at or after hi is
		// already accounted for by the range check above.
		if anyBetweenExclusive(c.preparedWriteTimestamps(k), lo, t) {
			log.Debugf("[%d] ABSTAIN: prepared write on %q between %v and %v", id, k, lo, t)
			return ABSTAIN, InvalidTimestamp
		}
		if anyBetweenExclusive(c.preparedIncrementTimestamps(k), lo, t) {
			log.Debugf("[%d] ABSTAIN: prepared increment on %q between %v and %v", id, k, lo, t)
			return ABSTAIN, InvalidTimestamp
		}
	}

	for k := range txn.WriteSet() {
		if latest, ok := c.store.Get(k); ok {
			if c.cfg.Linearizable && latest.Timestamp.Greater(t) {
				log.Debugf("[%d] RETRY: %q committed at %v after proposed %v", id, k, latest.Timestamp, t)
				return RETRY, latest.Timestamp
			}

			var lastRead Timestamp
			var hasLR bool
			if c.cfg.Linearizable {
				lastRead, hasLR = c.store.GetLastRead(k)
			} else {
				lastRead, hasLR = c.store.GetLastReadAt(k, t)
			}
			if hasLR && lastRead.Greater(t) {
				log.Debugf("[%d] RETRY: %q last read at %v after proposed %v", id, k, lastRead, t)
				return RETRY, lastRead
			}
		}

		// Non-linearizable mode does not re-check pending prepared
		// writes/increments here: a looser write-write race is allowed
		// to proceed and resolve at commit time.
		if c.cfg.Linearizable {
			if ts, ok := firstGreater(c.preparedWriteTimestamps(k), t); ok {
				log.Debugf("[%d] RETRY: prepared write on %q at %v", id, k, ts)
				return RETRY, ts
			}
			if ts, ok := firstGreater(c.preparedIncrementTimestamps(k), t); ok {
				log.Debugf("[%d] RETRY: prepared increment on %q at %v", id, k, ts)
				return RETRY, ts
			}
		}

		if ts, ok := firstGreater(c.preparedReadTimestamps(k), t); ok {
			log.Debugf("[%d] ABSTAIN: prepared read of %q at %v", id, k, ts)
			return ABSTAIN, InvalidTimestamp
		}
	}

	for k, incs := range txn.IncrementSet() {
		if c.cfg.Linearizable {
			var conflict Timestamp
			cur := c.store.cursorAt(k, t)
			for cur.Valid() {
				e := cur.Entry()
				entryTs := fromHistoryTs(e.Ts)
				if !entryTs.Less(t) {
					for _, want := range incs {
						if OpKind(e.Op) != want.Op {
							conflict = entryTs
						}
					}
				}
				cur.Next()
			}
			if conflict.IsValid() {
				log.Debugf("[%d] RETRY: committed op kind mismatch on %q at %v", id, k, conflict)
				return RETRY, conflict
			}
		}

		var lastRead Timestamp
		var hasLR bool
		if c.cfg.Linearizable {
			lastRead, hasLR = c.store.GetLastRead(k)
		} else {
			lastRead, hasLR = c.store.GetLastReadAt(k, t)
		}
		if hasLR && lastRead.Greater(t) {
			log.Debugf("[%d] RETRY: %q last read at %v after proposed %v", id, k, lastRead, t)
			return RETRY, lastRead
		}

		if c.cfg.Linearizable {
			if ts, ok := firstGreater(c.preparedWriteTimestamps(k), t); ok {
				log.Debugf("[%d] RETRY: prepared write on %q at %v", id, k, ts)
				return RETRY, ts
			}

			var conflict Timestamp
			for _, ref := range c.preparedIncrements(k) {
				if !ref.ts.Greater(t) {
					continue
				}
				for _, op := range ref.ops {
					for _, want := range incs {
						if op != want.Op {
							conflict = ref.ts
						}
					}
				}
			}
			if conflict.IsValid() {
				log.Debugf("[%d] RETRY: prepared increment op kind mismatch on %q at %v", id, k, conflict)
				return RETRY, conflict
			}
		}

		if ts, ok := firstGreater(c.preparedReadTimestamps(k), t); ok {
			log.Debugf("[%d] ABSTAIN: prepared read of %q at %v", id, k, ts)
			return ABSTAIN, InvalidTimestamp
		}
	}

	c.prepared[id] = preparedTxn{ts: t, txn: txn}
	c.rebuildFilters()
	log.Debugf("[%d] OK at %v", id, t)
	return OK, InvalidTimestamp
}

// Commit applies the transaction previously prepared under id at its
// prepared timestamp, then drops it from the registry. It is an error
// to commit an id that isn't currently prepared.
func (c *Coordinator) Commit(id uint64) error {
	p, ok := c.prepared[id]
	if !ok {
		return ErrUnknownTxn
	}
	c.apply(p.ts, p.txn)
	delete(c.prepared, id)
	c.rebuildFilters()
	return nil
}

// CommitTransaction applies txn at t directly, bypassing the prepared
// registry. Used to catch a replica up to a commit decided elsewhere
// (e.g. by a quorum this replica wasn't part of validating).
func (c *Coordinator) CommitTransaction(t Timestamp, txn *Transaction) {
	c.apply(t, txn)
}

func (c *Coordinator) apply(t Timestamp, txn *Transaction) {
	for k, v := range txn.WriteSet() {
		c.store.Put(k, v, t)
	}
	for k, incs := range txn.IncrementSet() {
		for _, inc := range incs {
			c.store.Increment(k, inc, t)
		}
	}
	for k, tr := range txn.ReadSet() {
		c.store.CommitGet(k, tr, t)
	}
}

// Abort drops id from the prepared registry. Aborting an id that isn't
// prepared is a no-op.
func (c *Coordinator) Abort(id uint64) {
	if _, ok := c.prepared[id]; !ok {
		return
	}
	delete(c.prepared, id)
	c.rebuildFilters()
}

// Load installs value as a committed version of key at t directly,
// bypassing Prepare/Commit. Used to seed a replica's state (from a
// snapshot, or from another replica's log) rather than to validate a
// live transaction.
func (c *Coordinator) Load(key string, value []byte, t Timestamp) {
	c.store.Put(key, value, t)
}

// Get returns key's latest committed version. id identifies the
// calling transaction for tracing only; it plays no role in the
// lookup.
func (c *Coordinator) Get(id uint64, key string) (VersionedValue, bool) {
	v, ok := c.store.Get(key)
	logger.GetLogger().Debugf("[%d] Get(%q) -> ts=%v ok=%v", id, key, v.Timestamp, ok)
	return v, ok
}

// GetAt returns the version of key valid at t. id identifies the
// calling transaction for tracing only.
func (c *Coordinator) GetAt(id uint64, key string, t Timestamp) (VersionedValue, bool) {
	v, ok := c.store.GetAt(key, t)
	logger.GetLogger().Debugf("[%d] Get(%q, %v) -> ts=%v ok=%v", id, key, t, v.Timestamp, ok)
	return v, ok
}
