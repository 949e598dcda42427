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
	"github.com/arcflow-db/occstore/pkg/history"
)

// VersionStore holds the multi-version history of every key plus the
// last-reads index used by the Coordinator's write/increment checks.
// It knows nothing about prepared transactions; that bookkeeping
// belongs entirely to the Coordinator.
type VersionStore struct {
	maxLevel int
	p        float64

	versions  map[string]*history.List
	lastReads map[string]map[Timestamp]Timestamp
}

// NewVersionStore builds an empty store. maxLevel/p size every key's
// history skip list (see pkg/history.New).
func NewVersionStore(maxLevel int, p float64) *VersionStore {
	return &VersionStore{
		maxLevel:  maxLevel,
		p:         p,
		versions:  make(map[string]*history.List),
		lastReads: make(map[string]map[Timestamp]Timestamp),
	}
}

func toHistoryTs(t Timestamp) history.Timestamp {
	return history.Timestamp{Time: t.Time, ID: t.ID}
}

func fromHistoryTs(t history.Timestamp) Timestamp {
	return Timestamp{Time: t.Time, ID: t.ID}
}

func fromHistoryEntry(e history.Entry) VersionedValue {
	return VersionedValue{
		Timestamp: fromHistoryTs(e.Ts),
		Value:     e.Value,
		Op:        OpKind(e.Op),
	}
}

func (s *VersionStore) historyOf(key string) (*history.List, bool) {
	h, ok := s.versions[key]
	return h, ok
}

func (s *VersionStore) historyFor(key string) *history.List {
	h, ok := s.versions[key]
	if !ok {
		h = history.New(s.maxLevel, s.p)
		s.versions[key] = h
	}
	return h
}

// Get returns the highest-timestamped version of key.
func (s *VersionStore) Get(key string) (VersionedValue, bool) {
	h, ok := s.historyOf(key)
	if !ok {
		return VersionedValue{}, false
	}
	e, ok := h.Latest()
	if !ok {
		return VersionedValue{}, false
	}
	return fromHistoryEntry(e), true
}

// GetAt returns the version of key valid at t (the greatest-timestamped
// version with timestamp <= t), or absent if none exists.
func (s *VersionStore) GetAt(key string, t Timestamp) (VersionedValue, bool) {
	h, ok := s.historyOf(key)
	if !ok {
		return VersionedValue{}, false
	}
	e, ok := h.At(toHistoryTs(t))
	if !ok {
		return VersionedValue{}, false
	}
	return fromHistoryEntry(e), true
}

// GetRange returns the validity interval of the version valid at t: lo
// is that version's timestamp, hi is the next-higher version's
// timestamp or InvalidTimestamp if none exists. ok is false if no
// version is valid at t (or the key is absent).
func (s *VersionStore) GetRange(key string, t Timestamp) (lo, hi Timestamp, ok bool) {
	h, present := s.historyOf(key)
	if !present {
		return InvalidTimestamp, InvalidTimestamp, false
	}
	hlo, hhi, found := h.RangeAt(toHistoryTs(t))
	if !found {
		return InvalidTimestamp, InvalidTimestamp, false
	}
	return fromHistoryTs(hlo), fromHistoryTs(hhi), true
}

// cursorAt positions a forward cursor at the version of key valid at t
// (or at end-of-history if none, or a nil-valid cursor if key is
// absent entirely). Used by the Coordinator to scan later versions.
func (s *VersionStore) cursorAt(key string, t Timestamp) *history.Cursor {
	h, ok := s.historyOf(key)
	if !ok {
		h = history.New(s.maxLevel, s.p)
	}
	return h.NewCursor(toHistoryTs(t))
}

// Put inserts a WRITE version of key at t. A version already present
// at exactly t makes this a no-op: callers must choose unique commit
// timestamps.
func (s *VersionStore) Put(key string, value []byte, t Timestamp) {
	s.historyFor(key).Put(toHistoryTs(t), value, uint8(WRITE))
}

// Increment reads the current latest version of key, applies inc to
// it, and inserts the result as a new version at t. A key with no
// prior version starts from the empty byte string.
func (s *VersionStore) Increment(key string, inc Increment, t Timestamp) VersionedValue {
	h := s.historyFor(key)
	prior := []byte{}
	if latest, ok := h.Latest(); ok {
		prior = latest.Value
	}
	applied := inc.apply(prior)
	h.Put(toHistoryTs(t), applied, uint8(inc.Op))
	return VersionedValue{Timestamp: t, Value: applied, Op: inc.Op}
}

// CommitGet records that a transaction committing at commitTime read
// the version of key valid at readTime, advancing that version's
// last-read high-water mark. A read of a key this replica doesn't have
// is silently ignored: a read of an unknown key can't later be
// invalidated by this replica.
func (s *VersionStore) CommitGet(key string, readTime, commitTime Timestamp) {
	h, ok := s.historyOf(key)
	if !ok {
		return
	}
	e, ok := h.At(toHistoryTs(readTime))
	if !ok {
		return
	}
	ts := fromHistoryTs(e.Ts)

	byTs, ok := s.lastReads[key]
	if !ok {
		byTs = make(map[Timestamp]Timestamp)
		s.lastReads[key] = byTs
	}
	if existing, ok := byTs[ts]; !ok || commitTime.Greater(existing) {
		byTs[ts] = commitTime
	}
}

// GetLastRead returns the last-read high-water mark of key's latest
// version, if one has been recorded.
func (s *VersionStore) GetLastRead(key string) (Timestamp, bool) {
	h, ok := s.historyOf(key)
	if !ok {
		return InvalidTimestamp, false
	}
	latest, ok := h.Latest()
	if !ok {
		return InvalidTimestamp, false
	}
	ts, ok := s.lastReads[key][fromHistoryTs(latest.Ts)]
	return ts, ok
}

// GetLastReadAt returns the last-read high-water mark of the version of
// key valid at t. Absent key returns false. If key has history but no
// version is valid at t, that is an inconsistent call site and panics.
func (s *VersionStore) GetLastReadAt(key string, t Timestamp) (Timestamp, bool) {
	h, ok := s.historyOf(key)
	if !ok {
		return InvalidTimestamp, false
	}
	e, ok := h.At(toHistoryTs(t))
	assertf(ok, "occstore: GetLastReadAt called with no version valid at %v for key %q", t, key)
	ts, ok := s.lastReads[key][fromHistoryTs(e.Ts)]
	return ts, ok
}
