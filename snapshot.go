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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sort"

	"github.com/arcflow-db/occstore/pkg/bufferpool"
	"github.com/arcflow-db/occstore/pkg/history"
	pkgutils "github.com/arcflow-db/occstore/pkg/utils"
	"github.com/arcflow-db/occstore/utils"
)

const _snapshotTag = "occstore.snapshot.v1"

// ErrInvalidSnapshotMagic is returned by Import when the decompressed
// payload doesn't start with the expected snapshot tag, e.g. the
// stream wasn't produced by Export.
var ErrInvalidSnapshotMagic = errors.New("occstore: invalid snapshot magic")

// Export writes an s2-compressed, self-contained dump of every key's
// full version history and last-read index to w. This is an opt-in
// administrative operation: it is never consulted by Get, Prepare,
// Commit, Abort, or Load, and has no bearing on OCC validation.
func (s *VersionStore) Export(w io.Writer) error {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	ew := utils.NewErrorWriter(buf)
	ew.Write(binary.LittleEndian, pkgutils.Magic(_snapshotTag))

	keys := make([]string, 0, len(s.versions))
	for k := range s.versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ew.Write(binary.LittleEndian, uint64(len(keys)))
	for _, k := range keys {
		ew.Write(binary.LittleEndian, uint16(len(k)))
		ew.Write(binary.LittleEndian, []byte(k))

		entries := s.versions[k].All()
		ew.Write(binary.LittleEndian, uint64(len(entries)))
		for _, e := range entries {
			ew.Write(binary.LittleEndian, e.Ts.Time)
			ew.Write(binary.LittleEndian, e.Ts.ID)
			ew.Write(binary.LittleEndian, e.Op)
			ew.Write(binary.LittleEndian, uint32(len(e.Value)))
			ew.Write(binary.LittleEndian, e.Value)
		}
	}

	lrKeys := make([]string, 0, len(s.lastReads))
	for k := range s.lastReads {
		lrKeys = append(lrKeys, k)
	}
	sort.Strings(lrKeys)

	ew.Write(binary.LittleEndian, uint64(len(lrKeys)))
	for _, k := range lrKeys {
		ew.Write(binary.LittleEndian, uint16(len(k)))
		ew.Write(binary.LittleEndian, []byte(k))

		byTs := s.lastReads[k]
		ew.Write(binary.LittleEndian, uint64(len(byTs)))
		for versionTs, lastRead := range byTs {
			ew.Write(binary.LittleEndian, versionTs.Time)
			ew.Write(binary.LittleEndian, versionTs.ID)
			ew.Write(binary.LittleEndian, lastRead.Time)
			ew.Write(binary.LittleEndian, lastRead.ID)
		}
	}

	if ew.Error() != nil {
		return ew.Error()
	}
	return pkgutils.Compress(buf, w)
}

// Import replaces the store's entire state with the snapshot read from
// r, which must have been produced by Export. It does not merge: every
// key and last-read entry not present in the snapshot is dropped.
func (s *VersionStore) Import(r io.Reader) error {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	if err := pkgutils.Decompress(r, buf); err != nil {
		return err
	}

	er := utils.NewErrorReader(bytes.NewReader(buf.Bytes()))

	var magic uint64
	er.Read(binary.LittleEndian, &magic)
	if err := er.Error(); err != nil {
		return err
	}
	if magic != pkgutils.Magic(_snapshotTag) {
		return ErrInvalidSnapshotMagic
	}

	var keyCount uint64
	er.Read(binary.LittleEndian, &keyCount)

	versions := make(map[string]*history.List, keyCount)
	for i := uint64(0); i < keyCount; i++ {
		var keyLen uint16
		er.Read(binary.LittleEndian, &keyLen)
		keyBytes := make([]byte, keyLen)
		er.Read(binary.LittleEndian, &keyBytes)

		var versionCount uint64
		er.Read(binary.LittleEndian, &versionCount)

		list := history.New(s.maxLevel, s.p)
		for j := uint64(0); j < versionCount; j++ {
			var t, id uint64
			var op uint8
			var valueLen uint32
			er.Read(binary.LittleEndian, &t)
			er.Read(binary.LittleEndian, &id)
			er.Read(binary.LittleEndian, &op)
			er.Read(binary.LittleEndian, &valueLen)
			value := make([]byte, valueLen)
			er.Read(binary.LittleEndian, &value)
			if err := er.Error(); err != nil {
				return err
			}
			list.Put(history.Timestamp{Time: t, ID: id}, value, op)
		}
		versions[string(keyBytes)] = list
	}

	var lrKeyCount uint64
	er.Read(binary.LittleEndian, &lrKeyCount)

	lastReads := make(map[string]map[Timestamp]Timestamp, lrKeyCount)
	for i := uint64(0); i < lrKeyCount; i++ {
		var keyLen uint16
		er.Read(binary.LittleEndian, &keyLen)
		keyBytes := make([]byte, keyLen)
		er.Read(binary.LittleEndian, &keyBytes)

		var pairCount uint64
		er.Read(binary.LittleEndian, &pairCount)

		byTs := make(map[Timestamp]Timestamp, pairCount)
		for j := uint64(0); j < pairCount; j++ {
			var vt, vid, rt, rid uint64
			er.Read(binary.LittleEndian, &vt)
			er.Read(binary.LittleEndian, &vid)
			er.Read(binary.LittleEndian, &rt)
			er.Read(binary.LittleEndian, &rid)
			if err := er.Error(); err != nil {
				return err
			}
			byTs[Timestamp{Time: vt, ID: vid}] = Timestamp{Time: rt, ID: rid}
		}
		lastReads[string(keyBytes)] = byTs
	}

	if err := er.Error(); err != nil {
		return err
	}

	s.versions = versions
	s.lastReads = lastReads
	return nil
}

// ExportSnapshot writes an administrative snapshot of the coordinator's
// entire store. See VersionStore.Export.
func (c *Coordinator) ExportSnapshot(w io.Writer) error {
	return c.store.Export(w)
}

// ImportSnapshot replaces the coordinator's entire store from a
// snapshot. It does not touch the prepared registry: callers are
// expected to import only into a coordinator with nothing prepared.
// See VersionStore.Import.
func (c *Coordinator) ImportSnapshot(r io.Reader) error {
	return c.store.Import(r)
}
