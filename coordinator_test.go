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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(linearizable bool) *Coordinator {
	cfg := DefaultConfig
	cfg.Linearizable = linearizable
	return NewCoordinator(cfg)
}

// Scenario 2: read-write conflict, linearizable.
func TestCoordinatorReadWriteConflictLinearizable(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))

	txnA := NewTransaction()
	txnA.AddRead("x", NewTimestamp(10, 0))
	reply, _ := c.Prepare(1, txnA, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)
	require.NoError(t, c.Commit(1))

	txnB := NewTransaction()
	txnB.AddWrite("x", []byte("b"))
	reply, proposed := c.Prepare(2, txnB, NewTimestamp(15, 0))
	assert.Equal(t, RETRY, reply)
	assert.Equal(t, NewTimestamp(20, 0), proposed)
}

// Scenario 3: write-write on latest, linearizable.
func TestCoordinatorWriteWriteConflictLinearizable(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(30, 0))

	txn := NewTransaction()
	txn.AddWrite("x", []byte("b"))
	reply, proposed := c.Prepare(1, txn, NewTimestamp(20, 0))
	assert.Equal(t, RETRY, reply)
	assert.Equal(t, NewTimestamp(30, 0), proposed)
}

// Scenario 4: commutative increments, linearizable.
func TestCoordinatorCommutativeIncrementsCommit(t *testing.T) {
	c := newCoordinator(true)
	c.Load("n", []byte("5"), NewTimestamp(10, 0))

	txnA := NewTransaction()
	txnA.AddIncrement("n", NewIncrement([]byte("3"), INCREMENT))
	reply, _ := c.Prepare(1, txnA, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)

	txnB := NewTransaction()
	txnB.AddIncrement("n", NewIncrement([]byte("7"), INCREMENT))
	reply, _ = c.Prepare(2, txnB, NewTimestamp(25, 0))
	require.Equal(t, OK, reply)

	require.NoError(t, c.Commit(1))
	require.NoError(t, c.Commit(2))

	v, ok := c.GetAt(0, "n", NewTimestamp(20, 0))
	require.True(t, ok)
	assert.Equal(t, []byte("8"), v.Value)

	v, ok = c.GetAt(0, "n", NewTimestamp(25, 0))
	require.True(t, ok)
	assert.Equal(t, []byte("15"), v.Value)
}

// Scenario 5: non-commutative increment conflict, linearizable.
func TestCoordinatorNonCommutativeIncrementConflict(t *testing.T) {
	c := newCoordinator(true)
	c.Load("n", []byte("5"), NewTimestamp(10, 0))

	txnA := NewTransaction()
	txnA.AddIncrement("n", NewIncrement([]byte("3"), INCREMENT))
	reply, _ := c.Prepare(1, txnA, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)

	txnB := NewTransaction()
	txnB.AddIncrement("n", NewIncrement([]byte("7"), INCREMENT))
	reply, _ = c.Prepare(2, txnB, NewTimestamp(25, 0))
	require.Equal(t, OK, reply)

	txnC := NewTransaction()
	txnC.AddWrite("n", []byte("0"))
	reply, proposed := c.Prepare(3, txnC, NewTimestamp(22, 0))
	assert.Equal(t, RETRY, reply)
	assert.Equal(t, NewTimestamp(25, 0), proposed)
}

// Scenario 6: validity-range read, non-linearizable vs linearizable.
func TestCoordinatorValidityRangeReadNonLinearizable(t *testing.T) {
	c := newCoordinator(false)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))
	c.Load("x", []byte("b"), NewTimestamp(30, 0))

	txn := NewTransaction()
	txn.AddRead("x", NewTimestamp(10, 0))
	txn.AddWrite("y", []byte("v"))
	reply, _ := c.Prepare(1, txn, NewTimestamp(20, 0))
	assert.Equal(t, OK, reply)
}

func TestCoordinatorValidityRangeReadLinearizableFails(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))
	c.Load("x", []byte("b"), NewTimestamp(30, 0))

	txn := NewTransaction()
	txn.AddRead("x", NewTimestamp(10, 0))
	txn.AddWrite("y", []byte("v"))
	reply, _ := c.Prepare(1, txn, NewTimestamp(20, 0))
	assert.Equal(t, FAIL, reply)
}

// Universal property 4: prepare idempotence at the same timestamp.
func TestCoordinatorPrepareIdempotentAtSameTimestamp(t *testing.T) {
	c := newCoordinator(true)
	txn := NewTransaction()
	txn.AddWrite("k", []byte("v"))

	reply1, _ := c.Prepare(1, txn, NewTimestamp(10, 0))
	require.Equal(t, OK, reply1)
	reply2, _ := c.Prepare(1, txn, NewTimestamp(10, 0))
	assert.Equal(t, OK, reply2)
	assert.Len(t, c.prepared, 1)
}

func TestCoordinatorRePrepareAtDifferentTimestampReplacesEntry(t *testing.T) {
	c := newCoordinator(true)
	txn := NewTransaction()
	txn.AddWrite("k", []byte("v"))

	_, _ = c.Prepare(1, txn, NewTimestamp(10, 0))
	reply, _ := c.Prepare(1, txn, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)
	assert.Equal(t, NewTimestamp(20, 0), c.prepared[1].ts)
}

// Universal property 5: commit-abort exclusivity.
func TestCoordinatorCommitRemovesFromPreparedRegistry(t *testing.T) {
	c := newCoordinator(true)
	txn := NewTransaction()
	txn.AddWrite("k", []byte("v"))
	_, _ = c.Prepare(1, txn, NewTimestamp(10, 0))

	require.NoError(t, c.Commit(1))
	_, present := c.prepared[1]
	assert.False(t, present)
}

func TestCoordinatorAbortRemovesFromPreparedRegistry(t *testing.T) {
	c := newCoordinator(true)
	txn := NewTransaction()
	txn.AddWrite("k", []byte("v"))
	_, _ = c.Prepare(1, txn, NewTimestamp(10, 0))

	c.Abort(1)
	_, present := c.prepared[1]
	assert.False(t, present)
}

func TestCoordinatorCommitUnknownIDReturnsError(t *testing.T) {
	c := newCoordinator(true)
	err := c.Commit(999)
	assert.ErrorIs(t, err, ErrUnknownTxn)
}

func TestCoordinatorAbortUnknownIDIsNoOp(t *testing.T) {
	c := newCoordinator(true)
	assert.NotPanics(t, func() { c.Abort(999) })
}

// Universal property 6: conservation on abort.
func TestCoordinatorAbortLeavesStoreUntouched(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))

	before, ok := c.store.Get("x")
	require.True(t, ok)

	txn := NewTransaction()
	txn.AddWrite("x", []byte("b"))
	txn.AddRead("x", NewTimestamp(10, 0))
	_, _ = c.Prepare(1, txn, NewTimestamp(20, 0))
	c.Abort(1)

	after, ok := c.store.Get("x")
	require.True(t, ok)
	assert.Equal(t, before, after)
	_, hasLastRead := c.store.GetLastRead("x")
	assert.False(t, hasLastRead)
}

// Universal property 7: linearizable read-write ordering.
func TestCoordinatorLinearizableReadWriteOrdering(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))

	reader := NewTransaction()
	reader.AddRead("x", NewTimestamp(10, 0))
	reply, _ := c.Prepare(1, reader, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)
	require.NoError(t, c.Commit(1))

	c.Load("x", []byte("w"), NewTimestamp(30, 0))

	writer := NewTransaction()
	writer.AddWrite("x", []byte("z"))
	reply, _ = c.Prepare(2, writer, NewTimestamp(25, 0))
	assert.NotEqual(t, OK, reply)
}

// Bug-smell #1 (documented, preserved intentionally): the write-set
// path's non-linearizable branch does not re-check pending prepared
// writes on the same key.
func TestCoordinatorNonLinearizableWriteDoesNotCheckPendingWrites(t *testing.T) {
	c := newCoordinator(false)

	txnA := NewTransaction()
	txnA.AddWrite("k", []byte("a"))
	reply, _ := c.Prepare(1, txnA, NewTimestamp(20, 0))
	require.Equal(t, OK, reply)

	txnB := NewTransaction()
	txnB.AddWrite("k", []byte("b"))
	reply, _ = c.Prepare(2, txnB, NewTimestamp(10, 0))
	assert.Equal(t, OK, reply, "non-linearizable write path does not consult the prepared-write fan-out")
}

// Bug-smell #2 (documented, preserved intentionally): a read-set entry
// whose validity range can no longer be found (key absent or the
// version at lo no longer matches the read timestamp) short-circuits
// to "no conflict" without consulting the prepared registry.
func TestCoordinatorAbsentVersionReadShortCircuits(t *testing.T) {
	c := newCoordinator(true)

	// Nothing has ever been written to "ghost": GetRange reports ok=false.
	txnA := NewTransaction()
	txnA.AddWrite("ghost", []byte("w"))
	reply, _ := c.Prepare(1, txnA, NewTimestamp(10, 0))
	require.Equal(t, OK, reply)

	reader := NewTransaction()
	reader.AddRead("ghost", NewTimestamp(5, 0))
	reply, _ = c.Prepare(2, reader, NewTimestamp(15, 0))
	assert.Equal(t, OK, reply, "a read of a version this replica never held is not checked against prepared state")
}

func TestCoordinatorGetReturnsLatestCommitted(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))

	v, ok := c.Get(0, "x")
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v.Value)

	_, ok = c.Get(0, "missing")
	assert.False(t, ok)
}

func TestCoordinatorPrepareAbstainsOnPreparedWriteOfLatestRead(t *testing.T) {
	c := newCoordinator(true)
	c.Load("x", []byte("a"), NewTimestamp(10, 0))

	writer := NewTransaction()
	writer.AddWrite("x", []byte("b"))
	reply, _ := c.Prepare(1, writer, NewTimestamp(30, 0))
	require.Equal(t, OK, reply)

	reader := NewTransaction()
	reader.AddRead("x", NewTimestamp(10, 0))
	reply, _ = c.Prepare(2, reader, NewTimestamp(20, 0))
	assert.Equal(t, ABSTAIN, reply)
}
