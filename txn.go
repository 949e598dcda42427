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

// Transaction carries the three sets an OCC validation pass reasons
// about: which versions were read, which keys are to be written, and
// which keys are to be incremented. It is a plain value object — all
// the decision logic lives in the Coordinator.
type Transaction struct {
	readSet      map[string]Timestamp
	writeSet     map[string][]byte
	incrementSet map[string][]Increment
}

// NewTransaction returns an empty Transaction ready for AddRead/
// AddWrite/AddIncrement calls.
func NewTransaction() *Transaction {
	return &Transaction{
		readSet:      make(map[string]Timestamp),
		writeSet:     make(map[string][]byte),
		incrementSet: make(map[string][]Increment),
	}
}

// ReadEntry is one repeated field of the external transaction message:
// a key and the timestamp of the version read.
type ReadEntry struct {
	Key      string
	ReadTime Timestamp
}

// WriteEntry is one repeated write field of the external message.
type WriteEntry struct {
	Key   string
	Value []byte
}

// IncrementEntry is one repeated increment field of the external
// message.
type IncrementEntry struct {
	Key   string
	Value []byte
	Op    OpKind
}

// TransactionMessage is the already-decoded shape of the external wire
// message described in spec §6: three repeated fields. Decoding actual
// bytes into this struct is the transport layer's job, out of scope
// here; this package only consumes the decoded result.
type TransactionMessage struct {
	ReadSet      []ReadEntry
	WriteSet     []WriteEntry
	IncrementSet []IncrementEntry
}

// NewTransactionFromMessage builds a Transaction from a decoded
// TransactionMessage. The message's three fields carry no relative
// ordering between each other (each is a separately repeated field),
// so increments are applied first and writes last: a write for a key
// that also appears in the increment set always wins, matching
// AddWrite's supersede rule regardless of field order on the wire.
func NewTransactionFromMessage(msg TransactionMessage) *Transaction {
	txn := NewTransaction()
	for _, r := range msg.ReadSet {
		txn.AddRead(r.Key, r.ReadTime)
	}
	for _, inc := range msg.IncrementSet {
		txn.AddIncrement(inc.Key, NewIncrement(inc.Value, inc.Op))
	}
	for _, w := range msg.WriteSet {
		txn.AddWrite(w.Key, w.Value)
	}
	return txn
}

// AddRead records that key was read at readTime.
func (t *Transaction) AddRead(key string, readTime Timestamp) {
	t.readSet[key] = readTime
}

// AddWrite records a pending write of key. Per spec, a write
// supersedes any increments already queued for the same key within
// this transaction — asymmetric by design, not vice versa.
func (t *Transaction) AddWrite(key string, value []byte) {
	t.writeSet[key] = value
	delete(t.incrementSet, key)
}

// AddIncrement appends inc to key's increment list, applied in order
// at commit. Does not clear any pending write for key.
func (t *Transaction) AddIncrement(key string, inc Increment) {
	t.incrementSet[key] = append(t.incrementSet[key], inc)
}

// ReadSet returns the key -> read-timestamp map.
func (t *Transaction) ReadSet() map[string]Timestamp {
	return t.readSet
}

// WriteSet returns the key -> value map.
func (t *Transaction) WriteSet() map[string][]byte {
	return t.writeSet
}

// IncrementSet returns the key -> ordered increment list map.
func (t *Transaction) IncrementSet() map[string][]Increment {
	return t.incrementSet
}
