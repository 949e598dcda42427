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

// Timestamp is a totally-ordered (time, id) pair: time is a 64-bit
// logical clock value minted by the timestamp oracle (out of scope
// here), id is the client that proposed it, used only to break ties
// between two transactions that proposed the same time.
type Timestamp struct {
	Time uint64
	ID   uint64
}

// zero value: invalid / not-set.
var InvalidTimestamp = Timestamp{}

// NewTimestamp builds a Timestamp from an explicit (time, id) pair.
func NewTimestamp(time, id uint64) Timestamp {
	return Timestamp{Time: time, ID: id}
}

// IsValid reports whether t is something other than the zero-value
// sentinel. Real timestamps are minted starting at Time >= 1; a caller
// that legitimately needs Time == 0 should use a non-zero ID.
func (t Timestamp) IsValid() bool {
	return t.Time != 0 || t.ID != 0
}

// Compare orders timestamps lexicographically on (Time, ID): -1 if t < o,
// 0 if equal, 1 if t > o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Time < o.Time:
		return -1
	case t.Time > o.Time:
		return 1
	case t.ID < o.ID:
		return -1
	case t.ID > o.ID:
		return 1
	default:
		return 0
	}
}

func (t Timestamp) Less(o Timestamp) bool    { return t.Compare(o) < 0 }
func (t Timestamp) Greater(o Timestamp) bool { return t.Compare(o) > 0 }
func (t Timestamp) Equal(o Timestamp) bool   { return t.Compare(o) == 0 }
