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
)

func TestInvalidTimestampIsZeroValue(t *testing.T) {
	assert.False(t, InvalidTimestamp.IsValid())
	assert.False(t, Timestamp{}.IsValid())
	assert.True(t, NewTimestamp(0, 1).IsValid())
	assert.True(t, NewTimestamp(1, 0).IsValid())
}

func TestTimestampOrderingByTime(t *testing.T) {
	a := NewTimestamp(10, 5)
	b := NewTimestamp(20, 0)
	assert.True(t, a.Less(b))
	assert.True(t, b.Greater(a))
	assert.False(t, a.Equal(b))
}

func TestTimestampTiebreakByID(t *testing.T) {
	a := NewTimestamp(10, 1)
	b := NewTimestamp(10, 2)
	assert.True(t, a.Less(b))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
}

func TestTimestampEqual(t *testing.T) {
	a := NewTimestamp(10, 5)
	b := NewTimestamp(10, 5)
	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
}
