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

package utils

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWriterWritesUntilFirstError(t *testing.T) {
	var buf bytes.Buffer
	w := NewErrorWriter(&buf)

	w.Write(binary.LittleEndian, uint64(1))
	w.Write(binary.LittleEndian, uint32(2))
	require.NoError(t, w.Error())
	assert.Equal(t, 12, buf.Len())
}

func TestErrorWriterStopsAfterError(t *testing.T) {
	var buf bytes.Buffer
	w := NewErrorWriter(&buf)

	// An unsupported type makes binary.Write fail; later calls are
	// no-ops once the sticky error is set.
	w.Write(binary.LittleEndian, "not fixed-size")
	require.Error(t, w.Error())

	lenBeforeSecondWrite := buf.Len()
	w.Write(binary.LittleEndian, uint64(99))
	assert.Equal(t, lenBeforeSecondWrite, buf.Len())
}

func TestErrorReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewErrorWriter(&buf)
	w.Write(binary.LittleEndian, uint64(42))
	w.Write(binary.LittleEndian, uint8(7))
	require.NoError(t, w.Error())

	r := NewErrorReader(bytes.NewReader(buf.Bytes()))
	var a uint64
	var b uint8
	r.Read(binary.LittleEndian, &a)
	r.Read(binary.LittleEndian, &b)
	require.NoError(t, r.Error())
	assert.Equal(t, uint64(42), a)
	assert.Equal(t, uint8(7), b)
}

func TestErrorReaderStopsAfterError(t *testing.T) {
	r := NewErrorReader(bytes.NewReader(nil))
	var v uint64
	r.Read(binary.LittleEndian, &v)
	require.Error(t, r.Error())

	r.Read(binary.LittleEndian, &v)
	assert.Error(t, r.Error())
}
