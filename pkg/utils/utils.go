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
	"crypto/sha1"
	"encoding/binary"
	"io"
	"time"

	"github.com/klauspost/compress/s2"

	"github.com/arcflow-db/occstore/pkg/logger"
)

// Elapsed logs msg at info level with the time elapsed since now.
// Nothing else in this module calls it.
func Elapsed(now time.Time, logger logger.Logger, msg string) {
	logger.Infof("%s elapsed: %s", msg, time.Since(now))
}

// Compress streams src through an s2 encoder into dst.
func Compress(src io.Reader, dst io.Writer) error {
	enc := s2.NewWriter(dst)
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Decompress streams an s2-encoded src into dst.
func Decompress(src io.Reader, dst io.Writer) error {
	dec := s2.NewReader(src)
	_, err := io.Copy(dst, dec)
	return err
}

// Magic returns a stable 64-bit checksum of input, used to tag
// snapshot bodies so a mismatched import fails fast instead of
// silently loading garbage.
func Magic(input string) uint64 {
	hash := sha1.Sum([]byte(input))
	return binary.BigEndian.Uint64(hash[:8])
}
