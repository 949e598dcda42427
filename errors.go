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
	"errors"

	"github.com/arcflow-db/occstore/pkg/logger"
)

// ErrUnknownTxn is returned by Commit when called with an id that
// isn't currently in the prepared registry.
var ErrUnknownTxn = errors.New("occstore: transaction id is not prepared")

// assertf denotes a programming error in the caller, not an expected
// runtime condition: violating it aborts the process rather than
// returning an error.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		logger.GetLogger().Panicf(format, args...)
	}
}
