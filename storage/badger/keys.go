// Copyright 2025 Poiesic Systems
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


package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/frontdesk/core"
)

// Key prefixes for different data types
const (
	queryRecordPrefix     = "qryrec"
	queryDatePrefix       = "qryrecd"
	queryIDSeq            = "qryrecseq"
	answerRecordPrefix    = "ansrec"
	answerDatePrefix      = "ansrecd"
	answerDeliveredPrefix = "ansdlv"
	answerIDSeq           = "ansrecseq"
)

// makeQueryKey generates a key for a query record by ID.
func makeQueryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", queryRecordPrefix, id))
}

// makeQueryDateKey generates a composite key for the query creation index.
// Format: prefix:timestamp:id
func makeQueryDateKey(timestamp time.Time, id core.ID) []byte {
	return makeDateKey(queryDatePrefix, timestamp, id)
}

// makeAnswerKey generates a key for an answer record by ID.
func makeAnswerKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", answerRecordPrefix, id))
}

// makeAnswerDateKey generates a composite key for the answer creation index.
// Format: prefix:timestamp:id
func makeAnswerDateKey(timestamp time.Time, id core.ID) []byte {
	return makeDateKey(answerDatePrefix, timestamp, id)
}

// makeAnswerDeliveredKey generates the delivery marker key for an answer.
func makeAnswerDeliveredKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", answerDeliveredPrefix, id))
}

func makeDateKey(prefix string, timestamp time.Time, id core.ID) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+16) // 8 bytes for timestamp + 8 bytes for ID
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeIndexPrefix returns the iteration prefix for a date index.
func makeIndexPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}
