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


package core

import (
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for persisted records. Field order is the wire order;
// append new fields at the end only.
var (
	IDMUS     = idMUS{}
	QueryMUS  = queryMUS{}
	AnswerMUS = answerMUS{}
)

// ErrNegativeLength indicates a corrupt slice length prefix.
var ErrNegativeLength = errors.New("negative length")

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type queryMUS struct{}

func (queryMUS) Marshal(v Query, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Body, bs[n:])
	n += ord.String.Marshal(v.RequesterID, bs[n:])
	n += ord.String.Marshal(v.RoomName, bs[n:])
	n += ord.String.Marshal(v.JobID, bs[n:])
	n += ord.String.Marshal(string(v.Status), bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += marshalTime(v.Deadline, bs[n:])
	n += IDMUS.Marshal(v.AnswerID, bs[n:])
	n += ord.String.Marshal(v.ResolvedBy, bs[n:])
	n += marshalTime(v.LastResponseAt, bs[n:])
	return n
}

func (queryMUS) Unmarshal(bs []byte) (v Query, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Body, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RequesterID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RoomName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.JobID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status string
	status, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = Status(status)
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Deadline, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AnswerID, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ResolvedBy, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastResponseAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (queryMUS) Size(v Query) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Body)
	size += ord.String.Size(v.RequesterID)
	size += ord.String.Size(v.RoomName)
	size += ord.String.Size(v.JobID)
	size += ord.String.Size(string(v.Status))
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	size += sizeTime(v.Deadline)
	size += IDMUS.Size(v.AnswerID)
	size += ord.String.Size(v.ResolvedBy)
	size += sizeTime(v.LastResponseAt)
	return size
}

type answerMUS struct{}

func (answerMUS) Marshal(v Answer, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.QueryID, bs[n:])
	n += ord.String.Marshal(v.AuthorID, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += marshalVector(v.Embedding, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (answerMUS) Unmarshal(bs []byte) (v Answer, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.QueryID, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AuthorID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Embedding, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (answerMUS) Size(v Answer) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.QueryID)
	size += ord.String.Size(v.AuthorID)
	size += ord.String.Size(v.Text)
	size += sizeVector(v.Embedding)
	size += sizeTime(v.CreatedAt)
	return size
}

// Times are stored as an ord.Bool presence flag followed by unix microseconds,
// so the zero time round-trips as zero.
func marshalTime(t time.Time, bs []byte) (n int) {
	if t.IsZero() {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	n += varint.Int64.Marshal(t.UnixMicro(), bs[n:])
	return n
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return time.Time{}, n, err
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + varint.Int64.Size(t.UnixMicro())
}

func marshalVector(vec []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vec), bs)
	for _, f := range vec {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (vec []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, ErrNegativeLength
	}
	if length == 0 {
		return nil, n, nil
	}
	vec = make([]float32, length)
	for i := range vec {
		bits, n1, err := varint.Uint32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		vec[i] = math.Float32frombits(bits)
	}
	return vec, n, nil
}

func sizeVector(vec []float32) (size int) {
	size = varint.Int.Size(len(vec))
	for _, f := range vec {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}
