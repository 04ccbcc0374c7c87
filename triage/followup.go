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


package triage

import (
	"context"
	"slices"

	"github.com/poiesic/frontdesk/core"
)

// FollowUp is a resolved query whose answer has not been relayed to the
// requester yet.
type FollowUp struct {
	Query  *core.Query
	Answer *core.Answer
}

// PendingFollowUps lists undelivered answers for resolved queries raised in
// room, oldest resolution first. An empty room matches every room.
func (e *Engine) PendingFollowUps(ctx context.Context, room string) ([]FollowUp, error) {
	resolved, err := e.ledger.ListQueries(ctx, core.StatusResolved)
	if err != nil {
		return nil, err
	}

	var result []FollowUp
	for _, q := range resolved {
		if room != "" && q.RoomName != room {
			continue
		}
		delivered, err := e.answers.IsDelivered(ctx, q.AnswerID)
		if err != nil {
			return nil, err
		}
		if delivered {
			continue
		}
		answer, err := e.answers.GetAnswer(ctx, q.AnswerID)
		if err != nil {
			return nil, err
		}
		result = append(result, FollowUp{Query: q, Answer: answer})
	}

	slices.SortStableFunc(result, func(a, b FollowUp) int {
		return a.Query.LastResponseAt.Compare(b.Query.LastResponseAt)
	})
	return result, nil
}

// MarkDelivered records that the answer was relayed to its requester.
func (e *Engine) MarkDelivered(ctx context.Context, answerID core.ID) error {
	return e.answers.MarkDelivered(ctx, answerID)
}
