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


package frontdesk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/triage"
)

// DefaultTopK is the number of matches returned when a search request
// leaves top_k unset.
const DefaultTopK = 3

// CreateQueryRequest submits a new query.
type CreateQueryRequest struct {
	Query    string `json:"query"`
	UserID   string `json:"user_id"`
	JobID    string `json:"job_id"`
	RoomName string `json:"room_name"`
}

// CreateQueryResponse is the admitted query and the closest past answer, if any.
type CreateQueryResponse struct {
	Query      QueryView           `json:"query"`
	Suggestion *VectorSearchResult `json:"suggestion,omitempty"`
}

// CreateAnswerRequest answers an existing query.
type CreateAnswerRequest struct {
	QueryID    string `json:"query_id"`
	AnswerText string `json:"answer_text"`
	ResolvedBy string `json:"resolved_by"`
}

// VectorSearchRequest searches past answers by embedding.
type VectorSearchRequest struct {
	QueryVector []float32 `json:"query_vector"`

	// TopK caps the number of results. Zero selects DefaultTopK and a
	// negative value is rejected with core.ErrInvalidArgument.
	TopK int `json:"top_k"`
}

// TextSearchRequest searches past answers by text.
type TextSearchRequest struct {
	Query string `json:"query"`

	// TopK caps the number of results. Zero selects DefaultTopK and a
	// negative value is rejected with core.ErrInvalidArgument.
	TopK int `json:"top_k"`
}

// QueryView is the wire shape of a query. Optional fields are null until
// the query is resolved.
type QueryView struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	UserID         string     `json:"user_id"`
	JobID          string     `json:"job_id"`
	RoomName       string     `json:"room_name"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Deadline       time.Time  `json:"deadline"`
	AnswerID       *string    `json:"answer_id"`
	ResolvedBy     *string    `json:"resolved_by"`
	LastResponseAt *time.Time `json:"last_response_at"`
}

// AnswerView is the wire shape of an answer.
type AnswerView struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	AnswerText string    `json:"answer_text"`
	ResolvedBy string    `json:"resolved_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// VectorSearchResult is one similarity hit.
type VectorSearchResult struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	AnswerText string    `json:"answer_text"`
	Score      float32   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowUpView pairs a resolved query with the answer still to be relayed.
type FollowUpView struct {
	Query  QueryView  `json:"query"`
	Answer AnswerView `json:"answer"`
}

// Service exposes the engine's inbound operations with wire-compatible
// request and response types.
type Service struct {
	engine *triage.Engine
}

// NewService creates a Service over engine.
func NewService(engine *triage.Engine) (*Service, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	return &Service{engine: engine}, nil
}

// SubmitQuery admits a query and returns the best suggestion, if any.
func (s *Service) SubmitQuery(ctx context.Context, req CreateQueryRequest) (*CreateQueryResponse, error) {
	query, match, err := s.engine.SubmitQuery(ctx, req.Query, req.UserID, core.QueryContext{
		RoomName: req.RoomName,
		JobID:    req.JobID,
	})
	if err != nil {
		return nil, err
	}

	resp := &CreateQueryResponse{Query: NewQueryView(query)}
	if match != nil {
		r := newVectorSearchResult(*match)
		resp.Suggestion = &r
	}
	return resp, nil
}

// SubmitAnswer stores an operator answer and resolves its query.
func (s *Service) SubmitAnswer(ctx context.Context, req CreateAnswerRequest) (*AnswerView, error) {
	queryID, err := ParseID(req.QueryID)
	if err != nil {
		return nil, err
	}
	answer, err := s.engine.SubmitAnswer(ctx, queryID, req.ResolvedBy, req.AnswerText)
	if err != nil {
		return nil, err
	}
	view := NewAnswerView(answer)
	return &view, nil
}

// GetQuery returns a query by ID.
func (s *Service) GetQuery(ctx context.Context, id string) (*QueryView, error) {
	queryID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	query, err := s.engine.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}
	view := NewQueryView(query)
	return &view, nil
}

// ListQueries returns queries newest first. An empty status lists all.
func (s *Service) ListQueries(ctx context.Context, status string) ([]QueryView, error) {
	queries, err := s.engine.ListQueries(ctx, core.Status(status))
	if err != nil {
		return nil, err
	}
	views := make([]QueryView, 0, len(queries))
	for _, q := range queries {
		views = append(views, NewQueryView(q))
	}
	return views, nil
}

// GetAnswer returns an answer by ID.
func (s *Service) GetAnswer(ctx context.Context, id string) (*AnswerView, error) {
	answerID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	answer, err := s.engine.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	view := NewAnswerView(answer)
	return &view, nil
}

// SemanticSearch returns the past answers nearest to the request vector.
func (s *Service) SemanticSearch(ctx context.Context, req VectorSearchRequest) ([]VectorSearchResult, error) {
	topK, err := resolveTopK(req.TopK)
	if err != nil {
		return nil, err
	}
	matches, err := s.engine.SemanticSearch(ctx, req.QueryVector, topK)
	if err != nil {
		return nil, err
	}
	return newVectorSearchResults(matches), nil
}

// SearchText embeds the request text and returns the nearest past answers.
func (s *Service) SearchText(ctx context.Context, req TextSearchRequest) ([]VectorSearchResult, error) {
	topK, err := resolveTopK(req.TopK)
	if err != nil {
		return nil, err
	}
	matches, err := s.engine.SearchText(ctx, req.Query, topK)
	if err != nil {
		return nil, err
	}
	return newVectorSearchResults(matches), nil
}

// PendingFollowUps lists resolved queries in room whose answers have not
// been relayed. An empty room lists every room.
func (s *Service) PendingFollowUps(ctx context.Context, room string) ([]FollowUpView, error) {
	followUps, err := s.engine.PendingFollowUps(ctx, room)
	if err != nil {
		return nil, err
	}
	views := make([]FollowUpView, 0, len(followUps))
	for _, f := range followUps {
		views = append(views, FollowUpView{
			Query:  NewQueryView(f.Query),
			Answer: NewAnswerView(f.Answer),
		})
	}
	return views, nil
}

// MarkDelivered records that an answer was relayed to its requester.
func (s *Service) MarkDelivered(ctx context.Context, answerID string) error {
	id, err := ParseID(answerID)
	if err != nil {
		return err
	}
	return s.engine.MarkDelivered(ctx, id)
}

// ParseID parses a decimal record ID. Zero is never a valid ID.
func ParseID(s string) (core.ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", core.ErrInvalidArgument, s)
	}
	return core.ID(v), nil
}

// FormatID renders id the way it appears on the wire.
func FormatID(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// NewQueryView converts a query to its wire shape.
func NewQueryView(q *core.Query) QueryView {
	view := QueryView{
		ID:        FormatID(q.Id),
		Query:     q.Body,
		UserID:    q.RequesterID,
		JobID:     q.JobID,
		RoomName:  q.RoomName,
		Status:    string(q.Status),
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
		Deadline:  q.Deadline,
	}
	if q.AnswerID != 0 {
		answerID := FormatID(q.AnswerID)
		view.AnswerID = &answerID
	}
	if q.ResolvedBy != "" {
		resolvedBy := q.ResolvedBy
		view.ResolvedBy = &resolvedBy
	}
	if !q.LastResponseAt.IsZero() {
		last := q.LastResponseAt
		view.LastResponseAt = &last
	}
	return view
}

// NewAnswerView converts an answer to its wire shape.
func NewAnswerView(a *core.Answer) AnswerView {
	return AnswerView{
		ID:         FormatID(a.Id),
		QueryID:    FormatID(a.QueryID),
		AnswerText: a.Text,
		ResolvedBy: a.AuthorID,
		CreatedAt:  a.CreatedAt,
	}
}

func newVectorSearchResult(m core.MatchResult) VectorSearchResult {
	return VectorSearchResult{
		ID:         FormatID(m.AnswerID),
		QueryID:    FormatID(m.QueryID),
		AnswerText: m.Text,
		Score:      m.Score,
		CreatedAt:  m.CreatedAt,
	}
}

func newVectorSearchResults(matches []core.MatchResult) []VectorSearchResult {
	results := make([]VectorSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, newVectorSearchResult(m))
	}
	return results
}

func resolveTopK(topK int) (int, error) {
	switch {
	case topK == 0:
		return DefaultTopK, nil
	case topK < 0:
		return 0, fmt.Errorf("%w: top_k must not be negative, got %d", core.ErrInvalidArgument, topK)
	}
	return topK, nil
}
