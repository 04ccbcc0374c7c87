package core

import (
	"errors"
	"testing"
)

func TestValidateSubmission(t *testing.T) {
	valid := QueryContext{RoomName: "room-1", JobID: "job-1"}

	tests := []struct {
		name      string
		body      string
		requester string
		qc        QueryContext
		wantErr   error
	}{
		{
			name:      "valid submission",
			body:      "reset my password",
			requester: "user-1",
			qc:        valid,
			wantErr:   nil,
		},
		{
			name:      "blank body",
			body:      "   ",
			requester: "user-1",
			qc:        valid,
			wantErr:   ErrEmptyBody,
		},
		{
			name:      "missing requester",
			body:      "reset my password",
			requester: "",
			qc:        valid,
			wantErr:   ErrEmptyRequester,
		},
		{
			name:      "missing room",
			body:      "reset my password",
			requester: "user-1",
			qc:        QueryContext{JobID: "job-1"},
			wantErr:   ErrEmptyRoomName,
		},
		{
			name:      "missing job",
			body:      "reset my password",
			requester: "user-1",
			qc:        QueryContext{RoomName: "room-1"},
			wantErr:   ErrEmptyJobID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmission(tt.body, tt.requester, tt.qc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSubmission() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSubmission() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ValidateSubmission() error should wrap ErrInvalidArgument")
			}
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("ValidateSubmission() error should wrap ErrInvalidQuery")
			}
		})
	}
}

func TestValidateAnswerInput(t *testing.T) {
	tests := []struct {
		name    string
		author  string
		text    string
		wantErr error
	}{
		{"valid", "operator-1", "Go to settings > security > reset", nil},
		{"empty text", "operator-1", "", ErrEmptyText},
		{"empty author", "", "some text", ErrEmptyAuthor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswerInput(tt.author, tt.text)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateAnswerInput() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ValidateAnswerInput() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatusFilter(t *testing.T) {
	if err := ValidateStatusFilter(""); err != nil {
		t.Errorf("empty filter should be valid, got %v", err)
	}
	if err := ValidateStatusFilter(StatusUnresolved); err != nil {
		t.Errorf("known status should be valid, got %v", err)
	}
	err := ValidateStatusFilter("archived")
	if !errors.Is(err, ErrInvalidStatus) || !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown status error = %v", err)
	}
}

func TestCheckInvariant(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"pending without answer", Query{Status: StatusPending}, false},
		{"unresolved without answer", Query{Status: StatusUnresolved}, false},
		{"resolved with answer", Query{Status: StatusResolved, AnswerID: 3}, false},
		{"resolved without answer", Query{Status: StatusResolved}, true},
		{"pending with answer", Query{Status: StatusPending, AnswerID: 3}, true},
		{"unresolved with answer", Query{Status: StatusUnresolved, AnswerID: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInvariant(&tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckInvariant() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDimension(t *testing.T) {
	if err := ValidateDimension([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("matching dimension should pass, got %v", err)
	}
	err := ValidateDimension([]float32{1, 2}, 3)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ValidateDimension() error = %v, want ErrDimensionMismatch", err)
	}
}
