package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"telegram-insight-agent/internal/domain"
)

type JobStatus string

const (
	JobStatusEnqueued                 JobStatus = "ENQUEUED"
	JobStatusStarted                  JobStatus = "STARTED"
	JobStatusExportingHistory         JobStatus = "EXPORTING_HISTORY"
	JobStatusExportingParticipants    JobStatus = "EXPORTING_PARTICIPANTS"
	JobStatusParticipantsExportFailed JobStatus = "PARTICIPANTS_EXPORT_FAILED"
	JobStatusCallingLLM               JobStatus = "CALLING_LLM"
	JobStatusSuccess                  JobStatus = "SUCCESS"
	JobStatusFailed                   JobStatus = "FAILED"
	JobStatusCancelled                JobStatus = "CANCELLED"
)

// phaseRank orders the non-terminal phases; a job only ever moves forward.
var phaseRank = map[JobStatus]int{
	JobStatusEnqueued:                 0,
	JobStatusStarted:                  1,
	JobStatusExportingHistory:         2,
	JobStatusExportingParticipants:    3,
	JobStatusParticipantsExportFailed: 4,
	JobStatusCallingLLM:               5,
}

// TerminalStatuses lists the statuses a job can never leave.
var TerminalStatuses = []JobStatus{JobStatusSuccess, JobStatusFailed, JobStatusCancelled}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusCancelled
}

func (s JobStatus) IsValid() bool {
	_, ok := phaseRank[s]
	return ok || s.IsTerminal()
}

// IsProgress reports whether the status only updates the in-progress indicator.
func (s JobStatus) IsProgress() bool {
	switch s {
	case JobStatusExportingHistory, JobStatusExportingParticipants, JobStatusCallingLLM:
		return true
	}
	return false
}

// CanTransition reports whether a job in status from may move to status to.
// FAILED and CANCELLED are reachable from every non-terminal status, SUCCESS only after CALLING_LLM.
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() || !from.IsValid() || !to.IsValid() {
		return false
	}
	switch to {
	case JobStatusFailed, JobStatusCancelled:
		return true
	case JobStatusSuccess:
		return from == JobStatusCallingLLM
	}
	return phaseRank[to] > phaseRank[from]
}

// Job is one execution of the export -> clean -> summarize pipeline.
// Chat id and title are copied from the subscription so history survives its removal.
type Job struct {
	RequestID      string
	SubscriptionID *int64
	UserID         int64
	ChatID         int64
	ChatTitle      string
	Status         JobStatus
	Detail         json.RawMessage
	IsManual       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewJob builds an ENQUEUED job for sub. An empty requestID gets a fresh uuid.
func NewJob(requestID string, sub *Subscription, manual bool) (*Job, error) {
	if sub == nil {
		return nil, domain.ErrInvalidArgument
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	subID := sub.ID
	now := time.Now()
	return &Job{
		RequestID:      requestID,
		SubscriptionID: &subID,
		UserID:         sub.UserID,
		ChatID:         sub.ChatID,
		ChatTitle:      sub.ChatTitle,
		Status:         JobStatusEnqueued,
		IsManual:       manual,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Advance moves the in-memory job to status, enforcing the state machine.
func (j *Job) Advance(status JobStatus, detail json.RawMessage) error {
	if j.Status.IsTerminal() {
		return domain.ErrJobFinished
	}
	if !CanTransition(j.Status, status) {
		return domain.ErrInvalidTransition
	}
	j.Status = status
	j.Detail = detail
	j.UpdatedAt = time.Now()
	return nil
}
