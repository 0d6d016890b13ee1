package model

import (
	"encoding/json"
	"fmt"

	"telegram-insight-agent/internal/domain"
)

// FailureDetail is the payload of FAILED, PARTICIPANTS_EXPORT_FAILED and CANCELLED events.
// The owner fields are empty for a non-fatal participants failure.
type FailureDetail struct {
	Error     string `json:"error"`
	UserID    int64  `json:"user_id,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
	ChatTitle string `json:"chat_title,omitempty"`
}

// ResultDetail is the payload of a SUCCESS event. ParticipantsPath is empty when
// the participants export failed.
type ResultDetail struct {
	UserID           int64  `json:"user_id"`
	ChatID           int64  `json:"chat_id"`
	ChatTitle        string `json:"chat_title"`
	SummaryPath      string `json:"summary_path"`
	ParticipantsPath string `json:"participants_path,omitempty"`
	HistoryPath      string `json:"history_path"`
}

// StatusEvent is one job transition as carried on the status bus.
// Exactly one of Failure/Result may be set, depending on Status.
type StatusEvent struct {
	RequestID string
	Status    JobStatus
	Failure   *FailureDetail
	Result    *ResultDetail
}

// Validate checks that the payload matches the status tag.
func (e StatusEvent) Validate() error {
	if e.RequestID == "" {
		return fmt.Errorf("%w: empty request id", domain.ErrInvalidEvent)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidEvent, e.Status)
	}
	switch e.Status {
	case JobStatusSuccess:
		if e.Result == nil || e.Failure != nil {
			return fmt.Errorf("%w: SUCCESS requires a result detail", domain.ErrInvalidEvent)
		}
		if e.Result.SummaryPath == "" || e.Result.UserID == 0 {
			return fmt.Errorf("%w: SUCCESS detail misses summary path or owner", domain.ErrInvalidEvent)
		}
	case JobStatusFailed, JobStatusParticipantsExportFailed:
		if e.Failure == nil || e.Result != nil || e.Failure.Error == "" {
			return fmt.Errorf("%w: %s requires an error detail", domain.ErrInvalidEvent, e.Status)
		}
	case JobStatusCancelled:
		if e.Result != nil {
			return fmt.Errorf("%w: CANCELLED cannot carry a result", domain.ErrInvalidEvent)
		}
	default:
		if e.Result != nil || e.Failure != nil {
			return fmt.Errorf("%w: %s carries no detail", domain.ErrInvalidEvent, e.Status)
		}
	}
	return nil
}

// DetailJSON returns the JSON form of the payload, or nil when the event has none.
func (e StatusEvent) DetailJSON() (json.RawMessage, error) {
	switch {
	case e.Result != nil:
		return json.Marshal(e.Result)
	case e.Failure != nil:
		return json.Marshal(e.Failure)
	}
	return nil, nil
}

type wirePayload struct {
	Status JobStatus       `json:"status"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// EncodeStatusEvent validates e and renders the bus payload {status, detail?}.
func EncodeStatusEvent(e StatusEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	detail, err := e.DetailJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wirePayload{Status: e.Status, Detail: detail})
}

// DecodeStatusEvent parses a bus payload for requestID and validates it.
func DecodeStatusEvent(requestID string, data []byte) (StatusEvent, error) {
	var p wirePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return StatusEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	ev := StatusEvent{RequestID: requestID, Status: p.Status}
	hasDetail := len(p.Detail) > 0 && string(p.Detail) != "null"
	if hasDetail {
		switch p.Status {
		case JobStatusSuccess:
			var r ResultDetail
			if err := json.Unmarshal(p.Detail, &r); err != nil {
				return StatusEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
			}
			ev.Result = &r
		case JobStatusFailed, JobStatusParticipantsExportFailed, JobStatusCancelled:
			var f FailureDetail
			if err := json.Unmarshal(p.Detail, &f); err != nil {
				return StatusEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
			}
			ev.Failure = &f
		default:
			return StatusEvent{}, fmt.Errorf("%w: %s carries no detail", domain.ErrInvalidEvent, p.Status)
		}
	}
	if err := ev.Validate(); err != nil {
		return StatusEvent{}, err
	}
	return ev, nil
}
