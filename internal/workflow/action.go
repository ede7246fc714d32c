package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"

	"github.com/google/uuid"
)

// MaxRejectionReasonLength bounds the reviewer's free-text reason, counted in characters.
const MaxRejectionReasonLength = 1000

// Action is a status transition an actor can request on a refueling request.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrNotAllowed     = errors.New("action not allowed")
	ErrReasonRequired = errors.New("rejection reason is required")
	ErrReasonTooLong  = fmt.Errorf("rejection reason may not be greater than %d characters", MaxRejectionReasonLength)
)

// ParseAction validates a raw action name from the boundary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject, ActionComplete:
		return Action(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// target is the status each action moves a request into.
var target = map[Action]model.RefuelingStatus{
	ActionApprove:  model.StatusApproved,
	ActionReject:   model.StatusRejected,
	ActionComplete: model.StatusCompleted,
}

// Transition is the planned effect of an action. From is the status the request must still
// hold when the change is written.
type Transition struct {
	Action          Action
	From            model.RefuelingStatus
	To              model.RefuelingStatus
	stampReview     bool
	reviewer        uuid.UUID
	reviewedAt      time.Time
	rejectionReason *string
}

// Plan checks that actor may perform action on req and returns the resulting transition.
// It does not modify req.
func Plan(req *model.RefuelingRequest, action Action, actor Actor, reason string, now time.Time) (Transition, error) {
	to, ok := target[action]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !CanPerform(actor, action, req) {
		return Transition{}, ErrNotAllowed
	}

	t := Transition{Action: action, From: req.Status, To: to}
	switch action {
	case ActionApprove:
		t.stampReview = true
		t.reviewer = actor.ID
		t.reviewedAt = now
	case ActionReject:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return Transition{}, ErrReasonRequired
		}
		if utf8.RuneCountInString(reason) > MaxRejectionReasonLength {
			return Transition{}, ErrReasonTooLong
		}
		t.stampReview = true
		t.reviewer = actor.ID
		t.reviewedAt = now
		t.rejectionReason = &reason
	case ActionComplete:
		// approver and approval time stay those of the review step
	}
	return t, nil
}

// Columns returns the column assignments that persist the transition.
func (t Transition) Columns() map[string]interface{} {
	cols := map[string]interface{}{"status": t.To}
	if t.stampReview {
		cols["approved_by"] = t.reviewer
		cols["approved_at"] = t.reviewedAt
		cols["rejection_reason"] = nil
		if t.rejectionReason != nil {
			cols["rejection_reason"] = *t.rejectionReason
		}
	}
	return cols
}

// Apply writes the transition onto req in memory.
func (t Transition) Apply(req *model.RefuelingRequest) {
	req.Status = t.To
	if t.stampReview {
		reviewer := t.reviewer
		reviewedAt := t.reviewedAt
		req.ApprovedBy = &reviewer
		req.ApprovedAt = &reviewedAt
		req.RejectionReason = t.rejectionReason
	}
}
