package service

import (
	"fmt"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
)

// ExternalKYCStatus is the coarse status shown to other services and clients.
type ExternalKYCStatus string

const (
	ExternalStatusNotStarted   ExternalKYCStatus = "NOT_STARTED"
	ExternalStatusInProgress   ExternalKYCStatus = "IN_PROGRESS"
	ExternalStatusManualReview ExternalKYCStatus = "MANUAL_REVIEW"
	ExternalStatusVerified     ExternalKYCStatus = "VERIFIED"
	ExternalStatusRejected     ExternalKYCStatus = "REJECTED"
	ExternalStatusUnknown      ExternalKYCStatus = "UNKNOWN"
)

var allowedTransitions = map[model.KYCStatus][]model.KYCStatus{
	model.KYCStatusCreated:      {model.KYCStatusSubmitted},
	model.KYCStatusSubmitted:    {model.KYCStatusManualReview, model.KYCStatusVerified, model.KYCStatusRejected},
	model.KYCStatusManualReview: {model.KYCStatusVerified, model.KYCStatusRejected},
}

// CanTransition reports whether from -> to is an edge of the session lifecycle.
func CanTransition(from, to model.KYCStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsReviewDecision reports whether status is a value a reviewer or provider may decide.
func IsReviewDecision(status model.KYCStatus) bool {
	switch status {
	case model.KYCStatusManualReview, model.KYCStatusVerified, model.KYCStatusRejected:
		return true
	default:
		return false
	}
}

// ToExternalStatus maps a raw status to its external form. Every raw status
// must have a case; ExternalStatusUnknown only signals a missing one.
func ToExternalStatus(status model.KYCStatus) ExternalKYCStatus {
	switch status {
	case model.KYCStatusCreated, model.KYCStatusSubmitted:
		return ExternalStatusInProgress
	case model.KYCStatusManualReview:
		return ExternalStatusManualReview
	case model.KYCStatusVerified:
		return ExternalStatusVerified
	case model.KYCStatusRejected:
		return ExternalStatusRejected
	default:
		return ExternalStatusUnknown
	}
}

// ExternalStatusOf maps a possibly absent session.
func ExternalStatusOf(session *model.KYCSession) ExternalKYCStatus {
	if session == nil {
		return ExternalStatusNotStarted
	}
	return ToExternalStatus(session.Status)
}

// ReplayStatus folds a session's events, in write order, into the status they
// produce. It fails when the chain is broken or uses an illegal edge.
func ReplayStatus(events []model.KYCStatusEvent) (model.KYCStatus, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("no events to replay")
	}

	var current *model.KYCStatus
	for i, event := range events {
		switch {
		case current == nil:
			if event.FromStatus != nil {
				return "", fmt.Errorf("event %d: first event must start from no status, got %s", event.ID, *event.FromStatus)
			}
			if event.ToStatus != model.KYCStatusCreated {
				return "", fmt.Errorf("event %d: first event must create the session, got %s", event.ID, event.ToStatus)
			}
		case event.FromStatus == nil || *event.FromStatus != *current:
			return "", fmt.Errorf("event %d (#%d): from status does not match replayed status %s", event.ID, i, *current)
		case !CanTransition(*current, event.ToStatus):
			return "", fmt.Errorf("event %d (#%d): illegal transition %s -> %s", event.ID, i, *current, event.ToStatus)
		}
		to := event.ToStatus
		current = &to
	}
	return *current, nil
}
