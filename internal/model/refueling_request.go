package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefuelingStatus is the lifecycle state of a refueling request.
type RefuelingStatus string

const (
	StatusPending   RefuelingStatus = "pending"
	StatusApproved  RefuelingStatus = "approved"
	StatusRejected  RefuelingStatus = "rejected"
	StatusCompleted RefuelingStatus = "completed"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (RefuelingStatus, error) {
	switch RefuelingStatus(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return RefuelingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown status: %q", s)
	}
}

// IsTerminal reports whether no action can move a request out of s.
func (s RefuelingStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// RefuelingRequest is a distributor's request to refuel a vehicle against a delivery order.
// Status only moves pending -> approved -> completed or pending -> rejected.
type RefuelingRequest struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DeliveryOrderNumber string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"deliveryOrderNumber"`
	VehiclePlate        string          `gorm:"type:varchar(255);not null" json:"vehiclePlate"`
	DistributorName     string          `gorm:"type:varchar(255);not null" json:"distributorName"`
	Status              RefuelingStatus `gorm:"type:varchar(20);not null;default:'pending';index;index:idx_refueling_requests_status_created_at,priority:1" json:"status"`
	CreatedBy           uuid.UUID       `gorm:"type:uuid;not null;index" json:"createdBy"`
	Creator             *User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	ApprovedBy          *uuid.UUID      `gorm:"type:uuid;index" json:"approvedBy"` // reviewer of the approve/reject step
	Approver            *User           `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedAt          *time.Time      `json:"approvedAt"`
	RejectionReason     *string         `gorm:"type:text" json:"rejectionReason"`
	CreatedAt           time.Time       `gorm:"index:idx_refueling_requests_status_created_at,priority:2" json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func (r *RefuelingRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// CanBeEdited reports whether plain field edits and deletion are still allowed.
func (r *RefuelingRequest) CanBeEdited() bool {
	return r.Status == StatusPending
}

// CanBeReviewed reports whether the request can be approved or rejected.
func (r *RefuelingRequest) CanBeReviewed() bool {
	return r.Status == StatusPending
}

// CanBeCompleted reports whether the request can be marked as completed.
func (r *RefuelingRequest) CanBeCompleted() bool {
	return r.Status == StatusApproved
}

// IsOwnedBy reports whether userID created the request.
func (r *RefuelingRequest) IsOwnedBy(userID uuid.UUID) bool {
	return r.CreatedBy == userID
}
