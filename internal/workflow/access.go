package workflow

import (
	"fmt"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated user a service call is performed for.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// CanCreate reports whether actor may submit new requests.
func CanCreate(actor Actor) bool {
	return actor.Role.IsDistributor()
}

// CanEdit reports whether actor may change the plain fields of req or delete it.
// Only the distributor who created the request may, and only while it is pending.
func CanEdit(actor Actor, req *model.RefuelingRequest) bool {
	return actor.Role.IsDistributor() && req.IsOwnedBy(actor.ID) && req.CanBeEdited()
}

func CanDelete(actor Actor, req *model.RefuelingRequest) bool {
	return CanEdit(actor, req)
}

// CanPerform reports whether actor may apply action to req in its current state.
func CanPerform(actor Actor, action Action, req *model.RefuelingRequest) bool {
	switch action {
	case ActionApprove, ActionReject:
		return actor.Role.IsSales() && req.CanBeReviewed()
	case ActionComplete:
		return actor.Role.IsShift() && req.CanBeCompleted()
	default:
		return false
	}
}

// Scope restricts which requests an actor sees. A nil CreatedBy means any creator; an
// empty Statuses means any status.
type Scope struct {
	CreatedBy *uuid.UUID
	Statuses  []model.RefuelingStatus
}

// ListScope returns the visibility rule for actor's role.
func ListScope(actor Actor) (Scope, error) {
	switch actor.Role {
	case model.RoleDistributor:
		id := actor.ID
		return Scope{CreatedBy: &id}, nil
	case model.RoleSales:
		return Scope{Statuses: []model.RefuelingStatus{model.StatusPending, model.StatusApproved, model.StatusRejected}}, nil
	case model.RoleShift:
		return Scope{Statuses: []model.RefuelingStatus{model.StatusApproved, model.StatusCompleted}}, nil
	default:
		return Scope{}, fmt.Errorf("no list scope for role %q", actor.Role)
	}
}

// Contains reports whether req falls inside the scope.
func (s Scope) Contains(req *model.RefuelingRequest) bool {
	if s.CreatedBy != nil && req.CreatedBy != *s.CreatedBy {
		return false
	}
	if len(s.Statuses) == 0 {
		return true
	}
	for _, status := range s.Statuses {
		if req.Status == status {
			return true
		}
	}
	return false
}

// CanView reports whether actor may open the detail view of req.
func CanView(actor Actor, req *model.RefuelingRequest) bool {
	scope, err := ListScope(actor)
	if err != nil {
		return false
	}
	return scope.Contains(req)
}
