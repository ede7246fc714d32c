package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"

	"github.com/google/uuid"
)

var (
	distributor = Actor{ID: uuid.New(), Role: model.RoleDistributor}
	sales       = Actor{ID: uuid.New(), Role: model.RoleSales}
	shift       = Actor{ID: uuid.New(), Role: model.RoleShift}
)

func newPending() *model.RefuelingRequest {
	return &model.RefuelingRequest{
		ID:                  uuid.New(),
		DeliveryOrderNumber: "DO-2024-001",
		VehiclePlate:        "B1234ABC",
		DistributorName:     "PT Test",
		Status:              model.StatusPending,
		CreatedBy:           distributor.ID,
	}
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"approve", "reject", "complete"} {
		a, err := ParseAction(raw)
		if err != nil || string(a) != raw {
			t.Fatalf("ParseAction(%q) = %q, %v", raw, a, err)
		}
	}
	for _, raw := range []string{"", "APPROVE", "cancel"} {
		if _, err := ParseAction(raw); !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("ParseAction(%q): expected ErrUnknownAction, got %v", raw, err)
		}
	}
}

func TestPlan_ApproveStampsReviewer(t *testing.T) {
	req := newPending()
	prior := "stale reason"
	req.RejectionReason = &prior
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	tr, err := Plan(req, ActionApprove, sales, "", now)
	if err != nil {
		t.Fatalf("plan approve: %v", err)
	}
	if req.Status != model.StatusPending {
		t.Fatalf("Plan must not mutate the request, status=%s", req.Status)
	}
	if tr.From != model.StatusPending || tr.To != model.StatusApproved {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}

	cols := tr.Columns()
	if cols["status"] != model.StatusApproved || cols["approved_by"] != sales.ID || cols["approved_at"] != now {
		t.Fatalf("unexpected columns: %+v", cols)
	}
	if v, ok := cols["rejection_reason"]; !ok || v != nil {
		t.Fatalf("approve must clear rejection_reason, got %v (present=%v)", v, ok)
	}

	tr.Apply(req)
	if req.ApprovedBy == nil || *req.ApprovedBy != sales.ID || req.ApprovedAt == nil || !req.ApprovedAt.Equal(now) {
		t.Fatalf("approver not stamped: %+v", req)
	}
	if req.RejectionReason != nil {
		t.Fatalf("rejection reason not cleared: %q", *req.RejectionReason)
	}
}

func TestPlan_RejectValidatesReason(t *testing.T) {
	req := newPending()
	now := time.Now()

	if _, err := Plan(req, ActionReject, sales, "", now); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if _, err := Plan(req, ActionReject, sales, "   ", now); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired for blank reason, got %v", err)
	}
	if _, err := Plan(req, ActionReject, sales, strings.Repeat("x", MaxRejectionReasonLength+1), now); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("expected ErrReasonTooLong, got %v", err)
	}
	// the limit counts characters, not bytes
	if _, err := Plan(req, ActionReject, sales, strings.Repeat("é", MaxRejectionReasonLength), now); err != nil {
		t.Fatalf("1000 multibyte characters should be accepted: %v", err)
	}

	tr, err := Plan(req, ActionReject, sales, "  Invalid vehicle registration number ", now)
	if err != nil {
		t.Fatalf("plan reject: %v", err)
	}
	tr.Apply(req)
	if req.Status != model.StatusRejected || req.RejectionReason == nil || *req.RejectionReason != "Invalid vehicle registration number" {
		t.Fatalf("unexpected rejected request: %+v", req)
	}
	if req.ApprovedBy == nil || *req.ApprovedBy != sales.ID {
		t.Fatalf("reject must stamp the reviewer")
	}
}

func TestPlan_RejectChecksRoleBeforeReason(t *testing.T) {
	if _, err := Plan(newPending(), ActionReject, shift, "", time.Now()); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed before reason validation, got %v", err)
	}
}

func TestPlan_CompleteKeepsApprover(t *testing.T) {
	req := newPending()
	approvedAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	req.Status = model.StatusApproved
	req.ApprovedBy = &sales.ID
	req.ApprovedAt = &approvedAt

	tr, err := Plan(req, ActionComplete, shift, "", approvedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("plan complete: %v", err)
	}
	cols := tr.Columns()
	if len(cols) != 1 || cols["status"] != model.StatusCompleted {
		t.Fatalf("complete should only write status, got %+v", cols)
	}
	tr.Apply(req)
	if req.Status != model.StatusCompleted || *req.ApprovedBy != sales.ID || !req.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("unexpected completed request: %+v", req)
	}
}

func TestPlan_PermissionMatrix(t *testing.T) {
	statuses := []model.RefuelingStatus{model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusCompleted}
	actors := []Actor{distributor, sales, shift}
	actions := []Action{ActionApprove, ActionReject, ActionComplete}

	allowed := map[string]bool{
		"sales/approve/pending":   true,
		"sales/reject/pending":    true,
		"shift/complete/approved": true,
	}

	for _, status := range statuses {
		for _, actor := range actors {
			for _, action := range actions {
				req := newPending()
				req.Status = status
				key := string(actor.Role) + "/" + string(action) + "/" + string(status)

				_, err := Plan(req, action, actor, "reason", time.Now())
				if allowed[key] && err != nil {
					t.Errorf("%s: expected allowed, got %v", key, err)
				}
				if !allowed[key] && !errors.Is(err, ErrNotAllowed) {
					t.Errorf("%s: expected ErrNotAllowed, got %v", key, err)
				}
			}
		}
	}
}

// TestTransitionsPreserveInvariants walks every action sequence up to length four and checks
// the reviewer and rejection-reason invariants plus terminal-state monotonicity after each step.
func TestTransitionsPreserveInvariants(t *testing.T) {
	type step struct {
		actor  Actor
		action Action
	}
	var steps []step
	for _, a := range []Actor{distributor, sales, shift} {
		for _, act := range []Action{ActionApprove, ActionReject, ActionComplete} {
			steps = append(steps, step{a, act})
		}
	}

	var walk func(req *model.RefuelingRequest, depth int)
	walk = func(req *model.RefuelingRequest, depth int) {
		if depth == 0 {
			return
		}
		for _, s := range steps {
			next := *req
			tr, err := Plan(&next, s.action, s.actor, "bad plate", time.Now())
			if err != nil {
				continue
			}
			if req.Status.IsTerminal() {
				t.Fatalf("%s left terminal state %s", s.action, req.Status)
			}
			tr.Apply(&next)

			if (next.RejectionReason != nil) != (next.Status == model.StatusRejected) {
				t.Fatalf("rejection reason invariant broken: status=%s reason=%v", next.Status, next.RejectionReason)
			}
			reviewed := next.Status != model.StatusPending
			if reviewed != (next.ApprovedBy != nil && next.ApprovedAt != nil) {
				t.Fatalf("reviewer invariant broken: status=%s approvedBy=%v approvedAt=%v", next.Status, next.ApprovedBy, next.ApprovedAt)
			}
			walk(&next, depth-1)
		}
	}
	walk(newPending(), 4)
}

func TestCanEdit(t *testing.T) {
	req := newPending()
	other := Actor{ID: uuid.New(), Role: model.RoleDistributor}

	if !CanEdit(distributor, req) || !CanDelete(distributor, req) {
		t.Fatalf("creator should be able to edit and delete a pending request")
	}
	if CanEdit(other, req) {
		t.Fatalf("another distributor must not edit the request")
	}
	if CanEdit(Actor{ID: distributor.ID, Role: model.RoleSales}, req) {
		t.Fatalf("non-distributor role must not edit even with matching id")
	}
	req.Status = model.StatusApproved
	if CanEdit(distributor, req) {
		t.Fatalf("approved request must not be editable")
	}
}

func TestListScope(t *testing.T) {
	fixtures := map[model.RefuelingStatus]*model.RefuelingRequest{}
	for _, status := range []model.RefuelingStatus{model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusCompleted} {
		req := newPending()
		req.Status = status
		fixtures[status] = req
	}
	foreign := newPending()
	foreign.CreatedBy = uuid.New()

	count := func(actor Actor) int {
		n := 0
		for _, req := range fixtures {
			if CanView(actor, req) {
				n++
			}
		}
		return n
	}

	if got := count(sales); got != 3 {
		t.Fatalf("sales sees %d requests, want 3", got)
	}
	if CanView(sales, fixtures[model.StatusCompleted]) {
		t.Fatalf("sales must not see completed requests")
	}
	if got := count(shift); got != 2 {
		t.Fatalf("shift sees %d requests, want 2", got)
	}
	if got := count(distributor); got != 4 {
		t.Fatalf("distributor sees %d of its own requests, want 4", got)
	}
	if CanView(distributor, foreign) {
		t.Fatalf("distributor must not see another distributor's request")
	}
	if _, err := ListScope(Actor{ID: uuid.New(), Role: model.Role("admin")}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
