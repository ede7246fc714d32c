package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/testutil"
)

func TestParse_DefaultFixture(t *testing.T) {
	f, err := Parse(DefaultFixture)
	if err != nil {
		t.Fatalf("default fixture: %v", err)
	}
	if len(f.Users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(f.Users))
	}

	counts := map[string]int{}
	for _, r := range f.Requests {
		counts[r.Status]++
	}
	want := map[string]int{"pending": 3, "approved": 2, "rejected": 1, "completed": 1}
	for status, n := range want {
		if counts[status] != n {
			t.Fatalf("%s: got %d, want %d", status, counts[status], n)
		}
	}
}

func TestParse_RejectsInconsistentFixtures(t *testing.T) {
	users := `
password: pw
users:
  - {key: d, name: D, email: d@example.com, role: distributor}
  - {key: s, name: S, email: s@example.com, role: sales}
`
	cases := map[string]string{
		"unknown role":        "password: pw\nusers:\n  - {key: a, name: A, email: a@example.com, role: admin}\n",
		"unknown status":      users + "requests:\n  - {deliveryOrderNumber: X, vehiclePlate: P, distributorName: N, status: cancelled, createdBy: d}\n",
		"sales as creator":    users + "requests:\n  - {deliveryOrderNumber: X, vehiclePlate: P, distributorName: N, status: pending, createdBy: s}\n",
		"approved no review":  users + "requests:\n  - {deliveryOrderNumber: X, vehiclePlate: P, distributorName: N, status: approved, createdBy: d}\n",
		"rejected no reason":  users + "requests:\n  - {deliveryOrderNumber: X, vehiclePlate: P, distributorName: N, status: rejected, createdBy: d, approvedBy: s}\n",
		"approved and reason": users + "requests:\n  - {deliveryOrderNumber: X, vehiclePlate: P, distributorName: N, status: approved, createdBy: d, approvedBy: s, rejectionReason: r}\n",
		"not yaml":            "users: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestSeeder_ApplyIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	log, _ := testutil.NullLogger()
	seeder := NewSeeder(
		repository.NewUserRepository(db),
		repository.NewRefuelingRepository(db),
		repository.NewTransactionManager(db),
		log,
	)
	f, err := Parse(DefaultFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	res, err := seeder.Apply(context.Background(), f)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.UsersCreated != 3 || res.RequestsCreated != 7 {
		t.Fatalf("first run: %+v", res)
	}

	res, err = seeder.Apply(context.Background(), f)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if res.UsersCreated != 0 || res.RequestsCreated != 0 || res.UsersSkipped != 3 || res.RequestsSkipped != 7 {
		t.Fatalf("second run: %+v", res)
	}

	var rejected model.RefuelingRequest
	if err := db.Preload("Approver").First(&rejected, "status = ?", model.StatusRejected).Error; err != nil {
		t.Fatalf("load rejected: %v", err)
	}
	if rejected.RejectionReason == nil || !strings.HasPrefix(*rejected.RejectionReason, "Vehicle registration") {
		t.Fatalf("rejection reason: %v", rejected.RejectionReason)
	}
	if rejected.Approver == nil || rejected.Approver.Role != model.RoleSales {
		t.Fatalf("rejected request must carry the sales reviewer: %+v", rejected.Approver)
	}

	var pendingReviewed int64
	db.Model(&model.RefuelingRequest{}).Where("status = ? AND approved_by IS NOT NULL", model.StatusPending).Count(&pendingReviewed)
	if pendingReviewed != 0 {
		t.Fatalf("pending requests must not carry a reviewer, got %d", pendingReviewed)
	}
}
