// Package seed loads demo users and refueling requests from a YAML fixture.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures.yaml
var DefaultFixture []byte

type Fixture struct {
	Password string           `yaml:"password"`
	Users    []UserFixture    `yaml:"users"`
	Requests []RequestFixture `yaml:"requests"`
}

type UserFixture struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

type RequestFixture struct {
	DeliveryOrderNumber string `yaml:"deliveryOrderNumber"`
	VehiclePlate        string `yaml:"vehiclePlate"`
	DistributorName     string `yaml:"distributorName"`
	Status              string `yaml:"status"`
	CreatedBy           string `yaml:"createdBy"`
	ApprovedBy          string `yaml:"approvedBy"`
	RejectionReason     string `yaml:"rejectionReason"`
}

// Result counts the rows a run inserted; existing rows are skipped.
type Result struct {
	UsersCreated    int
	UsersSkipped    int
	RequestsCreated int
	RequestsSkipped int
}

// Parse decodes and checks a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if f.Password == "" {
		return errors.New("fixture: password is required")
	}

	roles := make(map[string]model.Role, len(f.Users))
	for _, u := range f.Users {
		role, err := model.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("fixture user %q: %w", u.Key, err)
		}
		if u.Key == "" || u.Email == "" || u.Name == "" {
			return fmt.Errorf("fixture user %q: key, name and email are required", u.Key)
		}
		if _, dup := roles[u.Key]; dup {
			return fmt.Errorf("fixture user %q: duplicate key", u.Key)
		}
		roles[u.Key] = role
	}

	for _, r := range f.Requests {
		status, err := model.ParseStatus(r.Status)
		if err != nil {
			return fmt.Errorf("fixture request %s: %w", r.DeliveryOrderNumber, err)
		}
		if r.DeliveryOrderNumber == "" || r.VehiclePlate == "" || r.DistributorName == "" {
			return fmt.Errorf("fixture request %q: number, plate and distributor are required", r.DeliveryOrderNumber)
		}
		if role, ok := roles[r.CreatedBy]; !ok || !role.IsDistributor() {
			return fmt.Errorf("fixture request %s: createdBy must name a distributor", r.DeliveryOrderNumber)
		}

		reviewed := status != model.StatusPending
		if reviewed {
			if role, ok := roles[r.ApprovedBy]; !ok || !role.IsSales() {
				return fmt.Errorf("fixture request %s: approvedBy must name a sales user", r.DeliveryOrderNumber)
			}
		} else if r.ApprovedBy != "" {
			return fmt.Errorf("fixture request %s: pending requests have no reviewer", r.DeliveryOrderNumber)
		}
		if (status == model.StatusRejected) != (strings.TrimSpace(r.RejectionReason) != "") {
			return fmt.Errorf("fixture request %s: rejectionReason is required exactly when rejected", r.DeliveryOrderNumber)
		}
	}
	return nil
}

// Seeder writes fixtures through the repositories in one transaction.
type Seeder struct {
	users     repository.UserRepository
	requests  repository.RefuelingRepository
	txManager repository.TransactionManager
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSeeder(users repository.UserRepository, requests repository.RefuelingRepository, txManager repository.TransactionManager, log logrus.FieldLogger) *Seeder {
	return &Seeder{users: users, requests: requests, txManager: txManager, log: log, now: time.Now}
}

// Apply inserts the fixture. Users are matched by email and requests by delivery order
// number, so running it twice is a no-op.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Result, error) {
	var res Result

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), bcrypt.DefaultCost)
	if err != nil {
		return res, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ids := make(map[string]uuid.UUID, len(f.Users))
		for _, u := range f.Users {
			existing, err := s.users.GetByEmail(txCtx, u.Email)
			switch {
			case err == nil:
				ids[u.Key] = existing.ID
				res.UsersSkipped++
				continue
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("failed to look up %s: %w", u.Email, err)
			}

			user := &model.User{Name: u.Name, Email: u.Email, Password: string(hash), Role: model.Role(u.Role)}
			if err := s.users.Create(txCtx, user); err != nil {
				return fmt.Errorf("failed to create user %s: %w", u.Email, err)
			}
			ids[u.Key] = user.ID
			res.UsersCreated++
		}

		for _, r := range f.Requests {
			exists, err := s.requests.DeliveryOrderExists(txCtx, r.DeliveryOrderNumber, nil)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", r.DeliveryOrderNumber, err)
			}
			if exists {
				res.RequestsSkipped++
				continue
			}

			req := s.buildRequest(r, ids)
			if err := s.requests.Create(txCtx, req); err != nil {
				return fmt.Errorf("failed to create request %s: %w", r.DeliveryOrderNumber, err)
			}
			res.RequestsCreated++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.WithFields(logrus.Fields{
		"users_created":    res.UsersCreated,
		"users_skipped":    res.UsersSkipped,
		"requests_created": res.RequestsCreated,
		"requests_skipped": res.RequestsSkipped,
	}).Info("seed applied")
	return res, nil
}

func (s *Seeder) buildRequest(r RequestFixture, ids map[string]uuid.UUID) *model.RefuelingRequest {
	req := &model.RefuelingRequest{
		DeliveryOrderNumber: r.DeliveryOrderNumber,
		VehiclePlate:        r.VehiclePlate,
		DistributorName:     r.DistributorName,
		Status:              model.RefuelingStatus(r.Status),
		CreatedBy:           ids[r.CreatedBy],
	}
	if req.Status != model.StatusPending {
		reviewer := ids[r.ApprovedBy]
		reviewedAt := s.now()
		req.ApprovedBy = &reviewer
		req.ApprovedAt = &reviewedAt
	}
	if req.Status == model.StatusRejected {
		reason := strings.TrimSpace(r.RejectionReason)
		req.RejectionReason = &reason
	}
	return req
}
