// Package testutil holds fixtures shared by package tests: an in-memory database, users and
// signed tokens.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/config"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/database"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/workflow"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	Password = "password"
	Secret   = "test-secret"
)

// NullLogger returns a logger that records entries instead of printing them.
func NullLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}

// NewDB opens a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	log, _ := NullLogger()
	db, err := database.NewConnection(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, log)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role whose password is Password.
func CreateUser(t *testing.T, db *gorm.DB, role model.Role, name string) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := model.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: string(hash),
		Role:     role,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// ActorOf returns the workflow identity of u.
func ActorOf(u model.User) workflow.Actor {
	return workflow.Actor{ID: u.ID, Role: u.Role}
}

// CreateRequest inserts a refueling request owned by createdBy in the given status. Reviewed
// statuses get a fresh sales reviewer, and rejected ones a reason.
func CreateRequest(t *testing.T, db *gorm.DB, createdBy uuid.UUID, number string, status model.RefuelingStatus) model.RefuelingRequest {
	t.Helper()
	req := model.RefuelingRequest{
		DeliveryOrderNumber: number,
		VehiclePlate:        "B1234ABC",
		DistributorName:     "PT Test",
		Status:              status,
		CreatedBy:           createdBy,
	}
	if status != model.StatusPending {
		reviewer := CreateUser(t, db, model.RoleSales, "Reviewer "+number)
		reviewedAt := time.Now()
		req.ApprovedBy = &reviewer.ID
		req.ApprovedAt = &reviewedAt
	}
	if status == model.StatusRejected {
		reason := "Rejected by fixture"
		req.RejectionReason = &reason
	}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request %s: %v", number, err)
	}
	return req
}

// SignToken issues an HS256 token for the user signed with Secret.
func SignToken(t *testing.T, u model.User, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  u.ID.String(),
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
