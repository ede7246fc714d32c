package repository

import (
	"context"
	"errors"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrStaleState is returned when a conditional write matched no row because the
	// request left the expected state (or was removed) after it was read.
	ErrStaleState = errors.New("refueling request changed since it was read")
	// ErrDuplicateDeliveryOrder is returned when the unique delivery order index rejects a write.
	ErrDuplicateDeliveryOrder = errors.New("delivery order number already exists")
)

// RefuelingFilter selects a page of refueling requests.
type RefuelingFilter struct {
	CreatedBy *uuid.UUID
	Statuses  []model.RefuelingStatus
	Page      int
	Limit     int
}

func (f RefuelingFilter) apply(db *gorm.DB) *gorm.DB {
	if f.CreatedBy != nil {
		db = db.Where("created_by = ?", *f.CreatedBy)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}

type RefuelingRepository interface {
	Create(ctx context.Context, req *model.RefuelingRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RefuelingRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.RefuelingRequest, error)
	DeliveryOrderExists(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, filter RefuelingFilter) ([]model.RefuelingRequest, int64, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, expected model.RefuelingStatus, changes map[string]interface{}) error
	DeleteIfPending(ctx context.Context, id, createdBy uuid.UUID) error
}

type refuelingRepository struct {
	db *gorm.DB
}

func NewRefuelingRepository(db *gorm.DB) RefuelingRepository {
	return &refuelingRepository{db: db}
}

func (r *refuelingRepository) Create(ctx context.Context, req *model.RefuelingRequest) error {
	return translate(GetDB(ctx, r.db).Create(req).Error)
}

func (r *refuelingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RefuelingRequest, error) {
	var req model.RefuelingRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *refuelingRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.RefuelingRequest, error) {
	var req model.RefuelingRequest
	if err := GetDB(ctx, r.db).Preload("Creator").Preload("Approver").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *refuelingRepository) DeliveryOrderExists(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&model.RefuelingRequest{}).Where("delivery_order_number = ?", number)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *refuelingRepository) List(ctx context.Context, filter RefuelingFilter) ([]model.RefuelingRequest, int64, error) {
	var requests []model.RefuelingRequest
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RefuelingRequest{}).Scopes(filter.apply).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(filter.apply).
		Preload("Creator").
		Preload("Approver").
		Order("created_at DESC").
		Order("id DESC").
		Offset(pagination.Offset(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// UpdateIfStatus writes changes only while the row still holds the expected status.
func (r *refuelingRepository) UpdateIfStatus(ctx context.Context, id uuid.UUID, expected model.RefuelingStatus, changes map[string]interface{}) error {
	res := GetDB(ctx, r.db).
		Model(&model.RefuelingRequest{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(changes)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *refuelingRepository) DeleteIfPending(ctx context.Context, id, createdBy uuid.UUID) error {
	res := GetDB(ctx, r.db).
		Where("id = ? AND created_by = ? AND status = ?", id, createdBy, model.StatusPending).
		Delete(&model.RefuelingRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateDeliveryOrder
	}
	return err
}
