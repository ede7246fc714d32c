package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/metrics"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/workflow"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/pagination"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRefuelingRequestDTO struct {
	DeliveryOrderNumber string `json:"deliveryOrderNumber" validate:"required,max=255"`
	VehiclePlate        string `json:"vehiclePlate" validate:"required,max=255"`
	DistributorName     string `json:"distributorName" validate:"required,max=255"`
}

func (d *CreateRefuelingRequestDTO) normalize() {
	d.DeliveryOrderNumber = strings.TrimSpace(d.DeliveryOrderNumber)
	d.VehiclePlate = strings.TrimSpace(d.VehiclePlate)
	d.DistributorName = strings.TrimSpace(d.DistributorName)
}

// UpdateRefuelingRequestDTO is a partial edit; nil fields keep their current value.
type UpdateRefuelingRequestDTO struct {
	DeliveryOrderNumber *string `json:"deliveryOrderNumber"`
	VehiclePlate        *string `json:"vehiclePlate"`
	DistributorName     *string `json:"distributorName"`
}

// mergeInto overlays the provided fields on req's current values.
func (d UpdateRefuelingRequestDTO) mergeInto(req *model.RefuelingRequest) CreateRefuelingRequestDTO {
	merged := CreateRefuelingRequestDTO{
		DeliveryOrderNumber: req.DeliveryOrderNumber,
		VehiclePlate:        req.VehiclePlate,
		DistributorName:     req.DistributorName,
	}
	if d.DeliveryOrderNumber != nil {
		merged.DeliveryOrderNumber = *d.DeliveryOrderNumber
	}
	if d.VehiclePlate != nil {
		merged.VehiclePlate = *d.VehiclePlate
	}
	if d.DistributorName != nil {
		merged.DistributorName = *d.DistributorName
	}
	merged.normalize()
	return merged
}

type ActionDTO struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejectionReason"`
}

// PatchRefuelingRequestDTO is the body of PATCH /requests/{id}: either a transition (action
// present) or a plain field edit.
type PatchRefuelingRequestDTO struct {
	Action              *string `json:"action"`
	RejectionReason     string  `json:"rejectionReason"`
	DeliveryOrderNumber *string `json:"deliveryOrderNumber"`
	VehiclePlate        *string `json:"vehiclePlate"`
	DistributorName     *string `json:"distributorName"`
}

func (p PatchRefuelingRequestDTO) IsAction() bool { return p.Action != nil }

func (p PatchRefuelingRequestDTO) ActionDTO() ActionDTO {
	dto := ActionDTO{RejectionReason: p.RejectionReason}
	if p.Action != nil {
		dto.Action = *p.Action
	}
	return dto
}

func (p PatchRefuelingRequestDTO) UpdateDTO() UpdateRefuelingRequestDTO {
	return UpdateRefuelingRequestDTO{
		DeliveryOrderNumber: p.DeliveryOrderNumber,
		VehiclePlate:        p.VehiclePlate,
		DistributorName:     p.DistributorName,
	}
}

type RefuelingRequestResponse struct {
	ID                  string  `json:"id"`
	DeliveryOrderNumber string  `json:"deliveryOrderNumber"`
	VehiclePlate        string  `json:"vehiclePlate"`
	DistributorName     string  `json:"distributorName"`
	Status              string  `json:"status"`
	CreatedBy           string  `json:"createdBy"`
	CreatorName         string  `json:"creatorName"`
	ApprovedBy          *string `json:"approvedBy"`
	ApproverName        string  `json:"approverName"`
	ApprovedAt          *string `json:"approvedAt"`
	RejectionReason     *string `json:"rejectionReason"`
	CreatedAt           string  `json:"createdAt"`
	UpdatedAt           string  `json:"updatedAt"`
}

type RefuelingListResponse struct {
	Data             []RefuelingRequestResponse `json:"data"`
	Meta             pagination.Meta            `json:"meta"`
	UserRole         model.Role                 `json:"userRole"`
	CanCreateRequest bool                       `json:"canCreateRequest"`
}

// --- Interface ---

type RefuelingService interface {
	Create(ctx context.Context, actor workflow.Actor, req CreateRefuelingRequestDTO) (RefuelingRequestResponse, error)
	List(ctx context.Context, actor workflow.Actor, page int) (RefuelingListResponse, error)
	Get(ctx context.Context, actor workflow.Actor, id uuid.UUID) (RefuelingRequestResponse, error)
	ApplyAction(ctx context.Context, actor workflow.Actor, id uuid.UUID, req ActionDTO) (RefuelingRequestResponse, error)
	Update(ctx context.Context, actor workflow.Actor, id uuid.UUID, req UpdateRefuelingRequestDTO) (RefuelingRequestResponse, error)
	Delete(ctx context.Context, actor workflow.Actor, id uuid.UUID) error
}

type refuelingService struct {
	repo      repository.RefuelingRepository
	txManager repository.TransactionManager
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewRefuelingService(repo repository.RefuelingRepository, txManager repository.TransactionManager, log logrus.FieldLogger) RefuelingService {
	return &refuelingService{
		repo:      repo,
		txManager: txManager,
		log:       log,
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *refuelingService) Create(ctx context.Context, actor workflow.Actor, dto CreateRefuelingRequestDTO) (RefuelingRequestResponse, error) {
	if !workflow.CanCreate(actor) {
		return RefuelingRequestResponse{}, ErrForbidden
	}

	dto.normalize()
	if err := validateStruct(dto); err != nil {
		return RefuelingRequestResponse{}, err
	}

	req := model.RefuelingRequest{
		DeliveryOrderNumber: dto.DeliveryOrderNumber,
		VehiclePlate:        dto.VehiclePlate,
		DistributorName:     dto.DistributorName,
		Status:              model.StatusPending,
		CreatedBy:           actor.ID,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.repo.DeliveryOrderExists(txCtx, req.DeliveryOrderNumber, nil)
		if err != nil {
			return fmt.Errorf("failed to check delivery order number: %w", err)
		}
		if exists {
			return duplicateDeliveryOrder()
		}

		if err := s.repo.Create(txCtx, &req); err != nil {
			if errors.Is(err, repository.ErrDuplicateDeliveryOrder) {
				return duplicateDeliveryOrder()
			}
			return fmt.Errorf("failed to create refueling request: %w", err)
		}
		return nil
	})
	if err != nil {
		return RefuelingRequestResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":     req.ID,
		"delivery_order": req.DeliveryOrderNumber,
		"actor_id":       actor.ID,
	}).Info("refueling request created")

	return s.reload(ctx, req.ID)
}

func (s *refuelingService) List(ctx context.Context, actor workflow.Actor, page int) (RefuelingListResponse, error) {
	scope, err := workflow.ListScope(actor)
	if err != nil {
		return RefuelingListResponse{}, ErrForbidden
	}
	if page < 1 {
		page = pagination.DefaultPage
	}

	requests, total, err := s.repo.List(ctx, repository.RefuelingFilter{
		CreatedBy: scope.CreatedBy,
		Statuses:  scope.Statuses,
		Page:      page,
		Limit:     pagination.RequestsPerPage,
	})
	if err != nil {
		return RefuelingListResponse{}, fmt.Errorf("failed to fetch refueling requests: %w", err)
	}

	data := make([]RefuelingRequestResponse, 0, len(requests))
	for _, r := range requests {
		data = append(data, toRefuelingResponse(r))
	}

	return RefuelingListResponse{
		Data:             data,
		Meta:             pagination.NewMeta(page, pagination.RequestsPerPage, total),
		UserRole:         actor.Role,
		CanCreateRequest: workflow.CanCreate(actor),
	}, nil
}

func (s *refuelingService) Get(ctx context.Context, actor workflow.Actor, id uuid.UUID) (RefuelingRequestResponse, error) {
	req, err := s.repo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return RefuelingRequestResponse{}, notFoundOr(err)
	}
	if !workflow.CanView(actor, req) {
		return RefuelingRequestResponse{}, ErrForbidden
	}
	return toRefuelingResponse(*req), nil
}

func (s *refuelingService) ApplyAction(ctx context.Context, actor workflow.Actor, id uuid.UUID, dto ActionDTO) (RefuelingRequestResponse, error) {
	action, err := workflow.ParseAction(strings.TrimSpace(dto.Action))
	if err != nil {
		metrics.RecordTransition("unknown", metrics.OutcomeInvalid)
		return RefuelingRequestResponse{}, newValidationError("action", "The selected action is invalid.")
	}

	var transition workflow.Transition
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, findErr := s.repo.FindByID(txCtx, id)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		planned, planErr := workflow.Plan(req, action, actor, dto.RejectionReason, s.now())
		switch {
		case errors.Is(planErr, workflow.ErrNotAllowed):
			return ErrForbidden
		case errors.Is(planErr, workflow.ErrReasonRequired):
			return newValidationError("rejectionReason", "The rejection reason field is required.")
		case errors.Is(planErr, workflow.ErrReasonTooLong):
			return newValidationError("rejectionReason",
				fmt.Sprintf("The rejection reason may not be greater than %d characters.", workflow.MaxRejectionReasonLength))
		case planErr != nil:
			return planErr
		}

		if updateErr := s.repo.UpdateIfStatus(txCtx, req.ID, planned.From, planned.Columns()); updateErr != nil {
			if errors.Is(updateErr, repository.ErrStaleState) {
				return ErrConflict
			}
			return fmt.Errorf("failed to update refueling request: %w", updateErr)
		}
		transition = planned
		return nil
	})

	metrics.RecordTransition(string(action), transitionOutcome(err))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"action":     action,
			"actor_id":   actor.ID,
			"role":       actor.Role,
		}).WithError(err).Warn("refueling request transition refused")
		return RefuelingRequestResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": id,
		"action":     action,
		"from":       transition.From,
		"to":         transition.To,
		"actor_id":   actor.ID,
	}).Info("refueling request transitioned")

	return s.reload(ctx, id)
}

func (s *refuelingService) Update(ctx context.Context, actor workflow.Actor, id uuid.UUID, dto UpdateRefuelingRequestDTO) (RefuelingRequestResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return notFoundOr(err)
		}
		if !workflow.CanEdit(actor, req) {
			return ErrForbidden
		}

		merged := dto.mergeInto(req)
		if err := validateStruct(merged); err != nil {
			return err
		}

		exists, err := s.repo.DeliveryOrderExists(txCtx, merged.DeliveryOrderNumber, &req.ID)
		if err != nil {
			return fmt.Errorf("failed to check delivery order number: %w", err)
		}
		if exists {
			return duplicateDeliveryOrder()
		}

		err = s.repo.UpdateIfStatus(txCtx, req.ID, model.StatusPending, map[string]interface{}{
			"delivery_order_number": merged.DeliveryOrderNumber,
			"vehicle_plate":         merged.VehiclePlate,
			"distributor_name":      merged.DistributorName,
		})
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return ErrConflict
		case errors.Is(err, repository.ErrDuplicateDeliveryOrder):
			return duplicateDeliveryOrder()
		case err != nil:
			return fmt.Errorf("failed to update refueling request: %w", err)
		}
		return nil
	})
	if err != nil {
		return RefuelingRequestResponse{}, err
	}

	s.log.WithFields(logrus.Fields{"request_id": id, "actor_id": actor.ID}).Info("refueling request updated")
	return s.reload(ctx, id)
}

func (s *refuelingService) Delete(ctx context.Context, actor workflow.Actor, id uuid.UUID) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return notFoundOr(err)
		}
		if !workflow.CanDelete(actor, req) {
			return ErrForbidden
		}

		if err := s.repo.DeleteIfPending(txCtx, req.ID, actor.ID); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrConflict
			}
			return fmt.Errorf("failed to delete refueling request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"request_id": id, "actor_id": actor.ID}).Info("refueling request deleted")
	return nil
}

// --- Helpers ---

func (s *refuelingService) reload(ctx context.Context, id uuid.UUID) (RefuelingRequestResponse, error) {
	req, err := s.repo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return RefuelingRequestResponse{}, fmt.Errorf("failed to reload refueling request: %w", err)
	}
	return toRefuelingResponse(*req), nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to load refueling request: %w", err)
}

func transitionOutcome(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &validationErr):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func toRefuelingResponse(r model.RefuelingRequest) RefuelingRequestResponse {
	resp := RefuelingRequestResponse{
		ID:                  r.ID.String(),
		DeliveryOrderNumber: r.DeliveryOrderNumber,
		VehiclePlate:        r.VehiclePlate,
		DistributorName:     r.DistributorName,
		Status:              string(r.Status),
		CreatedBy:           r.CreatedBy.String(),
		RejectionReason:     r.RejectionReason,
		CreatedAt:           r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           r.UpdatedAt.Format(time.RFC3339),
	}

	if r.Creator != nil {
		resp.CreatorName = r.Creator.Name
	}
	if r.ApprovedBy != nil {
		s := r.ApprovedBy.String()
		resp.ApprovedBy = &s
	}
	if r.Approver != nil {
		resp.ApproverName = r.Approver.Name
	}
	if r.ApprovedAt != nil {
		s := r.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &s
	}

	return resp
}
