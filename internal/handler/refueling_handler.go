package handler

import (
	"net/http"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/middleware"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/service"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/workflow"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/pagination"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RefuelingHandler struct {
	refuelingService service.RefuelingService
}

func NewRefuelingHandler(refuelingService service.RefuelingService) *RefuelingHandler {
	return &RefuelingHandler{refuelingService: refuelingService}
}

// RegisterRoutes binds the request endpoints; authenticate must populate the caller.
func (h *RefuelingHandler) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	requests := router.Group("/requests", authenticate)
	{
		requests.GET("", h.ListRequests)
		requests.POST("", middleware.RequireRole(model.RoleDistributor), h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.PATCH("/:id", h.PatchRequest)
		requests.DELETE("/:id", h.DeleteRequest)
	}
}

func actorOrAbort(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid request id")
		return uuid.Nil, false
	}
	return id, true
}

// ListRequests returns the page of requests visible to the caller's role
// @Summary      List refueling requests
// @Description  Distributors see their own requests, sales sees pending/approved/rejected, shift sees approved/completed. Newest first, 10 per page.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int     false  "Page number"  default(1)
// @Param        role  query     string  false  "Must match the caller's role when given"
// @Success      200   {object}  response.Response{data=service.RefuelingListResponse}
// @Failure      401   {object}  response.Response
// @Failure      403   {object}  response.Response
// @Router       /requests [get]
func (h *RefuelingHandler) ListRequests(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	if role := c.Query("role"); role != "" && role != string(actor.Role) {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, forbiddenMessage))
		return
	}

	list, err := h.refuelingService.List(c.Request.Context(), actor, pagination.ParsePage(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, list))
}

// CreateRequest handles POST /requests
// @Summary      Create a refueling request
// @Description  Distributor submits a new request; it starts pending.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRefuelingRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.RefuelingRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /requests [post]
func (h *RefuelingHandler) CreateRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateRefuelingRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	created, err := h.refuelingService.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// GetRequest handles GET /requests/:id
// @Summary      Get a refueling request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RefuelingRequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [get]
func (h *RefuelingHandler) GetRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	req, err := h.refuelingService.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// PatchRequest handles PATCH /requests/:id. A body with an action runs a status transition;
// otherwise the given fields are edited.
// @Summary      Edit or transition a refueling request
// @Description  action=approve|reject (sales, pending only), action=complete (shift, approved only). Without action, the owning distributor edits a pending request.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                 true  "Request ID"
// @Param        payload  body      service.PatchRefuelingRequestDTO       true  "Edit or action payload"
// @Success      200      {object}  response.Response{data=service.RefuelingRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /requests/{id} [patch]
func (h *RefuelingHandler) PatchRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	var req service.PatchRefuelingRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	var (
		updated service.RefuelingRequestResponse
		err     error
	)
	if req.IsAction() {
		updated, err = h.refuelingService.ApplyAction(c.Request.Context(), actor, id, req.ActionDTO())
	} else {
		updated, err = h.refuelingService.Update(c.Request.Context(), actor, id, req.UpdateDTO())
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// DeleteRequest handles DELETE /requests/:id
// @Summary      Delete a refueling request
// @Description  The owning distributor may delete a request while it is pending.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [delete]
func (h *RefuelingHandler) DeleteRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	if err := h.refuelingService.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Refueling request deleted."}))
}
