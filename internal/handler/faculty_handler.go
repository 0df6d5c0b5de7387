package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itsmahammad/UniversityERP/internal/dto"
	"github.com/itsmahammad/UniversityERP/internal/middleware"
	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/pkg/response"
)

type facultyService interface {
	List(ctx context.Context) ([]models.Faculty, bool, error)
	Get(ctx context.Context, id string) (*models.Faculty, error)
	Create(ctx context.Context, actor models.Actor, req dto.FacultyRequest) (*models.Faculty, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.FacultyRequest) (*models.Faculty, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// FacultyHandler exposes the faculty catalog.
type FacultyHandler struct {
	service facultyService
}

// NewFacultyHandler constructs the handler.
func NewFacultyHandler(svc facultyService) *FacultyHandler {
	return &FacultyHandler{service: svc}
}

// List godoc
// @Summary List faculties
// @Tags Faculties
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /faculties [get]
func (h *FacultyHandler) List(c *gin.Context) {
	faculties, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, faculties, nil, middleware.Meta(c))
}

// Get godoc
// @Summary Get faculty
// @Tags Faculties
// @Produce json
// @Security BearerAuth
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculties/{id} [get]
func (h *FacultyHandler) Get(c *gin.Context) {
	faculty, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}

// Create godoc
// @Summary Create faculty
// @Tags Faculties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.FacultyRequest true "Faculty payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /faculties [post]
func (h *FacultyHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.FacultyRequest
	if !bindJSON(c, &req) {
		return
	}

	faculty, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, faculty)
}

// Update godoc
// @Summary Rename faculty
// @Tags Faculties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Faculty ID"
// @Param payload body dto.FacultyRequest true "Faculty payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /faculties/{id} [put]
func (h *FacultyHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.FacultyRequest
	if !bindJSON(c, &req) {
		return
	}

	faculty, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}

// Delete godoc
// @Summary Delete faculty
// @Tags Faculties
// @Security BearerAuth
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculties/{id} [delete]
func (h *FacultyHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "faculty deleted", nil, nil)
}
