package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"iuran/internal/auth"
	"iuran/internal/model"
	"iuran/internal/service"
)

const maxSnapshotBytes = 64 << 20

// MaintenanceHandler serves backup, restore and reset.
type MaintenanceHandler struct {
	svc service.MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(svc service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// Backup godoc
// @Summary Download a full backup
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Snapshot
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/backup [get]
func (h *MaintenanceHandler) Backup(c echo.Context) error {
	snapshot, err := h.svc.Backup(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return errorResponse(err)
	}
	filename := fmt.Sprintf("iuran-backup-%s.json", snapshot.CreatedAt.Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.JSON(http.StatusOK, snapshot)
}

// Restore godoc
// @Summary Restore a backup
// @Description Upserts users and submissions from the snapshot in one transaction.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param snapshot body model.Snapshot true "Backup snapshot"
// @Success 200 {object} service.RestoreResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/restore [post]
func (h *MaintenanceHandler) Restore(c echo.Context) error {
	var snapshot model.Snapshot
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxSnapshotBytes)
	if err := json.NewDecoder(body).Decode(&snapshot); err != nil {
		return badRequest("invalid snapshot body")
	}

	result, err := h.svc.Restore(c.Request().Context(), auth.SessionFromContext(c), &snapshot)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Reset godoc
// @Summary Reset all data
// @Description Deletes every submission and, unless keep_users is set, deactivates every non-superadmin user.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param options body service.ResetOptions false "Reset options"
// @Success 200 {object} service.ResetResult
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/reset [post]
func (h *MaintenanceHandler) Reset(c echo.Context) error {
	var opts service.ResetOptions
	if err := c.Bind(&opts); err != nil {
		return badRequest("invalid request body")
	}

	result, err := h.svc.Reset(c.Request().Context(), auth.SessionFromContext(c), opts)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, result)
}
