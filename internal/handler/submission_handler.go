package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"iuran/internal/auth"
	"iuran/internal/export"
	"iuran/internal/model"
	"iuran/internal/service"
)

// SubmissionHandler serves dues submissions, the dashboard and exports.
type SubmissionHandler struct {
	svc service.SubmissionService
	now func() time.Time
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(svc service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, now: time.Now}
}

// SubmitRequest is a month's dues. Member identity defaults to the session user.
type SubmitRequest struct {
	UserID     string          `json:"user_id" validate:"omitempty,uuid"`
	Username   string          `json:"username"`
	NamaJamaah string          `json:"nama_jamaah"`
	BulanTahun string          `json:"bulan_tahun" validate:"required"`
	Iuran1     decimal.Decimal `json:"iuran_1"`
	Iuran2     decimal.Decimal `json:"iuran_2"`
	Iuran3     decimal.Decimal `json:"iuran_3"`
	Iuran4     decimal.Decimal `json:"iuran_4"`
	Iuran5     decimal.Decimal `json:"iuran_5"`
}

// UpdateSubmissionRequest carries changed fields. total_iuran is accepted and ignored.
type UpdateSubmissionRequest struct {
	NamaJamaah *string          `json:"nama_jamaah"`
	Iuran1     *decimal.Decimal `json:"iuran_1"`
	Iuran2     *decimal.Decimal `json:"iuran_2"`
	Iuran3     *decimal.Decimal `json:"iuran_3"`
	Iuran4     *decimal.Decimal `json:"iuran_4"`
	Iuran5     *decimal.Decimal `json:"iuran_5"`
	TotalIuran *decimal.Decimal `json:"total_iuran"`
}

// SubmissionResponse wraps a lookup that may be empty.
type SubmissionResponse struct {
	Data *model.IuranSubmission `json:"data"`
}

// ListSubmissions godoc
// @Summary List submissions of active members
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.IuranSubmission
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(c echo.Context) error {
	subs, err := h.svc.ListActive(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, subs)
}

// DashboardStats godoc
// @Summary Dashboard statistics
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.DashboardStats
// @Failure 401 {object} errors.ErrorResponse
// @Router /dashboard/stats [get]
func (h *SubmissionHandler) DashboardStats(c echo.Context) error {
	stats, err := h.svc.DashboardStats(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// MySubmission godoc
// @Summary Submission of one member for one month
// @Description Defaults to the session user and the current month. data is null when nothing was submitted.
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Param bulan_tahun query string false "Month, YYYY-MM"
// @Param user_id query string false "Member ID (staff only)"
// @Success 200 {object} SubmissionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /submissions/mine [get]
func (h *SubmissionHandler) MySubmission(c echo.Context) error {
	session := auth.SessionFromContext(c)

	userID := session.User.ID
	if raw := c.QueryParam("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return badRequest("invalid user_id")
		}
		userID = parsed
	}

	month := model.MonthStart(h.now())
	if raw := c.QueryParam("bulan_tahun"); raw != "" {
		parsed, err := model.ParseMonth(raw)
		if err != nil {
			return badRequest("bulan_tahun must be YYYY-MM")
		}
		month = parsed
	}

	sub, err := h.svc.UserSubmission(c.Request().Context(), session, userID, month)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, SubmissionResponse{Data: sub})
}

// SubmitSubmission godoc
// @Summary Submit dues for a month
// @Description Creates the month's record or overwrites the existing one.
// @Tags submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitRequest true "Dues"
// @Success 200 {object} model.IuranSubmission
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /submissions [put]
func (h *SubmissionHandler) SubmitSubmission(c echo.Context) error {
	in, err := h.submissionInput(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Submit(c.Request().Context(), auth.SessionFromContext(c), in)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, sub)
}

// CreateSubmission godoc
// @Summary Create dues for a month
// @Description Fails with 409 when the month was already submitted.
// @Tags submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitRequest true "Dues"
// @Success 201 {object} model.IuranSubmission
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c echo.Context) error {
	in, err := h.submissionInput(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Create(c.Request().Context(), auth.SessionFromContext(c), in)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// UpdateSubmission godoc
// @Summary Update a submission
// @Tags submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param request body UpdateSubmissionRequest true "Changed fields"
// @Success 200 {object} model.IuranSubmission
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /submissions/{id} [patch]
func (h *SubmissionHandler) UpdateSubmission(c echo.Context) error {
	var req UpdateSubmissionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	patch := service.SubmissionPatch{
		NamaJamaah: req.NamaJamaah,
		Iuran:      [5]*decimal.Decimal{req.Iuran1, req.Iuran2, req.Iuran3, req.Iuran4, req.Iuran5},
		TotalIuran: req.TotalIuran,
	}
	sub, err := h.svc.Update(c.Request().Context(), auth.SessionFromContext(c), c.Param("id"), patch)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, sub)
}

// DeleteSubmission godoc
// @Summary Delete a submission
// @Tags submissions
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) DeleteSubmission(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), auth.SessionFromContext(c), c.Param("id")); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportSubmissions godoc
// @Summary Export submissions of active members
// @Tags submissions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv,application/json,application/xml
// @Security BearerAuth
// @Param format query string false "xlsx, csv, json or xml" default(xlsx)
// @Success 200 {file} file
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /submissions/export [get]
func (h *SubmissionHandler) ExportSubmissions(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return badRequest(err.Error())
	}

	subs, err := h.svc.ListActive(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}

	now := h.now()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, subs, now); err != nil {
		return errorResponse(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename(format, now)+`"`)
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *SubmissionHandler) submissionInput(c echo.Context) (service.SubmissionInput, error) {
	var req SubmitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return service.SubmissionInput{}, err
	}

	month, err := model.ParseMonth(req.BulanTahun)
	if err != nil {
		return service.SubmissionInput{}, badRequest("bulan_tahun must be YYYY-MM")
	}

	session := auth.SessionFromContext(c)
	in := service.SubmissionInput{
		UserID:     session.User.ID,
		Username:   req.Username,
		NamaJamaah: req.NamaJamaah,
		BulanTahun: month,
		Iuran:      [5]decimal.Decimal{req.Iuran1, req.Iuran2, req.Iuran3, req.Iuran4, req.Iuran5},
	}
	if req.UserID != "" {
		in.UserID = uuid.MustParse(req.UserID)
	}
	if in.UserID == session.User.ID {
		if in.Username == "" {
			in.Username = session.User.Username
		}
		if in.NamaJamaah == "" {
			in.NamaJamaah = session.User.FullName
		}
	}
	return in, nil
}
