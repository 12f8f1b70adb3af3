package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/repository"
	"eurodoor_admin/internal/services"

	"github.com/gin-gonic/gin"
)

const defaultAuditLimit = 50

type ReportHandler struct {
	views   services.ViewService
	exports services.ExportService
	audits  repository.AuditRepository
}

func NewReportHandler(
	views services.ViewService,
	exports services.ExportService,
	audits repository.AuditRepository,
) *ReportHandler {
	return &ReportHandler{
		views:   views,
		exports: exports,
		audits:  audits,
	}
}

// ListReports returns the report definitions with their filter options and
// the currency their amounts are shown in.
func (h *ReportHandler) ListReports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"reports":  h.views.Reports(),
		"currency": h.views.Currency(),
	})
}

func (h *ReportHandler) MountView(c *gin.Context) {
	view, err := h.views.Mount(c.Request.Context(), currentSession(c).ID, c.Param("report"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

func (h *ReportHandler) GetView(c *gin.Context) {
	view, err := h.views.Get(c.Request.Context(), currentSession(c).ID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReportHandler) UpdateView(c *gin.Context) {
	var upd services.ViewUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		_ = c.Error(apperr.ValidationErr("Invalid request format"))
		return
	}

	view, err := h.views.Update(c.Request.Context(), currentSession(c).ID, c.Param("id"), upd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReportHandler) UnmountView(c *gin.Context) {
	if err := h.views.Unmount(c.Request.Context(), currentSession(c).ID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReportHandler) ExportView(c *gin.Context) {
	session := currentSession(c)
	res, err := h.exports.Export(c.Request.Context(), session.ID, session.Email, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	c.Data(http.StatusOK, res.ContentType, res.Body)
}

func (h *ReportHandler) ListExportAudits(c *gin.Context) {
	limit, ok := auditLimit(c)
	if !ok {
		return
	}

	audits, err := h.audits.ListExports(c.Request.Context(), c.Query("report"), limit)
	if err != nil {
		_ = c.Error(apperr.Wrap(fmt.Errorf("failed to list export audits: %w", err)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": audits})
}

// ListLoginAudits returns recent login attempts, optionally for one email.
func (h *ReportHandler) ListLoginAudits(c *gin.Context) {
	limit, ok := auditLimit(c)
	if !ok {
		return
	}

	audits, err := h.audits.ListLogins(c.Request.Context(), c.Query("email"), limit)
	if err != nil {
		_ = c.Error(apperr.Wrap(fmt.Errorf("failed to list login audits: %w", err)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": audits})
}

func auditLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultAuditLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		_ = c.Error(apperr.ValidationErr("limit must be a positive number"))
		return 0, false
	}
	return n, true
}
