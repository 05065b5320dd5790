package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
)

type listAuditLogsQuery struct {
	Action string `form:"action"`
	Limit  string `form:"limit"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit, err := parseOptionalInt(query.Limit)
	if err != nil || (limit != nil && *limit < 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	req := auditdomain.ListAuditLogRequest{
		ClinicID: clinicID,
		Action:   strings.TrimSpace(query.Action),
	}
	if limit != nil {
		req.Limit = *limit
	}

	logs, err := s.auditSvc.ListByClinic(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
