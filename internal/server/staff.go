package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
)

func (s *Server) CreateStaff(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	var req staffdomain.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.staffSvc.Create(c.Request.Context(), staffdomain.CreateStaffRequest{
		ClinicID: clinicID,
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.TrimSpace(req.Email),
		Role:     strings.ToUpper(strings.TrimSpace(req.Role)),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) ListStaff(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	activeOnly, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	req := staffdomain.ListStaffRequest{ClinicID: clinicID}
	if activeOnly != nil {
		req.ActiveOnly = *activeOnly
	}
	accounts, err := s.staffSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

func (s *Server) GetStaffAllowance(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	allowance, err := s.staffSvc.Allowance(c.Request.Context(), clinicID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": allowance})
}

func (s *Server) DeactivateStaff(c *gin.Context) {
	id, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	account, err := s.staffSvc.Deactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ReactivateStaff(c *gin.Context) {
	id, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	account, err := s.staffSvc.Reactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}
