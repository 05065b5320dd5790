package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
)

func (s *Server) CreateClinic(c *gin.Context) {
	var req clinicdomain.CreateClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clinic, err := s.clinicSvc.Create(c.Request.Context(), clinicdomain.CreateClinicRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": clinic})
}

func (s *Server) ListClinics(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clinics, err := s.clinicSvc.List(c.Request.Context(), clinicdomain.ListClinicRequest{
		Status: strings.ToUpper(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clinics})
}

func (s *Server) GetClinicByID(c *gin.Context) {
	id, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	clinic, err := s.clinicSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clinic})
}
