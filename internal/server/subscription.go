package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
)

type transitionBody struct {
	Comment string `json:"comment"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		ClinicID:            clinicID,
		PlanID:              strings.TrimSpace(req.PlanID),
		PaymentMethodID:     strings.TrimSpace(req.PaymentMethodID),
		AmountPaid:          req.AmountPaid,
		StartDate:           strings.TrimSpace(req.StartDate),
		ExtraAccountsNumber: req.ExtraAccountsNumber,
		RefNumber:           strings.TrimSpace(req.RefNumber),
		Comment:             strings.TrimSpace(req.Comment),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListClinicSubscriptions(c *gin.Context) {
	clinicID, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("clinic_id", "invalid_clinic", "invalid clinic id"))
		return
	}

	records, err := s.subscriptionSvc.ListByClinic(c.Request.Context(), clinicID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	record, err := s.subscriptionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) SuspendSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subscriptionSvc.Suspend)
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subscriptionSvc.Reactivate)
}

func (s *Server) RefundSubscription(c *gin.Context) {
	s.transitionSubscription(c, s.subscriptionSvc.Refund)
}

func (s *Server) transitionSubscription(
	c *gin.Context,
	apply func(context.Context, subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error),
) {
	id, ok := pathID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := apply(c.Request.Context(), subscriptiondomain.TransitionRequest{
		SubscriptionID: id,
		Comment:        strings.TrimSpace(body.Comment),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
