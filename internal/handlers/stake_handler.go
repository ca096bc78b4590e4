package handlers

import (
	"net/http"

	"commitfi/internal/auth"
	"commitfi/internal/models"
	"commitfi/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StakeHandler struct {
	stakeService *services.StakeService
}

func NewStakeHandler(stakeService *services.StakeService) *StakeHandler {
	return &StakeHandler{
		stakeService: stakeService,
	}
}

// RequestJoin asks to join a challenge
// POST /api/challenges/:id/requests
func (h *StakeHandler) RequestJoin(c *gin.Context) {
	applicantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	request, err := h.stakeService.RequestJoin(c.Request.Context(), challengeID, applicantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// DecideRequest approves or rejects a pending join request
// POST /api/requests/:id/decision
func (h *StakeHandler) DecideRequest(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req models.DecideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var approve bool
	switch req.Decision {
	case "approved":
		approve = true
	case "rejected":
		approve = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approved or rejected"})
		return
	}

	request, err := h.stakeService.DecideRequest(c.Request.Context(), requestID, actorID, approve)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// PayAndJoin confirms the custody deposit and creates the stake
// POST /api/challenges/:id/join
func (h *StakeHandler) PayAndJoin(c *gin.Context) {
	participantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	var req models.PayAndJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature required"})
		return
	}

	stake, err := h.stakeService.PayAndJoin(c.Request.Context(), challengeID, participantID, req.Signature)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stake)
}

// SubmitProof attaches completion evidence to the caller's stake
// POST /api/challenges/:id/proof
func (h *StakeHandler) SubmitProof(c *gin.Context) {
	participantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	var req models.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stake, err := h.stakeService.SubmitProof(c.Request.Context(), challengeID, participantID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stake)
}

// Settle releases the caller's verified stake after the deadline
// POST /api/challenges/:id/settle
func (h *StakeHandler) Settle(c *gin.Context) {
	participantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	stake, err := h.stakeService.Settle(c.Request.Context(), challengeID, participantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stake)
}

// GetMyStake retrieves the caller's stake in a challenge
// GET /api/challenges/:id/stake
func (h *StakeHandler) GetMyStake(c *gin.Context) {
	participantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	stake, err := h.stakeService.GetStake(c.Request.Context(), challengeID, participantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stake)
}

// ListStakes retrieves all stakes in a challenge
// GET /api/challenges/:id/stakes
func (h *StakeHandler) ListStakes(c *gin.Context) {
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	stakes, err := h.stakeService.ListStakes(c.Request.Context(), challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stakes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stakes": stakes,
		"total":  len(stakes),
	})
}

// ListMyStakes retrieves the caller's stakes across challenges
// GET /api/stakes
func (h *StakeHandler) ListMyStakes(c *gin.Context) {
	participantID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)

	stakes, total, err := h.stakeService.ListParticipantStakes(c.Request.Context(), participantID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stakes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stakes": stakes,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
