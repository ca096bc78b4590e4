package handlers

import (
	"net/http"
	"strconv"

	"commitfi/internal/auth"
	"commitfi/internal/models"
	"commitfi/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VerificationHandler struct {
	verificationService *services.VerificationService
}

func NewVerificationHandler(verificationService *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

// CastVote endorses another participant's submitted proof
// POST /api/challenges/:id/votes
func (h *VerificationHandler) CastVote(c *gin.Context) {
	voterID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	var req models.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.verificationService.CastVote(c.Request.Context(), challengeID, voterID, req.SubmissionOwnerID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetSubmissionState retrieves the verification view of one submission
// GET /api/challenges/:id/submissions/:owner
func (h *VerificationHandler) GetSubmissionState(c *gin.Context) {
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	ownerID, err := strconv.ParseUint(c.Param("owner"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
		return
	}

	state, err := h.verificationService.GetSubmissionState(c.Request.Context(), challengeID, uint(ownerID))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// Finalize marks a submission verified (leader only)
// POST /api/challenges/:id/submissions/:owner/finalize
func (h *VerificationHandler) Finalize(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	ownerID, err := strconv.ParseUint(c.Param("owner"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
		return
	}

	stake, err := h.verificationService.Finalize(c.Request.Context(), challengeID, actorID, uint(ownerID))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stake)
}
