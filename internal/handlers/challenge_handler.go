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

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

// ReserveCustody mints a challenge ID and returns the custody address to
// deposit into before creating the challenge
// POST /api/challenges/custody
func (h *ChallengeHandler) ReserveCustody(c *gin.Context) {
	if _, exists := auth.GetUserID(c); !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, custodyAddress, err := h.challengeService.ReserveCustody(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reserve custody"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge_id":    challengeID,
		"custody_address": custodyAddress,
	})
}

// CreateChallenge creates a new challenge with the creator auto-joined
// POST /api/challenges
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	creatorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), creatorID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, challenge)
}

// GetChallenge retrieves a challenge by ID
// GET /api/challenges/:id
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	challenge, err := h.challengeService.GetChallenge(c.Request.Context(), challengeID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// ListChallenges retrieves challenges, newest first
// GET /api/challenges?open=true&limit=20&offset=0
func (h *ChallengeHandler) ListChallenges(c *gin.Context) {
	limit, offset := parsePagination(c)

	var (
		challenges []*models.Challenge
		total      int64
		err        error
	)

	if c.Query("open") == "true" {
		challenges, total, err = h.challengeService.ListOpenChallenges(c.Request.Context(), limit, offset)
	} else {
		challenges, total, err = h.challengeService.ListChallenges(c.Request.Context(), limit, offset)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list challenges"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges": challenges,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// ListJoinRequests retrieves join requests for the leader
// GET /api/challenges/:id/requests
func (h *ChallengeHandler) ListJoinRequests(c *gin.Context) {
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

	requests, err := h.challengeService.ListParticipationRequests(c.Request.Context(), challengeID, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    len(requests),
	})
}

// ListCustodyTransactions retrieves the custody ledger for a challenge
// GET /api/challenges/:id/custody
func (h *ChallengeHandler) ListCustodyTransactions(c *gin.Context) {
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return
	}

	txs, err := h.challengeService.ListCustodyTransactions(c.Request.Context(), challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list custody transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        len(txs),
	})
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
