package handlers

import (
	"net/http"

	"assassinserver/internal/claims"
	"assassinserver/internal/lifecycle"
	"assassinserver/internal/ring"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubmitClaimRequest はキル申請のボディ。証拠の実体はメディア側に保存済みで参照のみ受け取る
type SubmitClaimRequest struct {
	VictimUserID uint     `json:"victimUserId"`
	ProofRef     string   `json:"proofRef" binding:"required"`
	ThumbnailRef string   `json:"thumbnailRef"`
	Caption      string   `json:"caption"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func SubmitClaim(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var request SubmitClaimRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Warn("Claim request bind error", zap.Error(err))
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := ctrl.SubmitClaim(c.Request.Context(), gameID, ring.ClaimInput{
		PosterUserID: actor(c).UserID,
		VictimUserID: request.VictimUserID,
		ProofRef:     request.ProofRef,
		ThumbnailRef: request.ThumbnailRef,
		Caption:      request.Caption,
		Latitude:     request.Latitude,
		Longitude:    request.Longitude,
	})
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "claim": claim})
}

func ListClaims(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	poster, ok := queryID(c, "poster")
	if !ok {
		return
	}
	victim, ok := queryID(c, "victim")
	if !ok {
		return
	}

	list, err := ctrl.ListClaims(c.Request.Context(), gameID, claims.Filter{
		Status:       models.ClaimStatus(c.Query("status")),
		PosterUserID: poster,
		VictimUserID: victim,
	})
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "claims": list})
}

func GetClaim(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	claimID, ok := paramID(c, "id")
	if !ok {
		return
	}
	claim, err := ctrl.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "claim": claim})
}

// ConfirmClaim は被害者本人による申請の承認
func ConfirmClaim(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	claimID, ok := paramID(c, "id")
	if !ok {
		return
	}
	claim, err := ctrl.Confirm(c.Request.Context(), claimID, actor(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "success", "claim": claim})
}

// DenyClaim は被害者本人による申請の否認
func DenyClaim(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	claimID, ok := paramID(c, "id")
	if !ok {
		return
	}
	claim, err := ctrl.Deny(c.Request.Context(), claimID, actor(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "success", "claim": claim})
}

// ResolveRequest は管理者裁定のボディ。Outcome は "verify" または "deny"
type ResolveRequest struct {
	Outcome ring.Outcome `json:"outcome" binding:"required"`
}

func ResolveClaim(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	claimID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var request ResolveRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Warn("Resolve request bind error", zap.Error(err))
		badRequest(c, "Invalid request body")
		return
	}
	claim, err := ctrl.AdminResolve(c.Request.Context(), claimID, actor(c), request.Outcome)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "success", "claim": claim})
}
