package handlers

import (
	"errors"
	"net/http"

	"assassinserver/internal/gameerr"
	"assassinserver/internal/lifecycle"
	"assassinserver/internal/participants"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateGameRequest はゲーム作成リクエストのボディ
type CreateGameRequest struct {
	Name       string `json:"name"`
	PictureRef string `json:"pictureRef"`
}

// CreateGame は管理者による新規ゲームの作成
func CreateGame(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	var request CreateGameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Warn("Create game request bind error", zap.Error(err))
		badRequest(c, "Invalid request body")
		return
	}

	game, err := ctrl.CreateGame(c.Request.Context(), actor(c), request.Name, request.PictureRef)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "game": game})
}

func ListGames(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	games, err := ctrl.ListGames(c.Request.Context(), models.GameStatus(c.Query("status")))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "games": games})
}

func GetGame(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	game, err := ctrl.GetGame(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "game": game})
}

// StartGame は参加受付を締め切りゲームを開始する
func StartGame(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	game, err := ctrl.StartGame(c.Request.Context(), gameID, actor(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "game": game})
}

// JoinGame はゲームへの参加。既に参加済みなら409と既存の参加情報を返す
func JoinGame(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	p, err := ctrl.Join(c.Request.Context(), gameID, a.UserID)
	respondJoin(c, logger, a, p, err)
}

// respondJoin は参加結果を書き出す。参加者が取れなかった場合はエラー応答のみ返す
func respondJoin(c *gin.Context, logger *zap.Logger, a models.Actor, p *models.Participant, err error) {
	if errors.Is(err, gameerr.ErrAlreadyJoined) && p != nil {
		c.JSON(http.StatusConflict, gin.H{
			"status":      gameerr.CodeOf(err),
			"error":       err.Error(),
			"participant": participantView(*p, a),
		})
		return
	}
	if err != nil || p == nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "participant": participantView(*p, a)})
}

func ListParticipants(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	filter := participants.Filter{LifeStatus: models.LifeStatus(c.Query("status"))}
	list, err := ctrl.ListParticipants(c.Request.Context(), gameID, a, filter)
	if err != nil {
		respondError(c, logger, err)
		return
	}

	views := make([]gin.H, 0, len(list))
	for _, p := range list {
		views = append(views, participantView(p, a))
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "participants": views})
}

// participantView は参加者情報を返す。他人のターゲットは管理者以外には見せない
func participantView(p models.Participant, a models.Actor) gin.H {
	view := gin.H{
		"userId":     p.UserID,
		"lifeStatus": p.LifeStatus,
		"joinedAt":   p.CreatedAt,
	}
	if p.DiedAt != nil {
		view["diedAt"] = p.DiedAt
	}
	if a.Admin || p.UserID == a.UserID {
		view["targetUserId"] = p.TargetUserID
	}
	return view
}

// MyTarget は自分の現在のターゲットを返す
func MyTarget(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, err := ctrl.MyTarget(c.Request.Context(), gameID, actor(c).UserID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "targetUserId": target})
}

// Ring は管理者向けにリングの順序を返す
func Ring(c *gin.Context, ctrl *lifecycle.Controller, logger *zap.Logger) {
	gameID, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := ctrl.Ring(c.Request.Context(), gameID, actor(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "ring": order})
}
