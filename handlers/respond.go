package handlers

import (
	"net/http"
	"strconv"

	"assassinserver/internal/gameerr"
	"assassinserver/middlewares"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// エラー種別とHTTPステータスの対応
var statusByKind = map[gameerr.Kind]int{
	gameerr.KindPrecondition:  http.StatusUnprocessableEntity,
	gameerr.KindValidation:    http.StatusBadRequest,
	gameerr.KindConflict:      http.StatusConflict,
	gameerr.KindAuthorization: http.StatusForbidden,
	gameerr.KindNotFound:      http.StatusNotFound,
}

// respondError はゲームエラーをレスポンスに変換する。整合性違反と基盤エラーの詳細は返さない
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, ok := statusByKind[gameerr.KindOf(err)]
	if !ok {
		logger.Error("internal error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "internal_error",
			"error":  "内部エラーが発生しました",
		})
		return
	}
	c.JSON(status, gin.H{
		"status": gameerr.CodeOf(err),
		"error":  err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_request", "error": msg})
}

// paramID はパスパラメータを正のIDとして読む
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryID は任意のクエリパラメータをIDとして読む。未指定なら0
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func actor(c *gin.Context) models.Actor {
	a, _ := middlewares.ActorFromContext(c)
	return a
}
