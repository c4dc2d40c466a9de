package public

import (
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, handlershared.ContextUserIDKey)
}

// getActor 鉴权中间件写入的身份，角色原样信任
func getActor(c *gin.Context) (service.Actor, bool) {
	uid, ok := getUserID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{
		ID:   uid,
		Role: handlershared.GetContextString(c, handlershared.ContextUserRoleKey),
	}, true
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}
