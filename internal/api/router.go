// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaEvolveMCP/internal/config"
	"github.com/Corphon/PersonaEvolveMCP/internal/di"
	"github.com/Corphon/PersonaEvolveMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter(cfg *config.Config) (*gin.Engine, error) {
	// 只从容器获取服务，不再创建新实例
	container := di.GetContainer()

	personalityService, ok := container.Get("personality").(*services.PersonalityService)
	if !ok {
		return nil, fmt.Errorf("人格演化服务未正确初始化")
	}

	profileService, ok := container.Get("profile").(*services.ProfileService)
	if !ok {
		return nil, fmt.Errorf("档案服务未正确初始化")
	}

	responderService, ok := container.Get("responder").(*services.ResponderService)
	if !ok {
		return nil, fmt.Errorf("响应服务未正确初始化")
	}

	// 演化事件推送中心，接到演化服务的通知回调上
	hub := NewEvolutionHub()
	personalityService.SetNotifier(hub)

	handler := NewHandler(personalityService, profileService, responderService, hub)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 人格档案接口
	personality := r.Group("/api/personality/:user_id")
	{
		personality.GET("", handler.GetProfile)
		personality.DELETE("", handler.DeleteUser)
		personality.POST("/evolve", handler.EvolvePersonality)
		personality.GET("/evolution", handler.GetEvolutionHistory)
		personality.GET("/conversations", handler.GetConversations)
		personality.POST("/conversations", handler.AppendConversation)
		personality.POST("/reply", handler.GenerateReply)

		personality.POST("/roles", handler.CreateRole)
		personality.GET("/roles", handler.ListRoles)
		personality.PUT("/roles/:role_id/activate", handler.SwitchRole)
		personality.DELETE("/roles/:role_id", handler.DeleteRole)
	}

	// 演化事件订阅
	r.GET("/ws/personality/:user_id", handler.PersonalityWebSocket)

	return r, nil
}

// corsMiddleware 跨域支持
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
