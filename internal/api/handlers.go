// internal/api/handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaEvolveMCP/internal/models"
	"github.com/Corphon/PersonaEvolveMCP/internal/services"
)

// Handler API处理器
type Handler struct {
	personality *services.PersonalityService
	profiles    *services.ProfileService
	responder   *services.ResponderService
	hub         *EvolutionHub
	resp        *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	personality *services.PersonalityService,
	profiles *services.ProfileService,
	responder *services.ResponderService,
	hub *EvolutionHub,
) *Handler {
	return &Handler{
		personality: personality,
		profiles:    profiles,
		responder:   responder,
		hub:         hub,
		resp:        NewResponseHelper(),
	}
}

// EvolveRequest 人格演化请求
type EvolveRequest struct {
	Message     string                    `json:"message" binding:"required"`
	RoleID      string                    `json:"role_id"`
	ContextType string                    `json:"context_type"` // text/image/audio
	ContextText string                    `json:"context_text"`
	Sentiment   *models.ExternalSentiment `json:"sentiment"`
}

// CreateRoleRequest 创建角色请求
type CreateRoleRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Overrides   *models.ProfileDiff `json:"overrides"`
}

// AppendConversationRequest 记录对话请求
type AppendConversationRequest struct {
	UserMessage string         `json:"user_message" binding:"required"`
	AIResponse  string         `json:"ai_response"`
	Context     map[string]any `json:"context"`
	RoleID      string         `json:"role_id"`
}

// ReplyRequest 风格化回复请求
type ReplyRequest struct {
	Message string `json:"message" binding:"required"`
}

// EvolvePersonality 处理一条消息并推进人格档案
// POST /api/personality/:user_id/evolve
func (h *Handler) EvolvePersonality(c *gin.Context) {
	var req EvolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	profile, err := h.personality.Evolve(services.EvolveRequest{
		UserID:      c.Param("user_id"),
		RoleID:      req.RoleID,
		Message:     req.Message,
		ContextType: models.ModalityType(req.ContextType),
		ContextText: req.ContextText,
		Sentiment:   req.Sentiment,
	})
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}

	h.resp.Success(c, profile)
}

// GetProfile 获取人格档案
// GET /api/personality/:user_id?role_id=
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Param("user_id"), c.Query("role_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if profile == nil {
		h.resp.NotFound(c, "人格档案不存在")
		return
	}

	h.resp.Success(c, profile)
}

// GetEvolutionHistory 获取角色的演化轨迹
// GET /api/personality/:user_id/evolution?role_id=
func (h *Handler) GetEvolutionHistory(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Param("user_id"), c.Query("role_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if profile == nil {
		h.resp.NotFound(c, "人格档案不存在")
		return
	}

	h.resp.Success(c, gin.H{
		"role_id":           profile.ID,
		"evolution_history": profile.EvolutionHistory,
	})
}

// GetConversations 获取对话历史（所有角色共享）
// GET /api/personality/:user_id/conversations
func (h *Handler) GetConversations(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Param("user_id"), c.Query("role_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if profile == nil {
		h.resp.NotFound(c, "人格档案不存在")
		return
	}

	h.resp.Success(c, gin.H{
		"conversation_history": profile.ConversationHistory,
	})
}

// AppendConversation 记录一轮对话
// POST /api/personality/:user_id/conversations
func (h *Handler) AppendConversation(c *gin.Context) {
	var req AppendConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	err := h.personality.RecordConversation(
		c.Param("user_id"), req.UserMessage, req.AIResponse, req.Context, req.RoleID)
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}

	h.resp.Success(c, nil, "对话已记录")
}

// CreateRole 创建角色
// POST /api/personality/:user_id/roles
func (h *Handler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	profile, err := h.profiles.CreateRole(c.Param("user_id"), req.Name, req.Description, req.Overrides)
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}

	h.resp.Created(c, profile)
}

// ListRoles 列出用户所有角色
// GET /api/personality/:user_id/roles
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.profiles.ListRoles(c.Param("user_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}

	h.resp.Success(c, gin.H{"roles": roles})
}

// SwitchRole 切换当前角色
// PUT /api/personality/:user_id/roles/:role_id/activate
func (h *Handler) SwitchRole(c *gin.Context) {
	ok, err := h.profiles.SwitchRole(c.Param("user_id"), c.Param("role_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if !ok {
		h.resp.NotFound(c, "角色不存在")
		return
	}

	h.resp.Success(c, nil, "角色已切换")
}

// DeleteRole 删除角色
// DELETE /api/personality/:user_id/roles/:role_id
func (h *Handler) DeleteRole(c *gin.Context) {
	ok, err := h.profiles.DeleteRole(c.Param("user_id"), c.Param("role_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if !ok {
		h.resp.NotFound(c, "角色不存在")
		return
	}

	h.resp.Success(c, nil, "角色已删除")
}

// DeleteUser 删除用户的全部人格数据
// DELETE /api/personality/:user_id
func (h *Handler) DeleteUser(c *gin.Context) {
	ok, err := h.profiles.DeleteUser(c.Param("user_id"))
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}
	if !ok {
		h.resp.NotFound(c, "用户数据不存在")
		return
	}

	h.resp.Success(c, nil, "用户数据已删除")
}

// GenerateReply 生成风格化回复（只读，不触发演化）
// POST /api/personality/:user_id/reply
func (h *Handler) GenerateReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	reply, err := h.responder.GenerateReply(c.Param("user_id"), req.Message)
	if err != nil {
		h.resp.HandleServiceError(c, err)
		return
	}

	h.resp.Success(c, gin.H{"reply": reply})
}

// PersonalityWebSocket 订阅人格演化事件流
// GET /ws/personality/:user_id
func (h *Handler) PersonalityWebSocket(c *gin.Context) {
	h.hub.HandleConnection(c)
}
