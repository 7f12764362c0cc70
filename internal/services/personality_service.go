// internal/services/personality_service.go
package services

import (
	"sync"

	"github.com/Corphon/PersonaEvolveMCP/internal/analyzer"
	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/evolution"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
	"github.com/Corphon/PersonaEvolveMCP/internal/utils"
)

// EvolutionNotifier 接收已提交的演化事件（如WebSocket推送）。
// 实现方不得阻塞调用。
type EvolutionNotifier interface {
	NotifyEvolution(userID, roleID string, entry *models.EvolutionEntry)
}

// EvolveRequest 一次人格演化调用的输入
type EvolveRequest struct {
	UserID  string
	RoleID  string // 为空时使用当前角色，没有角色时懒创建默认角色
	Message string

	// 协作方提供的多模态上下文：
	// ContextType 标记本次输入的模态，ContextText 是OCR/语音转写出的文本
	ContextType models.ModalityType
	ContextText string

	// 外部情绪分析结果，提供时覆盖本次的词法情绪分类
	Sentiment *models.ExternalSentiment
}

// PersonalityService 人格演化的编排器：
// 提取信号 → 读取档案 → 计算演化 → 持久化 → 返回新档案。
// 通过用户级互斥锁保证同一用户同时只有一次演化在进行。
type PersonalityService struct {
	profiles *ProfileService
	notifier EvolutionNotifier

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewPersonalityService 创建人格演化服务
func NewPersonalityService(profiles *ProfileService) *PersonalityService {
	return &PersonalityService{profiles: profiles}
}

// SetNotifier 注册演化事件通知器
func (s *PersonalityService) SetNotifier(n EvolutionNotifier) {
	s.notifier = n
}

// userLock 获取用户级互斥锁
func (s *PersonalityService) userLock(userID string) *sync.Mutex {
	value, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// Evolve 处理一条用户消息并推进人格档案。
// 数据流严格单向：文本 → 信号 → (旧档案) → 新档案 → 存储。
func (s *PersonalityService) Evolve(req EvolveRequest) (*models.Profile, error) {
	if req.Message == "" {
		return nil, apperrors.NewValidationError("消息不能为空", nil)
	}
	if req.Sentiment != nil && !req.Sentiment.Sentiment.IsValid() {
		return nil, apperrors.NewValidationError("未知的外部情绪类型: "+string(req.Sentiment.Sentiment), nil)
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	// 1. 解析目标角色
	roleID := req.RoleID
	if roleID == "" {
		resolved, err := s.profiles.ResolveActiveRole(req.UserID)
		if err != nil {
			return nil, err
		}
		roleID = resolved
	}

	profile, err := s.profiles.GetProfile(req.UserID, roleID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		// 显式指定了未知角色：演化时懒创建，
		// 信号计算基于同样的中性初值档案
		profile = models.NewProfile(roleID, roleID, "")
	}

	// 2. 合并所有模态的文本后提取信号
	allText := req.Message
	if req.ContextText != "" {
		allText += "\n" + req.ContextText
	}
	sig := analyzer.Extract(allText)
	sig.Modalities = map[models.ModalityType]bool{models.ModalityText: true}
	if req.ContextType == models.ModalityImage || req.ContextType == models.ModalityAudio {
		sig.Modalities[req.ContextType] = true
	}

	// 3. 外部情绪信号覆盖词法分类
	if req.Sentiment != nil {
		sig.Emotion = req.Sentiment.Sentiment
	}

	// 4. 计算演化
	result, err := evolution.Evolve(profile, sig, req.Message)
	if err != nil {
		return nil, err
	}

	// 5. 持久化：先合并更新，再记录演化轨迹
	updated, err := s.profiles.ApplyEvolution(req.UserID, roleID, result.Diff)
	if err != nil {
		return nil, err
	}

	if result.Entry != nil {
		if err := s.profiles.AppendEvolution(req.UserID, roleID, *result.Entry); err != nil {
			return nil, err
		}
		utils.GetLogger().Info("人格演化已提交", map[string]interface{}{
			"user_id":  req.UserID,
			"role_id":  roleID,
			"emotion":  sig.Emotion,
			"scenario": sig.Scenario,
		})
		if s.notifier != nil {
			s.notifier.NotifyEvolution(req.UserID, roleID, result.Entry)
		}
		// 返回包含最新轨迹的档案快照
		if refreshed, err := s.profiles.GetProfile(req.UserID, roleID); err == nil && refreshed != nil {
			updated = refreshed
		}
	}

	return updated, nil
}

// RecordConversation 记录一轮对话，共享给该用户的所有角色
func (s *PersonalityService) RecordConversation(userID, userMessage, aiResponse string, context map[string]any, roleID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.profiles.AppendConversation(userID, models.ConversationEntry{
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Context:     context,
		RoleID:      roleID,
	})
}
