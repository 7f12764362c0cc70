// internal/models/personality.go
package models

import (
	"math"
	"time"
)

// EmotionType 情绪类型
type EmotionType string

const (
	EmotionPositive EmotionType = "positive"
	EmotionNegative EmotionType = "negative"
	EmotionNeutral  EmotionType = "neutral"
)

// IsValid 检查情绪类型是否合法
func (e EmotionType) IsValid() bool {
	return e == EmotionPositive || e == EmotionNegative || e == EmotionNeutral
}

// ScenarioType 对话场景类型
type ScenarioType string

const (
	ScenarioWork    ScenarioType = "work"
	ScenarioLife    ScenarioType = "life"
	ScenarioStudy   ScenarioType = "study"
	ScenarioGeneral ScenarioType = "general"
)

// ModalityType 输入模态类型
type ModalityType string

const (
	ModalityText  ModalityType = "text"
	ModalityImage ModalityType = "image"
	ModalityAudio ModalityType = "audio"
)

// StyleType 表达风格类型
type StyleType string

const (
	StyleDefault    StyleType = "default"
	StyleAcademic   StyleType = "academic"
	StyleColloquial StyleType = "colloquial"
	StyleHumorous   StyleType = "humorous"
	StyleConcise    StyleType = "concise"
	StyleLiterary   StyleType = "literary"
)

// IsValid 检查风格类型是否合法
func (s StyleType) IsValid() bool {
	switch s {
	case StyleDefault, StyleAcademic, StyleColloquial, StyleHumorous, StyleConcise, StyleLiterary:
		return true
	}
	return false
}

// EmotionalFeedback 情绪反馈频率计数器，只增不减
type EmotionalFeedback struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total 反馈总次数
func (f EmotionalFeedback) Total() int {
	return f.Positive + f.Negative + f.Neutral
}

// NegativeRatio 消极反馈占比，总数为0时返回0
func (f EmotionalFeedback) NegativeRatio() float64 {
	total := f.Total()
	if total == 0 {
		return 0
	}
	return float64(f.Negative) / float64(total)
}

// Increment 根据情绪类型递增对应计数器
func (f *EmotionalFeedback) Increment(emotion EmotionType) {
	switch emotion {
	case EmotionPositive:
		f.Positive++
	case EmotionNegative:
		f.Negative++
	default:
		f.Neutral++
	}
}

// PersonalityTraits 人格特质参数
type PersonalityTraits struct {
	Altruism                   float64           `json:"altruism"`        // 利他主义倾向 (0-1)
	RiskPreference             float64           `json:"risk_preference"` // 风险偏好 (0-1)
	EmotionalFeedbackFrequency EmotionalFeedback `json:"emotional_feedback_frequency"`
}

// StyleParameters 表达风格参数
type StyleParameters struct {
	SentenceComplexity float64   `json:"sentence_complexity"` // 句式复杂度 (0-1)
	EmojiDensity       float64   `json:"emoji_density"`       // emoji使用密度 (0-1)
	FormalityLevel     float64   `json:"formality_level"`     // 正式程度 (0-1)
	StyleType          StyleType `json:"style_type"`
}

// DecisionWeights 决策权重，两个权重独立截断，不要求和为1
type DecisionWeights struct {
	RulesPriority   float64 `json:"rules_priority"`   // 规则优先权重 (0-1)
	EmpathyPriority float64 `json:"empathy_priority"` // 共情优先权重 (0-1)
}

// ConversationEntry 一条对话历史记录
type ConversationEntry struct {
	Timestamp   time.Time      `json:"timestamp"`
	UserMessage string         `json:"user_message"`
	AIResponse  string         `json:"ai_response"`
	Context     map[string]any `json:"context,omitempty"`
	RoleID      string         `json:"role_id,omitempty"`
}

// EvolutionTrigger 记录触发人格演化的因果事件
type EvolutionTrigger struct {
	Type     string       `json:"type"` // 目前只有 "conversation"
	Message  string       `json:"message"`
	Emotion  EmotionType  `json:"emotion"`
	Scenario ScenarioType `json:"scenario"`
}

// EvolutionEntry 一条人格演化轨迹记录，Changes 只包含实际变化的字段
type EvolutionEntry struct {
	Timestamp time.Time        `json:"timestamp"`
	Trigger   EvolutionTrigger `json:"trigger"`
	Changes   ProfileDiff      `json:"changes"`
}

// 历史记录长度上限
const (
	MaxConversationHistory = 100
	MaxEvolutionHistory    = 50
)

// Profile 单个 (用户, 角色) 的人格档案
type Profile struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	PersonalityTraits   PersonalityTraits   `json:"personality_traits"`
	StyleParameters     StyleParameters     `json:"style_parameters"`
	DecisionWeights     DecisionWeights     `json:"decision_weights"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	EvolutionHistory    []EvolutionEntry    `json:"evolution_history"`
}

// UserRecord 一个用户的完整记录，包含其所有角色档案
// 不变式: CurrentRoleID 要么为空（Roles 为空时），要么是 Roles 中存在的键
type UserRecord struct {
	ID            string              `json:"id"`
	CurrentRoleID string              `json:"current_role_id,omitempty"`
	Roles         map[string]*Profile `json:"roles"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewProfile 创建一个新的人格档案，所有浮点参数以0.5为中性初值
func NewProfile(id, name, description string) *Profile {
	now := time.Now()
	return &Profile{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		PersonalityTraits: PersonalityTraits{
			Altruism:       0.5,
			RiskPreference: 0.5,
		},
		StyleParameters: StyleParameters{
			SentenceComplexity: 0.5,
			EmojiDensity:       0.5,
			FormalityLevel:     0.5,
			StyleType:          StyleDefault,
		},
		DecisionWeights: DecisionWeights{
			RulesPriority:   0.5,
			EmpathyPriority: 0.5,
		},
		ConversationHistory: []ConversationEntry{},
		EvolutionHistory:    []EvolutionEntry{},
	}
}

// NewUserRecord 创建一个没有任何角色的用户记录
func NewUserRecord(userID string) *UserRecord {
	now := time.Now()
	return &UserRecord{
		ID:        userID,
		Roles:     make(map[string]*Profile),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clamp01 把数值截断到 [0,1]，NaN 饱和为中性值0.5，避免污染持久化数据
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
