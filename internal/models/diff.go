// internal/models/diff.go
package models

import "time"

// TraitsDiff 人格特质的稀疏更新
type TraitsDiff struct {
	Altruism                   *float64           `json:"altruism,omitempty"`
	RiskPreference             *float64           `json:"risk_preference,omitempty"`
	EmotionalFeedbackFrequency *EmotionalFeedback `json:"emotional_feedback_frequency,omitempty"`
}

// StyleDiff 表达风格的稀疏更新
type StyleDiff struct {
	SentenceComplexity *float64   `json:"sentence_complexity,omitempty"`
	EmojiDensity       *float64   `json:"emoji_density,omitempty"`
	FormalityLevel     *float64   `json:"formality_level,omitempty"`
	StyleType          *StyleType `json:"style_type,omitempty"`
}

// WeightsDiff 决策权重的稀疏更新
type WeightsDiff struct {
	RulesPriority   *float64 `json:"rules_priority,omitempty"`
	EmpathyPriority *float64 `json:"empathy_priority,omitempty"`
}

// ProfileDiff 人格档案的稀疏更新，nil 字段表示该组无变化。
// 合并时按字段覆盖，不会整组替换嵌套对象。
type ProfileDiff struct {
	PersonalityTraits *TraitsDiff  `json:"personality_traits,omitempty"`
	StyleParameters   *StyleDiff   `json:"style_parameters,omitempty"`
	DecisionWeights   *WeightsDiff `json:"decision_weights,omitempty"`
}

// IsEmpty 判断是否没有任何字段变化
func (d *ProfileDiff) IsEmpty() bool {
	if d == nil {
		return true
	}
	if t := d.PersonalityTraits; t != nil {
		if t.Altruism != nil || t.RiskPreference != nil || t.EmotionalFeedbackFrequency != nil {
			return false
		}
	}
	if s := d.StyleParameters; s != nil {
		if s.SentenceComplexity != nil || s.EmojiDensity != nil || s.FormalityLevel != nil || s.StyleType != nil {
			return false
		}
	}
	if w := d.DecisionWeights; w != nil {
		if w.RulesPriority != nil || w.EmpathyPriority != nil {
			return false
		}
	}
	return true
}

// ApplyDiff 把稀疏更新合并进档案，逐字段覆盖并截断到合法范围
func (p *Profile) ApplyDiff(d *ProfileDiff) {
	if d == nil {
		return
	}
	if t := d.PersonalityTraits; t != nil {
		if t.Altruism != nil {
			p.PersonalityTraits.Altruism = Clamp01(*t.Altruism)
		}
		if t.RiskPreference != nil {
			p.PersonalityTraits.RiskPreference = Clamp01(*t.RiskPreference)
		}
		if t.EmotionalFeedbackFrequency != nil {
			p.PersonalityTraits.EmotionalFeedbackFrequency = *t.EmotionalFeedbackFrequency
		}
	}
	if s := d.StyleParameters; s != nil {
		if s.SentenceComplexity != nil {
			p.StyleParameters.SentenceComplexity = Clamp01(*s.SentenceComplexity)
		}
		if s.EmojiDensity != nil {
			p.StyleParameters.EmojiDensity = Clamp01(*s.EmojiDensity)
		}
		if s.FormalityLevel != nil {
			p.StyleParameters.FormalityLevel = Clamp01(*s.FormalityLevel)
		}
		if s.StyleType != nil && s.StyleType.IsValid() {
			p.StyleParameters.StyleType = *s.StyleType
		}
	}
	if w := d.DecisionWeights; w != nil {
		if w.RulesPriority != nil {
			p.DecisionWeights.RulesPriority = Clamp01(*w.RulesPriority)
		}
		if w.EmpathyPriority != nil {
			p.DecisionWeights.EmpathyPriority = Clamp01(*w.EmpathyPriority)
		}
	}
	p.UpdatedAt = time.Now()
}

// Signal 从单条消息提取出的信号包
type Signal struct {
	AltruismScore float64               `json:"altruism_score"`
	Emotion       EmotionType           `json:"emotion"`
	Scenario      ScenarioType          `json:"scenario"`
	Modalities    map[ModalityType]bool `json:"modalities,omitempty"`
}

// HasModality 判断信号中是否出现指定模态
func (s Signal) HasModality(m ModalityType) bool {
	return s.Modalities != nil && s.Modalities[m]
}

// ExternalSentiment 外部协作方（如语音情绪分析）提供的情绪信号
type ExternalSentiment struct {
	Sentiment  EmotionType `json:"sentiment"`
	Confidence float64     `json:"confidence"`
}
