// internal/evolution/engine.go
package evolution

import (
	"math"
	"time"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
)

// 单次演化的调整步长
const (
	maxTraitStep    = 0.1  // 特质漂移的单次上限
	weightStep      = 0.1  // 决策权重的单次调整量
	styleStep       = 0.1  // 风格参数的单次调整量
	modalityBonus   = 0.05 // 通用场景下模态触发的微调量
	highNegative    = 0.3  // 消极反馈高水位
	lowNegative     = 0.1  // 消极反馈低水位
	studyFormalLow  = 0.3  // 学习场景正式程度区间下限
	studyFormalHigh = 0.7  // 学习场景正式程度区间上限
)

// Result 一次演化计算的输出
type Result struct {
	// Diff 是要合并进档案的完整稀疏更新，包含情绪反馈计数器
	Diff *models.ProfileDiff
	// Entry 是演化轨迹记录，计数器之外没有字段变化时为 nil
	Entry *models.EvolutionEntry
}

// Evolve 根据信号包计算档案的下一个状态。
// 纯函数：不修改传入的档案，不访问存储。
func Evolve(p *models.Profile, sig models.Signal, message string) (*Result, error) {
	if math.IsNaN(sig.AltruismScore) || sig.AltruismScore < 0 || sig.AltruismScore > 1 {
		return nil, apperrors.NewInvariantError("利他主义得分超出 [0,1] 范围", nil)
	}
	if !sig.Emotion.IsValid() {
		return nil, apperrors.NewInvariantError("未知的情绪类型: "+string(sig.Emotion), nil)
	}

	var traits models.TraitsDiff
	var style models.StyleDiff
	var weights models.WeightsDiff

	// 1. 特质漂移：向目标值靠近，单次变化不超过0.1
	oldAltruism := p.PersonalityTraits.Altruism
	if sig.AltruismScore != oldAltruism {
		delta := math.Min(maxTraitStep, math.Abs(sig.AltruismScore-oldAltruism))
		newAltruism := oldAltruism - delta
		if sig.AltruismScore > oldAltruism {
			newAltruism = oldAltruism + delta
		}
		newAltruism = models.Clamp01(newAltruism)
		if newAltruism != oldAltruism {
			traits.Altruism = &newAltruism
		}
	}

	// 2. 无条件递增情绪反馈计数器
	freq := p.PersonalityTraits.EmotionalFeedbackFrequency
	freq.Increment(sig.Emotion)
	traits.EmotionalFeedbackFrequency = &freq

	// 3. 消极反馈比例驱动决策权重，[0.1, 0.3] 为死区防止阈值附近震荡
	empathy := p.DecisionWeights.EmpathyPriority
	rules := p.DecisionWeights.RulesPriority
	switch direction(freq.NegativeRatio()) {
	case empathyFirst:
		setChanged(&weights.EmpathyPriority, empathy, models.Clamp01(empathy+weightStep))
		setChanged(&weights.RulesPriority, rules, models.Clamp01(rules-weightStep))
	case rulesFirst:
		setChanged(&weights.EmpathyPriority, empathy, models.Clamp01(empathy-weightStep))
		setChanged(&weights.RulesPriority, rules, models.Clamp01(rules+weightStep))
	}

	// 4. 场景驱动风格调整，每次调用只命中一个分支。
	// 模态加成只在通用场景生效，场景分支优先于模态加成。
	emoji := p.StyleParameters.EmojiDensity
	formality := p.StyleParameters.FormalityLevel
	complexity := p.StyleParameters.SentenceComplexity
	switch sig.Scenario {
	case models.ScenarioWork:
		setChanged(&style.EmojiDensity, emoji, models.Clamp01(emoji-styleStep))
		setChanged(&style.FormalityLevel, formality, models.Clamp01(formality+styleStep))
	case models.ScenarioLife:
		setChanged(&style.EmojiDensity, emoji, models.Clamp01(emoji+styleStep))
		setChanged(&style.FormalityLevel, formality, models.Clamp01(formality-styleStep))
	case models.ScenarioStudy:
		setChanged(&style.SentenceComplexity, complexity, models.Clamp01(complexity+styleStep))
		setChanged(&style.FormalityLevel, formality, math.Min(studyFormalHigh, math.Max(studyFormalLow, formality)))
	default:
		if sig.HasModality(models.ModalityImage) {
			setChanged(&style.EmojiDensity, emoji, models.Clamp01(emoji+modalityBonus))
		}
		if sig.HasModality(models.ModalityAudio) {
			current := empathy
			if weights.EmpathyPriority != nil {
				current = *weights.EmpathyPriority
			}
			next := models.Clamp01(current + modalityBonus)
			if next != empathy {
				weights.EmpathyPriority = &next
			}
		}
	}

	diff := assemble(traits, style, weights)

	// 演化轨迹只关心计数器之外的变化；
	// 单纯的计数器递增不算一次演化事件
	logTraits := traits
	logTraits.EmotionalFeedbackFrequency = nil
	logDiff := assemble(logTraits, style, weights)

	result := &Result{Diff: diff}
	if !logDiff.IsEmpty() {
		result.Entry = &models.EvolutionEntry{
			Timestamp: time.Now(),
			Trigger: models.EvolutionTrigger{
				Type:     "conversation",
				Message:  message,
				Emotion:  sig.Emotion,
				Scenario: sig.Scenario,
			},
			Changes: *logDiff,
		}
	}
	return result, nil
}

// 决策权重调整方向
type weightDirection int

const (
	noChange weightDirection = iota
	empathyFirst
	rulesFirst
)

// direction 消极反馈比例到权重调整方向的决策表
func direction(negativeRatio float64) weightDirection {
	switch {
	case negativeRatio > highNegative:
		return empathyFirst
	case negativeRatio < lowNegative:
		return rulesFirst
	default:
		return noChange
	}
}

// setChanged 仅当数值真的变化时记录到稀疏更新
func setChanged(dst **float64, old, next float64) {
	if next != old {
		*dst = &next
	}
}

// assemble 把三组字段装配为稀疏更新，整组为空时置 nil
func assemble(traits models.TraitsDiff, style models.StyleDiff, weights models.WeightsDiff) *models.ProfileDiff {
	diff := &models.ProfileDiff{}
	if traits.Altruism != nil || traits.RiskPreference != nil || traits.EmotionalFeedbackFrequency != nil {
		t := traits
		diff.PersonalityTraits = &t
	}
	if style.SentenceComplexity != nil || style.EmojiDensity != nil || style.FormalityLevel != nil || style.StyleType != nil {
		s := style
		diff.StyleParameters = &s
	}
	if weights.RulesPriority != nil || weights.EmpathyPriority != nil {
		w := weights
		diff.DecisionWeights = &w
	}
	return diff
}
