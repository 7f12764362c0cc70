// internal/models/personality_test.go
package models

import (
	"math"
	"testing"
)

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0, 0},
		{1, 1},
		{-0.2, 0},
		{1.7, 1},
		{math.NaN(), 0.5}, // NaN饱和为中性值
	}

	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestEmotionalFeedback(t *testing.T) {
	var f EmotionalFeedback

	if f.NegativeRatio() != 0 {
		t.Fatal("零反馈时消极比例应为0")
	}

	f.Increment(EmotionPositive)
	f.Increment(EmotionNegative)
	f.Increment(EmotionNegative)
	f.Increment(EmotionNeutral)

	if f.Total() != 4 {
		t.Fatalf("反馈总数应为4: %+v", f)
	}
	if f.NegativeRatio() != 0.5 {
		t.Fatalf("消极比例应为0.5，实际: %v", f.NegativeRatio())
	}

	// 未知情绪类型归入中性
	f.Increment("unknown")
	if f.Neutral != 2 {
		t.Fatalf("未知情绪应计入中性: %+v", f)
	}
}

func TestApplyDiffFieldMerge(t *testing.T) {
	p := NewProfile("role_a", "测试", "")

	altruism := 0.8
	emoji := 1.4 // 越界值应被截断
	style := StyleHumorous
	p.ApplyDiff(&ProfileDiff{
		PersonalityTraits: &TraitsDiff{Altruism: &altruism},
		StyleParameters:   &StyleDiff{EmojiDensity: &emoji, StyleType: &style},
	})

	if p.PersonalityTraits.Altruism != 0.8 {
		t.Errorf("利他主义应更新为0.8: %v", p.PersonalityTraits.Altruism)
	}
	if p.PersonalityTraits.RiskPreference != 0.5 {
		t.Errorf("未指定的字段不应变化: %v", p.PersonalityTraits.RiskPreference)
	}
	if p.StyleParameters.EmojiDensity != 1 {
		t.Errorf("越界值应截断到1: %v", p.StyleParameters.EmojiDensity)
	}
	if p.StyleParameters.StyleType != StyleHumorous {
		t.Errorf("风格类型应更新: %v", p.StyleParameters.StyleType)
	}
	if p.StyleParameters.FormalityLevel != 0.5 {
		t.Errorf("未指定的风格字段不应变化: %v", p.StyleParameters.FormalityLevel)
	}
}

func TestApplyDiffInvalidStyleIgnored(t *testing.T) {
	p := NewProfile("role_a", "测试", "")

	bad := StyleType("vaporwave")
	p.ApplyDiff(&ProfileDiff{
		StyleParameters: &StyleDiff{StyleType: &bad},
	})

	if p.StyleParameters.StyleType != StyleDefault {
		t.Fatalf("非法风格类型应被忽略: %v", p.StyleParameters.StyleType)
	}
}

func TestProfileDiffIsEmpty(t *testing.T) {
	var nilDiff *ProfileDiff
	if !nilDiff.IsEmpty() {
		t.Fatal("nil更新应为空")
	}
	if !(&ProfileDiff{PersonalityTraits: &TraitsDiff{}}).IsEmpty() {
		t.Fatal("没有字段的更新应为空")
	}

	v := 0.6
	if (&ProfileDiff{DecisionWeights: &WeightsDiff{RulesPriority: &v}}).IsEmpty() {
		t.Fatal("有字段的更新不应为空")
	}
}
