// internal/analyzer/extractor.go
package analyzer

import (
	"strings"

	"github.com/Corphon/PersonaEvolveMCP/internal/models"
)

// 价值观词汇库（中英双语）
var (
	altruismVocabulary = []string{
		"帮助", "支持", "分享", "捐赠", "志愿者", "关怀", "体谅", "慷慨", "奉献", "互助",
		"help", "support", "share", "donate", "volunteer", "care", "considerate", "generous", "dedicate", "mutual aid",
	}
	egoismVocabulary = []string{
		"我", "自己", "个人", "私利", "利益", "好处", "自私", "利己", "自我", "自身",
		"me", "myself", "personal", "selfish", "egoistic", "self-interest", "benefit", "advantage", "own", "self",
	}
)

// 情绪词汇库
var (
	positiveVocabulary = []string{
		"好", "开心", "高兴", "快乐", "满意", "幸福", "愉快", "喜悦", "兴奋", "愉悦",
		"good", "happy", "pleased", "joyful", "satisfied", "blessed", "delighted", "excited", "cheerful", "glad",
	}
	negativeVocabulary = []string{
		"不好", "难过", "悲伤", "痛苦", "生气", "愤怒", "失望", "沮丧", "郁闷", "烦躁",
		"bad", "sad", "sorrowful", "painful", "angry", "furious", "disappointed", "frustrated", "depressed", "upset",
	}
)

// 场景关键词库
// 切片顺序即平局优先级: work > life > study
var scenarioKeywords = []struct {
	Scenario models.ScenarioType
	Keywords []string
}{
	{models.ScenarioWork, []string{
		"工作", "上班", "公司", "项目", "任务", "会议", "报告", "同事", "领导", "客户",
		"work", "job", "company", "project", "task", "meeting", "report", "colleague", "leader", "client",
	}},
	{models.ScenarioLife, []string{
		"生活", "家庭", "朋友", "娱乐", "休闲", "旅行", "电影", "音乐", "美食", "运动",
		"life", "family", "friend", "entertainment", "leisure", "travel", "movie", "music", "food", "sports",
	}},
	{models.ScenarioStudy, []string{
		"学习", "学校", "学生", "老师", "作业", "考试", "课程", "知识", "教育", "培训",
		"study", "school", "student", "teacher", "homework", "exam", "course", "knowledge", "education", "training",
	}},
}

// countHits 统计词汇表中出现在文本里的词条数量。
// 每个词条最多计1次，大小写不敏感的子串匹配。
func countHits(text string, vocabulary []string) int {
	hits := 0
	for _, word := range vocabulary {
		if strings.Contains(text, strings.ToLower(word)) {
			hits++
		}
	}
	return hits
}

// ScoreValues 分析文本的价值观倾向，返回 [0,1] 的利他主义得分。
// 无任何命中时返回中性值0.5，避免无信号消息推动档案漂移。
func ScoreValues(text string) float64 {
	lower := strings.ToLower(text)

	altruismHits := countHits(lower, altruismVocabulary)
	egoismHits := countHits(lower, egoismVocabulary)

	total := altruismHits + egoismHits
	if total == 0 {
		return 0.5
	}
	return float64(altruismHits) / float64(total)
}

// ClassifyEmotion 分析文本情绪，平局（包括0-0）归为中性
func ClassifyEmotion(text string) models.EmotionType {
	lower := strings.ToLower(text)

	positiveHits := countHits(lower, positiveVocabulary)
	negativeHits := countHits(lower, negativeVocabulary)

	switch {
	case positiveHits > negativeHits:
		return models.EmotionPositive
	case negativeHits > positiveHits:
		return models.EmotionNegative
	default:
		return models.EmotionNeutral
	}
}

// ClassifyScenario 分析对话场景，取命中最多的场景。
// 平局按声明顺序取先者，全部为0时归为通用场景。
func ClassifyScenario(text string) models.ScenarioType {
	lower := strings.ToLower(text)

	maxHits := 0
	dominant := models.ScenarioGeneral
	for _, entry := range scenarioKeywords {
		hits := countHits(lower, entry.Keywords)
		if hits > maxHits {
			maxHits = hits
			dominant = entry.Scenario
		}
	}
	return dominant
}

// Extract 对一段文本执行完整的信号提取
func Extract(text string) models.Signal {
	return models.Signal{
		AltruismScore: ScoreValues(text),
		Emotion:       ClassifyEmotion(text),
		Scenario:      ClassifyScenario(text),
	}
}
