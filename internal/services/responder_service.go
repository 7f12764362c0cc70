// internal/services/responder_service.go
package services

import (
	"math"
	"math/rand"
	"strings"
)

// responseTemplate 一条响应模板的正式/口语两种变体
type responseTemplate struct {
	Formal string
	Casual string
}

// 响应模板库，数组顺序从最不正式到最正式
var responseTemplates = map[string][]responseTemplate{
	"greeting": {
		{Formal: "您好！有什么我可以帮助您的吗？", Casual: "嗨！有什么我能帮到你的吗？😊"},
		{Formal: "欢迎！请问您需要什么协助？", Casual: "欢迎！有什么事吗？😄"},
		{Formal: "您好！很高兴为您服务。", Casual: "你好呀！很高兴见到你～"},
	},
	"farewell": {
		{Formal: "感谢您的咨询，祝您工作愉快！", Casual: "谢谢你的咨询，祝你有个美好的一天！😊"},
		{Formal: "再见！期待下次为您服务。", Casual: "拜拜！下次见啦～😄"},
		{Formal: "感谢您的时间，祝您生活愉快！", Casual: "谢啦！祝你生活开心哦！"},
	},
	"thanks": {
		{Formal: "不客气，这是我应该做的。", Casual: "不客气啦！😊"},
		{Formal: "很高兴能帮到您。", Casual: "能帮到你真好！😄"},
		{Formal: "不用谢，这是我的荣幸。", Casual: "别客气，小事一桩～"},
	},
	"help": {
		{Formal: "我可以为您提供以下帮助：1. 回答问题；2. 提供信息；3. 协助解决问题。", Casual: "我可以帮你做这些哦：😉 1. 回答各种问题；2. 提供实用信息；3. 帮你解决小麻烦。"},
		{Formal: "请告诉我您需要什么帮助，我会尽力协助您。", Casual: "有什么需要我帮忙的吗？尽管说哦！😄"},
		{Formal: "您可以向我咨询任何问题，我会为您解答。", Casual: "想问什么都可以哦！我会尽力回答你的～"},
	},
}

var replyEmojis = []string{"😊", "😄", "😉", "👍", "❤️", "👏", "🎉", "✨", "🌟", "🔥"}

// ResponderService 根据人格档案快照生成风格化回复。
// 只读档案，不触发任何演化。
type ResponderService struct {
	profiles *ProfileService
}

// NewResponderService 创建响应服务
func NewResponderService(profiles *ProfileService) *ResponderService {
	return &ResponderService{profiles: profiles}
}

// GenerateReply 为用户当前角色生成风格化回复
func (s *ResponderService) GenerateReply(userID, message string) (string, error) {
	profile, err := s.profiles.GetProfile(userID, "")
	if err != nil {
		return "", err
	}
	if profile == nil {
		// 没有人格档案时退回默认回复
		return "您好！请告诉我您需要什么帮助。", nil
	}

	templates, ok := responseTemplates[determineResponseType(message)]
	if !ok {
		templates = responseTemplates["help"]
	}

	// 正式程度越高选越正式的模板
	index := int(math.Round(profile.StyleParameters.FormalityLevel * float64(len(templates)-1)))
	template := templates[index]

	response := template.Casual
	if profile.StyleParameters.SentenceComplexity > 0.5 {
		response = template.Formal
	}

	response = adjustEmojiDensity(response, profile.StyleParameters.EmojiDensity)

	// 决策权重决定结尾的倾向性
	if profile.DecisionWeights.RulesPriority > profile.DecisionWeights.EmpathyPriority {
		response += "\n\n根据相关规则，我会为您提供准确的信息和建议。"
	} else {
		response += "\n\n我理解您的情况，会尽力为您提供帮助和支持。"
	}

	// 价值观倾向决定附加内容
	switch {
	case profile.PersonalityTraits.Altruism > 0.7:
		response += "\n\n如果您有能力，不妨考虑帮助身边需要帮助的人，这会让世界变得更美好。"
	case profile.PersonalityTraits.Altruism < 0.3:
		response += "\n\n请确保您的决策符合自己的最佳利益，保护好自己的权益。"
	}

	return response, nil
}

// determineResponseType 根据消息内容确定响应类型
func determineResponseType(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "你好") || strings.Contains(lower, "您好") ||
		strings.Contains(lower, "hi") || strings.Contains(lower, "hello"):
		return "greeting"
	case strings.Contains(lower, "再见") || strings.Contains(lower, "拜拜") ||
		strings.Contains(lower, "bye"):
		return "farewell"
	case strings.Contains(lower, "谢谢") || strings.Contains(lower, "thank"):
		return "thanks"
	case strings.Contains(lower, "帮助") || strings.Contains(lower, "帮我") ||
		strings.Contains(lower, "help"):
		return "help"
	default:
		return "general"
	}
}

// adjustEmojiDensity 根据emoji密度调整回复：
// 低密度移除全部emoji，中等保持不变，高密度追加emoji
func adjustEmojiDensity(response string, density float64) string {
	switch {
	case density < 0.3:
		return stripEmoji(response)
	case density < 0.7:
		return response
	default:
		words := strings.Fields(response)
		for i := range words {
			if i%3 == 0 && i != 0 {
				words[i] += " " + replyEmojis[rand.Intn(len(replyEmojis))]
			}
		}
		return strings.Join(words, " ")
	}
}

// stripEmoji 移除常见emoji区段的字符
func stripEmoji(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isEmojiRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isEmojiRune 判断字符是否落在emoji区段
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // 符号、表情、交通工具等
		return true
	case r >= 0x2600 && r <= 0x27BF: // 杂项符号与装饰符号
		return true
	case r == 0xFE0F: // 变体选择符
		return true
	}
	return false
}
