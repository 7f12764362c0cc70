// internal/services/personality_service_test.go
package services

import (
	"fmt"
	"math"
	"testing"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
	"github.com/Corphon/PersonaEvolveMCP/internal/storage"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}

// setupPersonalityService 创建基于临时目录的完整服务栈
func setupPersonalityService(t *testing.T) (*PersonalityService, *ProfileService) {
	t.Helper()

	store, err := storage.NewFileRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	profiles := NewProfileService(store)
	return NewPersonalityService(profiles), profiles
}

// captureNotifier 记录收到的演化事件
type captureNotifier struct {
	userIDs []string
	roleIDs []string
	entries []*models.EvolutionEntry
}

func (c *captureNotifier) NotifyEvolution(userID, roleID string, entry *models.EvolutionEntry) {
	c.userIDs = append(c.userIDs, userID)
	c.roleIDs = append(c.roleIDs, roleID)
	c.entries = append(c.entries, entry)
}

func TestEvolveAltruisticMessage(t *testing.T) {
	s, _ := setupPersonalityService(t)

	profile, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		Message: "我喜欢帮助志愿者分享",
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	// 得分 3/4=0.75 > 0.5，单次漂移上限0.1
	if profile.PersonalityTraits.Altruism != 0.6 {
		t.Errorf("利他主义应漂移到0.6，实际: %v", profile.PersonalityTraits.Altruism)
	}
	// 中性情绪，消极比例0 < 0.1 → 规则优先
	if profile.DecisionWeights.RulesPriority != 0.6 || profile.DecisionWeights.EmpathyPriority != 0.4 {
		t.Errorf("低消极比例应转向规则优先，实际: rules=%v empathy=%v",
			profile.DecisionWeights.RulesPriority, profile.DecisionWeights.EmpathyPriority)
	}
	if profile.PersonalityTraits.EmotionalFeedbackFrequency.Neutral != 1 {
		t.Errorf("中性计数器应为1: %+v", profile.PersonalityTraits.EmotionalFeedbackFrequency)
	}
	if len(profile.EvolutionHistory) != 1 {
		t.Fatalf("应记录1条演化轨迹，实际: %d", len(profile.EvolutionHistory))
	}
	if profile.EvolutionHistory[0].Trigger.Message != "我喜欢帮助志愿者分享" {
		t.Error("演化轨迹应记录触发消息")
	}
}

func TestEvolveRepeatedNegativeFeedback(t *testing.T) {
	s, _ := setupPersonalityService(t)

	var profile *models.Profile
	var err error
	for i := 0; i < 4; i++ {
		profile, err = s.Evolve(EvolveRequest{
			UserID:  "u1",
			Message: "今天很难过",
		})
		if err != nil {
			t.Fatalf("第%d次演化失败: %v", i+1, err)
		}
	}

	freq := profile.PersonalityTraits.EmotionalFeedbackFrequency
	if freq.Negative != 4 {
		t.Fatalf("消极计数器应为4: %+v", freq)
	}
	// 每次消极比例都 > 0.3，共情权重连升4次
	if !almostEqual(profile.DecisionWeights.EmpathyPriority, 0.9) {
		t.Errorf("共情权重应累积到0.9，实际: %v", profile.DecisionWeights.EmpathyPriority)
	}
	if !almostEqual(profile.DecisionWeights.RulesPriority, 0.1) {
		t.Errorf("规则权重应累积到0.1，实际: %v", profile.DecisionWeights.RulesPriority)
	}
}

func TestEvolveDeadZoneNoEntry(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	role, err := profiles.CreateRole("u1", "测试", "", nil)
	if err != nil {
		t.Fatalf("创建角色失败: %v", err)
	}
	// 预置计数器使下一次调用落入死区: 5/(5+1+0)... 实际 1/6 ∈ [0.1,0.3]
	if _, err := profiles.ApplyEvolution("u1", role.ID, &models.ProfileDiff{
		PersonalityTraits: &models.TraitsDiff{
			EmotionalFeedbackFrequency: &models.EmotionalFeedback{Neutral: 4, Negative: 1},
		},
	}); err != nil {
		t.Fatalf("预置计数器失败: %v", err)
	}

	profile, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		RoleID:  role.ID,
		Message: "随便聊聊",
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	// 无信号消息：特质、权重、风格都不变，但计数器照常递增
	if profile.PersonalityTraits.Altruism != 0.5 {
		t.Errorf("无信号消息不应漂移特质: %v", profile.PersonalityTraits.Altruism)
	}
	if profile.DecisionWeights.RulesPriority != 0.5 || profile.DecisionWeights.EmpathyPriority != 0.5 {
		t.Errorf("死区内权重不应变化: %+v", profile.DecisionWeights)
	}
	freq := profile.PersonalityTraits.EmotionalFeedbackFrequency
	if freq.Neutral != 5 || freq.Negative != 1 {
		t.Errorf("计数器应照常递增: %+v", freq)
	}
	if len(profile.EvolutionHistory) != 0 {
		t.Fatal("只有计数器变化时不应产生演化轨迹")
	}
}

func TestEvolveExternalSentimentOverride(t *testing.T) {
	s, _ := setupPersonalityService(t)

	// 文本情绪中性，但外部情绪信号判定为消极
	profile, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		Message: "随便聊聊",
		Sentiment: &models.ExternalSentiment{
			Sentiment:  models.EmotionNegative,
			Confidence: 0.92,
		},
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	freq := profile.PersonalityTraits.EmotionalFeedbackFrequency
	if freq.Negative != 1 || freq.Neutral != 0 {
		t.Fatalf("外部情绪应覆盖词法分类: %+v", freq)
	}
	// 消极比例 1/1 > 0.3 → 共情优先
	if profile.DecisionWeights.EmpathyPriority != 0.6 {
		t.Errorf("共情权重应升到0.6，实际: %v", profile.DecisionWeights.EmpathyPriority)
	}
}

func TestEvolveInvalidSentimentRejected(t *testing.T) {
	s, _ := setupPersonalityService(t)

	_, err := s.Evolve(EvolveRequest{
		UserID:    "u1",
		Message:   "你好",
		Sentiment: &models.ExternalSentiment{Sentiment: "ecstatic"},
	})
	if !apperrors.IsValidationError(err) {
		t.Fatalf("非法情绪类型应触发验证错误，实际: %v", err)
	}
}

func TestEvolveEmptyMessageRejected(t *testing.T) {
	s, _ := setupPersonalityService(t)

	if _, err := s.Evolve(EvolveRequest{UserID: "u1"}); !apperrors.IsValidationError(err) {
		t.Fatal("空消息应触发验证错误")
	}
}

func TestEvolveLazyDefaultRole(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	profile, err := s.Evolve(EvolveRequest{
		UserID:  "fresh",
		Message: "帮助别人",
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}
	if profile.Name != DefaultRoleName {
		t.Fatalf("无角色用户应懒创建默认角色，实际: %s", profile.Name)
	}

	// 后续调用继续使用同一角色
	current, _ := profiles.GetProfile("fresh", "")
	if current == nil || current.ID != profile.ID {
		t.Fatal("懒创建的默认角色应成为当前角色")
	}
}

func TestEvolveExplicitUnknownRole(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	profile, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		RoleID:  "role_ghost",
		Message: "帮助别人",
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}
	if profile.ID != "role_ghost" {
		t.Fatalf("显式指定的未知角色应被懒创建: %s", profile.ID)
	}
	if profile.PersonalityTraits.Altruism != 0.6 {
		t.Errorf("懒创建的角色应从中性初值开始漂移: %v", profile.PersonalityTraits.Altruism)
	}

	stored, _ := profiles.GetProfile("u1", "role_ghost")
	if stored == nil {
		t.Fatal("懒创建的角色应被持久化")
	}
}

func TestEvolveRoleIsolation(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	coach, _ := profiles.CreateRole("u1", "教练", "", nil)
	friend, _ := profiles.CreateRole("u1", "朋友", "", nil)

	if _, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		RoleID:  coach.ID,
		Message: "今天很难过",
	}); err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	// 另一个角色的权重与计数器不受影响
	other, _ := profiles.GetProfile("u1", friend.ID)
	if other.DecisionWeights.EmpathyPriority != 0.5 {
		t.Errorf("未参与对话的角色不应演化: %v", other.DecisionWeights.EmpathyPriority)
	}
	if other.PersonalityTraits.EmotionalFeedbackFrequency.Total() != 0 {
		t.Errorf("未参与对话的角色计数器不应递增: %+v",
			other.PersonalityTraits.EmotionalFeedbackFrequency)
	}
	if len(other.EvolutionHistory) != 0 {
		t.Error("演化轨迹应只写入目标角色")
	}
}

func TestEvolveAudioModalityBonus(t *testing.T) {
	s, _ := setupPersonalityService(t)

	profile, err := s.Evolve(EvolveRequest{
		UserID:      "u1",
		Message:     "随便聊聊",
		ContextType: models.ModalityAudio,
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	// 通用场景：先规则优先调整(0.5-0.1)，再叠加语音共情加成(+0.05)
	if !almostEqual(profile.DecisionWeights.EmpathyPriority, 0.45) {
		t.Errorf("共情权重应为0.45，实际: %v", profile.DecisionWeights.EmpathyPriority)
	}
}

func TestEvolveContextTextDrivesScenario(t *testing.T) {
	s, _ := setupPersonalityService(t)

	// 消息本身无场景信号，OCR文本命中工作场景；
	// 工作分支优先，图片模态不再触发emoji加成
	profile, err := s.Evolve(EvolveRequest{
		UserID:      "u1",
		Message:     "你看这个",
		ContextType: models.ModalityImage,
		ContextText: "项目会议的报告",
	})
	if err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	if profile.StyleParameters.EmojiDensity != 0.4 {
		t.Errorf("工作场景emoji密度应降到0.4，实际: %v", profile.StyleParameters.EmojiDensity)
	}
	if profile.StyleParameters.FormalityLevel != 0.6 {
		t.Errorf("工作场景正式程度应升到0.6，实际: %v", profile.StyleParameters.FormalityLevel)
	}
	if len(profile.EvolutionHistory) != 1 {
		t.Fatalf("应记录1条演化轨迹，实际: %d", len(profile.EvolutionHistory))
	}
	if profile.EvolutionHistory[0].Trigger.Scenario != models.ScenarioWork {
		t.Errorf("轨迹应记录work场景，实际: %v", profile.EvolutionHistory[0].Trigger.Scenario)
	}
}

func TestEvolveNotifierReceivesEntry(t *testing.T) {
	s, _ := setupPersonalityService(t)

	notifier := &captureNotifier{}
	s.SetNotifier(notifier)

	if _, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		Message: "帮助别人很开心",
	}); err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	if len(notifier.entries) != 1 {
		t.Fatalf("通知器应收到1个事件，实际: %d", len(notifier.entries))
	}
	if notifier.userIDs[0] != "u1" {
		t.Errorf("事件用户ID不符: %s", notifier.userIDs[0])
	}
	if notifier.entries[0].Trigger.Emotion != models.EmotionPositive {
		t.Errorf("事件应携带触发情绪: %v", notifier.entries[0].Trigger.Emotion)
	}
}

func TestEvolveNoEntryNoNotification(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	notifier := &captureNotifier{}
	s.SetNotifier(notifier)

	role, _ := profiles.CreateRole("u1", "测试", "", nil)
	if _, err := profiles.ApplyEvolution("u1", role.ID, &models.ProfileDiff{
		PersonalityTraits: &models.TraitsDiff{
			EmotionalFeedbackFrequency: &models.EmotionalFeedback{Neutral: 4, Negative: 1},
		},
	}); err != nil {
		t.Fatalf("预置计数器失败: %v", err)
	}

	if _, err := s.Evolve(EvolveRequest{
		UserID:  "u1",
		RoleID:  role.ID,
		Message: "随便聊聊",
	}); err != nil {
		t.Fatalf("演化失败: %v", err)
	}

	if len(notifier.entries) != 0 {
		t.Fatal("没有演化事件时不应触发通知")
	}
}

func TestRecordConversationSharedMemory(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	coach, _ := profiles.CreateRole("u1", "教练", "", nil)
	friend, _ := profiles.CreateRole("u1", "朋友", "", nil)

	err := s.RecordConversation("u1", "你好", "你好！有什么可以帮你？", nil, coach.ID)
	if err != nil {
		t.Fatalf("记录对话失败: %v", err)
	}

	for _, roleID := range []string{coach.ID, friend.ID} {
		profile, _ := profiles.GetProfile("u1", roleID)
		if len(profile.ConversationHistory) != 1 {
			t.Fatalf("角色 %s 应收到共享的对话记录", roleID)
		}
	}
}

func TestEvolveConcurrentSameUser(t *testing.T) {
	s, profiles := setupPersonalityService(t)

	role, _ := profiles.CreateRole("u1", "测试", "", nil)

	const n = 8
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := s.Evolve(EvolveRequest{
				UserID:  "u1",
				RoleID:  role.ID,
				Message: fmt.Sprintf("今天很难过 %d", i),
			})
			done <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("并发演化失败: %v", err)
		}
	}

	// 用户级锁保证计数器无丢失更新
	profile, _ := profiles.GetProfile("u1", role.ID)
	if profile.PersonalityTraits.EmotionalFeedbackFrequency.Negative != n {
		t.Fatalf("消极计数器应为%d，实际: %d",
			n, profile.PersonalityTraits.EmotionalFeedbackFrequency.Negative)
	}
}
