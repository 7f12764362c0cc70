// internal/services/profile_service.go
package services

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"
	"time"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
	"github.com/Corphon/PersonaEvolveMCP/internal/storage"
)

// DefaultRoleName 简单模式下懒创建的默认角色名
const DefaultRoleName = "默认"

// ProfileService 处理多角色人格档案的业务逻辑。
// 同一用户的写操作需要由调用方串行化（见 PersonalityService 的用户锁）。
type ProfileService struct {
	store storage.RecordStore
}

// NewProfileService 创建档案服务
func NewProfileService(store storage.RecordStore) *ProfileService {
	return &ProfileService{store: store}
}

// DeriveRoleID 从用户ID和规范化角色名派生稳定的角色ID。
// 派生是确定性的，因此同名创建天然幂等。
func DeriveRoleID(userID, name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	sum := md5.Sum([]byte(userID + ":" + normalized))
	return "role_" + hex.EncodeToString(sum[:])[:12]
}

// validateUserID 校验用户ID，拒绝空值和可能穿越存储路径的字符
func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewValidationError("用户ID不能为空", nil)
	}
	if strings.ContainsAny(userID, "/\\") || strings.Contains(userID, "..") {
		return apperrors.NewValidationError("用户ID包含非法字符: "+userID, nil)
	}
	return nil
}

// validateOverrides 校验角色初始覆盖值，越界值同步报错且不修改存储
func validateOverrides(overrides *models.ProfileDiff) error {
	if overrides == nil {
		return nil
	}
	check := func(field string, v *float64) error {
		if v != nil && (math.IsNaN(*v) || *v < 0 || *v > 1) {
			return apperrors.NewValidationError("覆盖值超出 [0,1] 范围: "+field, nil)
		}
		return nil
	}
	if t := overrides.PersonalityTraits; t != nil {
		if err := check("altruism", t.Altruism); err != nil {
			return err
		}
		if err := check("risk_preference", t.RiskPreference); err != nil {
			return err
		}
	}
	if s := overrides.StyleParameters; s != nil {
		if err := check("sentence_complexity", s.SentenceComplexity); err != nil {
			return err
		}
		if err := check("emoji_density", s.EmojiDensity); err != nil {
			return err
		}
		if err := check("formality_level", s.FormalityLevel); err != nil {
			return err
		}
		if s.StyleType != nil && !s.StyleType.IsValid() {
			return apperrors.NewValidationError("未知的风格类型: "+string(*s.StyleType), nil)
		}
	}
	if w := overrides.DecisionWeights; w != nil {
		if err := check("rules_priority", w.RulesPriority); err != nil {
			return err
		}
		if err := check("empathy_priority", w.EmpathyPriority); err != nil {
			return err
		}
	}
	return nil
}

// loadOrInitUser 读取用户记录，不存在时初始化一条空记录（不落盘）
func (s *ProfileService) loadOrInitUser(userID string) (*models.UserRecord, error) {
	record, err := s.store.LoadUser(userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = models.NewUserRecord(userID)
	}
	return record, nil
}

// GetProfile 获取指定角色的档案。
// roleID 为空时取当前角色；用户或角色不存在时返回 (nil, nil)。
func (s *ProfileService) GetProfile(userID, roleID string) (*models.Profile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	record, err := s.store.LoadUser(userID)
	if err != nil || record == nil {
		return nil, err
	}

	if roleID == "" {
		roleID = record.CurrentRoleID
		if roleID == "" {
			return nil, nil
		}
	}
	return record.Roles[roleID], nil
}

// CreateRole 为用户创建一个新角色。
// 派生ID已存在时返回已有角色且不做任何修改（幂等创建）；
// 用户此前没有角色时，新角色成为当前角色。
func (s *ProfileService) CreateRole(userID, name, description string, overrides *models.ProfileDiff) (*models.Profile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("角色名不能为空", nil)
	}
	if err := validateOverrides(overrides); err != nil {
		return nil, err
	}

	record, err := s.loadOrInitUser(userID)
	if err != nil {
		return nil, err
	}

	roleID := DeriveRoleID(userID, name)
	if existing, ok := record.Roles[roleID]; ok {
		return existing, nil
	}

	profile := models.NewProfile(roleID, strings.TrimSpace(name), description)
	profile.ApplyDiff(overrides)

	record.Roles[roleID] = profile
	if record.CurrentRoleID == "" {
		record.CurrentRoleID = roleID
	}
	record.UpdatedAt = time.Now()

	if err := s.store.SaveUser(record); err != nil {
		return nil, err
	}
	return profile, nil
}

// ListRoles 列出用户的所有角色，用户不存在时返回空映射
func (s *ProfileService) ListRoles(userID string) (map[string]*models.Profile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	record, err := s.store.LoadUser(userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return map[string]*models.Profile{}, nil
	}
	return record.Roles, nil
}

// SwitchRole 切换当前角色，角色不存在时不做修改并返回 false
func (s *ProfileService) SwitchRole(userID, roleID string) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}

	record, err := s.store.LoadUser(userID)
	if err != nil || record == nil {
		return false, err
	}
	if _, ok := record.Roles[roleID]; !ok {
		return false, nil
	}

	record.CurrentRoleID = roleID
	record.UpdatedAt = time.Now()
	if err := s.store.SaveUser(record); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRole 删除角色。删除的是当前角色时，任选一个剩余角色提升为当前角色；
// 没有剩余角色时用户进入无角色状态。角色不存在返回 false。
func (s *ProfileService) DeleteRole(userID, roleID string) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}

	record, err := s.store.LoadUser(userID)
	if err != nil || record == nil {
		return false, err
	}
	if _, ok := record.Roles[roleID]; !ok {
		return false, nil
	}

	delete(record.Roles, roleID)
	if record.CurrentRoleID == roleID {
		record.CurrentRoleID = ""
		for id := range record.Roles {
			record.CurrentRoleID = id
			break
		}
	}
	record.UpdatedAt = time.Now()

	if err := s.store.SaveUser(record); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser 删除用户的全部人格数据（所有角色和历史）。
// 用户不存在时返回 false。
func (s *ProfileService) DeleteUser(userID string) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}

	if !s.store.UserExists(userID) {
		return false, nil
	}
	if err := s.store.DeleteUser(userID); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveActiveRole 返回用户当前角色ID，没有任何角色时懒创建默认角色
func (s *ProfileService) ResolveActiveRole(userID string) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}

	record, err := s.loadOrInitUser(userID)
	if err != nil {
		return "", err
	}
	if record.CurrentRoleID != "" {
		return record.CurrentRoleID, nil
	}

	roleID := DeriveRoleID(userID, DefaultRoleName)
	record.Roles[roleID] = models.NewProfile(roleID, DefaultRoleName, "")
	record.CurrentRoleID = roleID
	record.UpdatedAt = time.Now()

	if err := s.store.SaveUser(record); err != nil {
		return "", err
	}
	return roleID, nil
}

// ApplyEvolution 把稀疏更新合并进指定角色的档案并持久化。
// 用户或角色不存在时懒创建，不因缺失而报错。
func (s *ProfileService) ApplyEvolution(userID, roleID string, diff *models.ProfileDiff) (*models.Profile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	record, err := s.loadOrInitUser(userID)
	if err != nil {
		return nil, err
	}

	profile, ok := record.Roles[roleID]
	if !ok {
		profile = models.NewProfile(roleID, roleID, "")
		record.Roles[roleID] = profile
		if record.CurrentRoleID == "" {
			record.CurrentRoleID = roleID
		}
	}

	profile.ApplyDiff(diff)
	record.UpdatedAt = time.Now()

	if err := s.store.SaveUser(record); err != nil {
		return nil, err
	}
	return profile, nil
}

// AppendConversation 把对话记录广播到该用户的所有角色（共享记忆），
// 每个角色只保留最近 MaxConversationHistory 条
func (s *ProfileService) AppendConversation(userID string, entry models.ConversationEntry) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	record, err := s.store.LoadUser(userID)
	if err != nil || record == nil {
		return err
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	for _, profile := range record.Roles {
		profile.ConversationHistory = append(profile.ConversationHistory, entry)
		if n := len(profile.ConversationHistory); n > models.MaxConversationHistory {
			profile.ConversationHistory = profile.ConversationHistory[n-models.MaxConversationHistory:]
		}
	}
	record.UpdatedAt = time.Now()

	return s.store.SaveUser(record)
}

// AppendEvolution 把演化轨迹追加到指定角色（角色独立），
// 空更新不记录，只保留最近 MaxEvolutionHistory 条
func (s *ProfileService) AppendEvolution(userID, roleID string, entry models.EvolutionEntry) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if entry.Changes.IsEmpty() {
		return nil
	}

	record, err := s.store.LoadUser(userID)
	if err != nil || record == nil {
		return err
	}
	profile, ok := record.Roles[roleID]
	if !ok {
		return nil
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	profile.EvolutionHistory = append(profile.EvolutionHistory, entry)
	if n := len(profile.EvolutionHistory); n > models.MaxEvolutionHistory {
		profile.EvolutionHistory = profile.EvolutionHistory[n-models.MaxEvolutionHistory:]
	}
	record.UpdatedAt = time.Now()

	return s.store.SaveUser(record)
}
