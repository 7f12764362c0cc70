// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/PersonaEvolveMCP/internal/config"
	"github.com/Corphon/PersonaEvolveMCP/internal/di"
	"github.com/Corphon/PersonaEvolveMCP/internal/services"
	"github.com/Corphon/PersonaEvolveMCP/internal/storage"
	"github.com/Corphon/PersonaEvolveMCP/internal/utils"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices(cfg *config.Config) error {
	container := di.GetContainer()

	// 1. 存储后端
	store, err := buildRecordStore(cfg)
	if err != nil {
		return fmt.Errorf("初始化存储后端失败: %w", err)
	}
	container.Register("record_store", store)
	utils.GetLogger().Infof("存储后端已就绪: %s", cfg.StorageBackend)

	// 2. 档案服务
	profileService := services.NewProfileService(store)
	container.Register("profile", profileService)

	// 3. 人格演化服务
	personalityService := services.NewPersonalityService(profileService)
	container.Register("personality", personalityService)

	// 4. 响应服务
	responderService := services.NewResponderService(profileService)
	container.Register("responder", responderService)

	return nil
}

// buildRecordStore 根据配置选择存储后端
func buildRecordStore(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return storage.NewRedisRecordStore(storage.RedisStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return storage.NewFileRecordStore(cfg.ProfileDataDir())
	}
}

// Cleanup 释放持有外部资源的服务
func Cleanup() {
	container := di.GetContainer()

	if store, ok := container.Get("record_store").(*storage.RedisRecordStore); ok {
		store.Close()
	}
	container.Clear()
}
