// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// 存储后端类型
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config 存储应用配置
type Config struct {
	Port      string
	DataDir   string
	LogDir    string
	DebugMode bool

	// 存储后端: file 或 redis
	StorageBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		DataDir:        getEnvPath("DATA_DIR", "data"),
		LogDir:         getEnvPath("LOG_DIR", "logs"),
		DebugMode:      getEnvBool("DEBUG_MODE", true),
		StorageBackend: getEnv("STORAGE_BACKEND", BackendFile),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
	}

	if config.StorageBackend != BackendFile && config.StorageBackend != BackendRedis {
		return nil, fmt.Errorf("未知的存储后端: %s", config.StorageBackend)
	}

	return config, nil
}

// ProfileDataDir 人格档案的存储目录
func (c *Config) ProfileDataDir() string {
	return filepath.Join(c.DataDir, "personality")
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}
