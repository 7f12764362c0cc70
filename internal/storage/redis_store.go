// internal/storage/redis_store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
)

// RedisRecordStore 基于Redis的用户记录存储。
// 键命名为 {prefix}:user:{userID}，整条记录以JSON字符串保存，
// SET 本身即为原子替换。
type RedisRecordStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	ctx    context.Context
}

// RedisStoreConfig Redis存储配置
type RedisStoreConfig struct {
	Addr     string        // Redis地址，如 "localhost:6379"
	Password string
	DB       int
	Prefix   string        // 键前缀，默认 "persona"
	TTL      time.Duration // 记录过期时间，0表示永不过期
}

// NewRedisRecordStore 创建Redis存储并验证连通性
func NewRedisRecordStore(cfg RedisStoreConfig) (*RedisRecordStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "persona"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperrors.NewPersistenceError("连接Redis失败", err)
	}

	return &RedisRecordStore{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		ctx:    ctx,
	}, nil
}

// userKey 用户记录的Redis键
func (rs *RedisRecordStore) userKey(userID string) string {
	return rs.prefix + ":user:" + userID
}

// LoadUser 读取用户记录
func (rs *RedisRecordStore) LoadUser(userID string) (*models.UserRecord, error) {
	val, err := rs.client.Get(rs.ctx, rs.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("读取用户记录失败", err)
	}

	var record models.UserRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, apperrors.NewPersistenceError("解析用户记录失败", err)
	}
	if record.Roles == nil {
		record.Roles = make(map[string]*models.Profile)
	}
	return &record, nil
}

// SaveUser 整条记录覆盖写入
func (rs *RedisRecordStore) SaveUser(record *models.UserRecord) error {
	content, err := json.Marshal(record)
	if err != nil {
		return apperrors.NewPersistenceError("序列化用户记录失败", err)
	}

	if err := rs.client.Set(rs.ctx, rs.userKey(record.ID), content, rs.ttl).Err(); err != nil {
		return apperrors.NewPersistenceError("保存用户记录失败", err)
	}
	return nil
}

// DeleteUser 删除用户记录
func (rs *RedisRecordStore) DeleteUser(userID string) error {
	if err := rs.client.Del(rs.ctx, rs.userKey(userID)).Err(); err != nil {
		return apperrors.NewPersistenceError("删除用户记录失败", err)
	}
	return nil
}

// UserExists 检查用户记录是否存在
func (rs *RedisRecordStore) UserExists(userID string) bool {
	n, err := rs.client.Exists(rs.ctx, rs.userKey(userID)).Result()
	return err == nil && n > 0
}

// Close 关闭Redis连接
func (rs *RedisRecordStore) Close() error {
	return rs.client.Close()
}

// 编译期接口检查
var (
	_ RecordStore = (*FileRecordStore)(nil)
	_ RecordStore = (*RedisRecordStore)(nil)
)
