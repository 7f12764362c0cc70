// internal/storage/redis_store_test.go
package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
)

func setupRedisStore(t *testing.T, cfg RedisStoreConfig) *RedisRecordStore {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg.Addr = mr.Addr()

	store, err := NewRedisRecordStore(cfg)
	if err != nil {
		t.Fatalf("创建Redis存储失败: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupRedisStore(t, RedisStoreConfig{})

	record := sampleRecord("u1")
	if err := store.SaveUser(record); err != nil {
		t.Fatalf("保存用户记录失败: %v", err)
	}

	loaded, err := store.LoadUser("u1")
	if err != nil {
		t.Fatalf("读取用户记录失败: %v", err)
	}
	if diff := cmp.Diff(record, loaded); diff != "" {
		t.Fatalf("记录经Redis往返后不一致 (-want +got):\n%s", diff)
	}
}

func TestRedisStoreMissingUser(t *testing.T) {
	store := setupRedisStore(t, RedisStoreConfig{})

	record, err := store.LoadUser("nobody")
	if err != nil {
		t.Fatalf("读取不存在的用户不应报错: %v", err)
	}
	if record != nil {
		t.Fatal("不存在的用户应返回nil")
	}
	if store.UserExists("nobody") {
		t.Fatal("UserExists 应返回false")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store := setupRedisStore(t, RedisStoreConfig{})

	if err := store.SaveUser(sampleRecord("u1")); err != nil {
		t.Fatalf("保存用户记录失败: %v", err)
	}
	if !store.UserExists("u1") {
		t.Fatal("保存后 UserExists 应返回true")
	}

	if err := store.DeleteUser("u1"); err != nil {
		t.Fatalf("删除用户记录失败: %v", err)
	}
	record, err := store.LoadUser("u1")
	if err != nil || record != nil {
		t.Fatalf("删除后读取应返回 (nil, nil)，实际: (%v, %v)", record, err)
	}

	if err := store.DeleteUser("u1"); err != nil {
		t.Fatalf("删除不存在的用户不应报错: %v", err)
	}
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisRecordStore(RedisStoreConfig{Addr: mr.Addr(), Prefix: "custom"})
	if err != nil {
		t.Fatalf("创建Redis存储失败: %v", err)
	}
	defer store.Close()

	if err := store.SaveUser(sampleRecord("u1")); err != nil {
		t.Fatalf("保存用户记录失败: %v", err)
	}

	if !mr.Exists("custom:user:u1") {
		t.Fatal("应使用配置的键前缀")
	}
	if mr.Exists("persona:user:u1") {
		t.Fatal("不应使用默认键前缀")
	}
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisRecordStore(RedisStoreConfig{Addr: mr.Addr(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("创建Redis存储失败: %v", err)
	}
	defer store.Close()

	if err := store.SaveUser(sampleRecord("u1")); err != nil {
		t.Fatalf("保存用户记录失败: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	record, err := store.LoadUser("u1")
	if err != nil {
		t.Fatalf("读取用户记录失败: %v", err)
	}
	if record != nil {
		t.Fatal("过期的记录应返回nil")
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisRecordStore(RedisStoreConfig{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("连接不可达的Redis应报错")
	}
}
