// internal/storage/record_store.go
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/Corphon/PersonaEvolveMCP/internal/models"
)

// RecordStore 用户记录的持久化接口。
// 每次调用对整条记录做原子替换，不提供部分写入保证。
// 同一用户的并发写入需要由调用方串行化。
type RecordStore interface {
	// LoadUser 读取用户记录，不存在时返回 (nil, nil)
	LoadUser(userID string) (*models.UserRecord, error)
	// SaveUser 原子地写入整条用户记录
	SaveUser(record *models.UserRecord) error
	// DeleteUser 删除用户记录，不存在时为无操作
	DeleteUser(userID string) error
	// UserExists 检查用户记录是否存在
	UserExists(userID string) bool
}

// cacheEntry 读缓存条目
type cacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// FileRecordStore 基于JSON文件的用户记录存储，每个用户一个文件
type FileRecordStore struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map

	// 读缓存，写入成功后失效
	cache       map[string]*cacheEntry
	cacheMutex  sync.RWMutex
	cacheExpiry time.Duration
}

// NewFileRecordStore 创建文件存储
func NewFileRecordStore(baseDir string) (*FileRecordStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, apperrors.NewPersistenceError("创建存储目录失败", err)
	}

	return &FileRecordStore{
		BaseDir:     baseDir,
		cache:       make(map[string]*cacheEntry),
		cacheExpiry: 5 * time.Minute,
	}, nil
}

// getFileLock 获取文件锁
func (fs *FileRecordStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// userPath 用户记录文件路径
func (fs *FileRecordStore) userPath(userID string) string {
	return filepath.Join(fs.BaseDir, userID+".json")
}

// LoadUser 读取用户记录
func (fs *FileRecordStore) LoadUser(userID string) (*models.UserRecord, error) {
	fullPath := fs.userPath(userID)

	content, ok := fs.cachedData(fullPath)
	if !ok {
		lock := fs.getFileLock(fullPath)
		lock.RLock()
		defer lock.RUnlock()

		var err error
		content, err = os.ReadFile(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, apperrors.NewPersistenceError("读取用户记录失败", err)
		}
		fs.updateCache(fullPath, content)
	}

	var record models.UserRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, apperrors.NewPersistenceError("解析用户记录失败", err)
	}
	if record.Roles == nil {
		record.Roles = make(map[string]*models.Profile)
	}
	return &record, nil
}

// SaveUser 原子地保存用户记录：先写临时文件再重命名
func (fs *FileRecordStore) SaveUser(record *models.UserRecord) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return apperrors.NewPersistenceError("序列化用户记录失败", err)
	}

	fullPath := fs.userPath(record.ID)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return apperrors.NewPersistenceError("保存临时文件失败", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		// 重命名失败时清理临时文件，磁盘上保留旧记录
		os.Remove(tempPath)
		return apperrors.NewPersistenceError("保存用户记录失败", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// DeleteUser 删除用户记录
func (fs *FileRecordStore) DeleteUser(userID string) error {
	fullPath := fs.userPath(userID)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return apperrors.NewPersistenceError("删除用户记录失败", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// UserExists 检查用户记录文件是否存在
func (fs *FileRecordStore) UserExists(userID string) bool {
	_, err := os.Stat(fs.userPath(userID))
	return err == nil
}

// cachedData 命中且未过期时返回缓存内容
func (fs *FileRecordStore) cachedData(path string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()

	if entry, exists := fs.cache[path]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			return entry.Data, true
		}
	}
	return nil, false
}

// updateCache 更新读缓存
func (fs *FileRecordStore) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &cacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}
}

// invalidateCache 清除指定路径的缓存
func (fs *FileRecordStore) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, path)
}
