// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
)

// FileStorage provides file-backed storage
type FileStorage struct {
	BaseDir string

	// per-file locks, path -> *sync.RWMutex
	fileLocks sync.Map

	// simple read cache
	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int
}

// CacheEntry is one cached file read
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage creates a file storage service rooted at baseDir
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
	}

	fs.StartCacheCleanup()

	return fs, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveTextFile writes a file atomically via a temp file and rename
func (fs *FileStorage) SaveTextFile(dirPath, filename string, content []byte) error {
	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save file: %w", err)
	}

	fs.invalidateCache(fullPath)

	return nil
}

// SaveJSONFile serializes data and writes it atomically
func (fs *FileStorage) SaveJSONFile(dirPath, filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}

	return fs.SaveTextFile(dirPath, filename, content)
}

// LoadTextFile reads a file, serving from cache when fresh
func (fs *FileStorage) LoadTextFile(dirPath, filename string) ([]byte, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	fs.cacheMutex.RLock()
	if entry, exists := fs.cache[fullPath]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			fs.cacheMutex.RUnlock()
			return entry.Data, nil
		}
	}
	fs.cacheMutex.RUnlock()

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	// double-check the cache after taking the lock
	fs.cacheMutex.RLock()
	if entry, exists := fs.cache[fullPath]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			fs.cacheMutex.RUnlock()
			return entry.Data, nil
		}
	}
	fs.cacheMutex.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("file not found: %s", filename), err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fs.updateCache(fullPath, content)

	return content, nil
}

func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}

	if len(fs.cache) > fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time

		for key, entry := range fs.cache {
			if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
			}
		}

		if oldestKey != "" {
			delete(fs.cache, oldestKey)
		}
	}
}

// LoadJSONFile reads and parses a JSON file
func (fs *FileStorage) LoadJSONFile(dirPath, filename string, v interface{}) error {
	content, err := fs.LoadTextFile(dirPath, filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// DirExists checks whether a directory exists
func (fs *FileStorage) DirExists(dirPath string) bool {
	fullPath := filepath.Join(fs.BaseDir, dirPath)
	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists checks whether a file exists
func (fs *FileStorage) FileExists(dirPath, filename string) bool {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)
	_, err := os.Stat(fullPath)
	return err == nil
}

// DeleteFile removes a file
func (fs *FileStorage) DeleteFile(dirPath, filename string) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("file not found: %s", filename), err)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	fs.invalidateCache(fullPath)

	return nil
}

// DeleteDir removes a directory and its contents
func (fs *FileStorage) DeleteDir(dirPath string) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("directory not found: %s", dirPath), err)
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete directory: %w", err)
	}

	fs.removeCacheEntriesWithPrefix(fullPath)

	return nil
}

func (fs *FileStorage) removeCacheEntriesWithPrefix(prefix string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	for key := range fs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(fs.cache, key)
		}
	}
}

// ListDirs lists the subdirectories of a directory
func (fs *FileStorage) ListDirs(dirPath string) ([]string, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}

	return dirs, nil
}

// ListFiles lists the files of a directory matching the given suffix
func (fs *FileStorage) ListFiles(dirPath, suffix string) ([]string, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

// StartCacheCleanup runs periodic cache maintenance
func (fs *FileStorage) StartCacheCleanup() {
	go func() {
		ticker := time.NewTicker(2 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			fs.cleanupExpiredCache()
			fs.enforceMaxCacheSize()
		}
	}()
}

func (fs *FileStorage) cleanupExpiredCache() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.Timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
		}
	}
}

// enforceMaxCacheSize removes the oldest entries beyond the size limit
func (fs *FileStorage) enforceMaxCacheSize() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	if len(fs.cache) <= fs.maxCacheSize {
		return
	}

	type cacheEntryWithTime struct {
		key       string
		timestamp time.Time
	}

	var entries []cacheEntryWithTime
	for key, entry := range fs.cache {
		entries = append(entries, cacheEntryWithTime{key: key, timestamp: entry.Timestamp})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})

	removeCount := len(entries) - fs.maxCacheSize
	for i := 0; i < removeCount; i++ {
		delete(fs.cache, entries[i].key)
	}
}

func (fs *FileStorage) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, path)
}
