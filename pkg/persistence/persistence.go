package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = errors.New("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

// NewStore 创建新的存储
func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &JSONFileStore{
		service: s,
		key:     prefix + ":" + id + ":" + tag,
	}
}

// JSONFileStore JSON 文件存储实现
type JSONFileStore struct {
	service *JSONFileService
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *JSONFileStore) filePath() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.service.baseDir, safe+".json")
}

// Save 序列化并写入文件
func (s *JSONFileStore) Save(data interface{}) error {
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return errors.Wrap(err, "persistence: create base dir")
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "persistence: marshal %s", s.key)
	}

	return errors.Wrapf(os.WriteFile(s.filePath(), buf, 0o644), "persistence: write %s", s.key)
}

// Load 从文件读取并反序列化
func (s *JSONFileStore) Load(data interface{}) error {
	buf, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return errors.Wrapf(err, "persistence: read %s", s.key)
	}

	return errors.Wrapf(json.Unmarshal(buf, data), "persistence: unmarshal %s", s.key)
}

// MemoryService 内存持久化实现，测试用
type MemoryService struct {
	stores map[string]*MemoryStore
}

func NewMemoryService() *MemoryService {
	return &MemoryService{stores: make(map[string]*MemoryStore)}
}

func (s *MemoryService) NewStore(prefix, id, tag string) Store {
	key := prefix + ":" + id + ":" + tag
	store, ok := s.stores[key]
	if !ok {
		store = &MemoryStore{}
		s.stores[key] = store
	}
	return store
}

// MemoryStore 通过 JSON 往返复制数据，语义和文件存储一致
type MemoryStore struct {
	buf []byte
}

func (s *MemoryStore) Save(data interface{}) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.buf = buf
	return nil
}

func (s *MemoryStore) Load(data interface{}) error {
	if s.buf == nil {
		return ErrNotExists
	}
	return json.Unmarshal(s.buf, data)
}
