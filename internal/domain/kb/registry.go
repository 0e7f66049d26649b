package kb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// kb_id 允许字母数字加有限标点，禁止路径分隔符；首字符必须为字母数字，
// 从源头挡掉 ".." 之类的穿越标识
var kbIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Registry 知识库注册表：把 kb_id 解析为文件系统命名空间。
// 不需要显式"创建知识库"——首次上传时隐式建目录。
type Registry struct {
	dataDir  string
	indexDir string
}

// NewRegistry 创建注册表
func NewRegistry(dataDir, indexDir string) *Registry {
	return &Registry{
		dataDir:  dataDir,
		indexDir: indexDir,
	}
}

// ValidateID 校验 kb_id 格式，任何文件系统操作前必须先过这里
func (r *Registry) ValidateID(kbID string) error {
	if !kbIDPattern.MatchString(kbID) {
		return fmt.Errorf("%w: %q", ErrInvalidKnowledgeBaseID, kbID)
	}
	return nil
}

// DocumentDir 返回 kb_id 对应的文档目录
func (r *Registry) DocumentDir(kbID string) (string, error) {
	if err := r.ValidateID(kbID); err != nil {
		return "", err
	}
	return filepath.Join(r.dataDir, kbID), nil
}

// IndexPath 返回 kb_id 对应的索引快照路径
func (r *Registry) IndexPath(kbID string) (string, error) {
	if err := r.ValidateID(kbID); err != nil {
		return "", err
	}
	return filepath.Join(r.indexDir, kbID+".json"), nil
}

// Exists 知识库是否已经存在（至少上传过一次）
func (r *Registry) Exists(kbID string) bool {
	dir, err := r.DocumentDir(kbID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// EnsureDocumentDir 确保文档目录存在（首次上传隐式创建）
func (r *Registry) EnsureDocumentDir(kbID string) (string, error) {
	dir, err := r.DocumentDir(kbID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	return dir, nil
}

// EnsureIndexDir 确保索引根目录存在
func (r *Registry) EnsureIndexDir() error {
	if err := os.MkdirAll(r.indexDir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return nil
}
