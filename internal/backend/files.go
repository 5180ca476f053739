package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskFileStore 本地磁盘文件存储，通过 baseURL 对外提供访问
type DiskFileStore struct {
	root    string
	baseURL string
}

// NewDiskFileStore 创建磁盘存储，baseURL 形如 http://host/uploads
func NewDiskFileStore(root, baseURL string) *DiskFileStore {
	return &DiskFileStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload 写入文件并返回 URL
func (s *DiskFileStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	p, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("写入文件失败: %w", err)
	}
	return s.baseURL + path.Clean("/"+key), nil
}

// Delete 按 URL 删除文件，文件不存在视为成功
func (s *DiskFileStore) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return fmt.Errorf("不属于本存储的文件: %s", url)
	}
	p, err := s.resolve(strings.TrimPrefix(url, s.baseURL+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// resolve 把 key 映射到 root 下的路径，拒绝越界
func (s *DiskFileStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("无效的文件名: %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
