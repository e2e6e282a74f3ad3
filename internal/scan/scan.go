package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/pngslim/internal/domain"
)

// pngExt 按小写比较，扩展名大小写不敏感。
const pngExt = ".png"

// ScanPNGs 递归扫描 root 下的 PNG 文件，并应用文件名排除列表。
//
// 规则：
// - 只收集普通文件；扩展名 .png 大小写不敏感
// - exclude 中的条目与文件名（含扩展名）做精确匹配，不做通配
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanPNGs(root string, exclude []string) ([]domain.PNGFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(exclude)

	files := make([]domain.PNGFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		if !strings.EqualFold(filepath.Ext(name), pngExt) {
			return nil
		}
		if _, skip := excluded[name]; skip {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.PNGFile{
			AbsPath: path,
			RelPath: rel,
			Name:    name,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func buildExcluded(exclude []string) map[string]struct{} {
	excluded := make(map[string]struct{}, len(exclude))
	for _, x := range exclude {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		excluded[x] = struct{}{}
	}
	return excluded
}
