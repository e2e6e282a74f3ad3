package planner

import (
	"github.com/John-Robertt/pngslim/internal/domain"
)

// GenerateWorklist 把已过滤、已排序的候选文件转换为 Worklist（不做任何 I/O）。
//
// - ID 按输入顺序从 0 递增，与下标一致
// - 初始状态为 init，进度为 0
// - 每个文件恰好对应一个条目
func GenerateWorklist(files []domain.PNGFile) domain.Worklist {
	wl := make(domain.Worklist, 0, len(files))
	for i := range files {
		wl = append(wl, domain.WorkItem{
			ID:      i,
			Path:    files[i].AbsPath,
			RelPath: files[i].RelPath,
			Status:  domain.StatusInit,
		})
	}
	return wl
}

// Stats 是 plan 阶段输出给 Observer 的统计。
type Stats struct {
	Items      int
	TotalBytes int64
}

// Summarize 统计候选文件的数量与总字节数（来自扫描阶段的 stat 结果）。
func Summarize(files []domain.PNGFile) Stats {
	st := Stats{Items: len(files)}
	for i := range files {
		st.TotalBytes += files[i].Size
	}
	return st
}
