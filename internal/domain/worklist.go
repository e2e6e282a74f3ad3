package domain

// Worklist 是所有候选文件的有序集合；下标即 WorkItem.ID。
// 由调度器独占。
type Worklist []WorkItem

func (wl Worklist) Len() int { return len(wl) }

// Item 按 ID 取条目；越界返回 nil。
func (wl Worklist) Item(id int) *WorkItem {
	if id < 0 || id >= len(wl) {
		return nil
	}
	return &wl[id]
}

// Count 统计处于某个状态的条目数。
func (wl Worklist) Count(s Status) int {
	n := 0
	for i := range wl {
		if wl[i].Status == s {
			n++
		}
	}
	return n
}

// WeightDone 是所有条目进度之和（聚合进度条的分子）。
func (wl Worklist) WeightDone() float64 {
	var sum float64
	for i := range wl {
		sum += wl[i].Progress
	}
	return sum
}

// WeightTotal 是聚合进度条的分母：条目数 × 单条进度上限。
func (wl Worklist) WeightTotal() float64 {
	return float64(len(wl)) * ProgressCeiling
}
