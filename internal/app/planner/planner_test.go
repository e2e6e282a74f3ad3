package planner

import (
	"fmt"
	"testing"

	"github.com/John-Robertt/pngslim/internal/domain"
	"pgregory.net/rapid"
)

func TestGenerateWorklist_SequentialIDs(t *testing.T) {
	files := []domain.PNGFile{
		{AbsPath: "/r/a.png", RelPath: "a.png", Name: "a.png", Size: 10},
		{AbsPath: "/r/sub/b.PNG", RelPath: "sub/b.PNG", Name: "b.PNG", Size: 20},
	}
	wl := GenerateWorklist(files)
	if wl.Len() != 2 {
		t.Fatalf("条目数=%d，期望 2", wl.Len())
	}
	for i := range wl {
		it := wl[i]
		if it.ID != i || it.Status != domain.StatusInit || it.Progress != 0 {
			t.Fatalf("条目 %d 初始化不正确：%+v", i, it)
		}
		if it.Path != files[i].AbsPath || it.RelPath != files[i].RelPath {
			t.Fatalf("条目 %d 路径不一致：%+v", i, it)
		}
	}

	st := Summarize(files)
	if st.Items != 2 || st.TotalBytes != 30 {
		t.Fatalf("统计不正确：%+v", st)
	}
}

func TestGenerateWorklist_Empty(t *testing.T) {
	wl := GenerateWorklist(nil)
	if wl.Len() != 0 || wl.WeightTotal() != 0 {
		t.Fatalf("空输入应得到空 Worklist：%+v", wl)
	}
}

func TestGenerateWorklist_OneItemPerFile(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(t, "n")
		files := make([]domain.PNGFile, n)
		for i := range files {
			files[i] = domain.PNGFile{AbsPath: fmt.Sprintf("/r/%d.png", i), RelPath: fmt.Sprintf("%d.png", i)}
		}
		wl := GenerateWorklist(files)
		if wl.Len() != n || wl.Count(domain.StatusInit) != n {
			t.Fatalf("len=%d init=%d，期望 %d", wl.Len(), wl.Count(domain.StatusInit), n)
		}
		if it := wl.Item(n); it != nil {
			t.Fatalf("越界 ID 应返回 nil")
		}
	})
}
