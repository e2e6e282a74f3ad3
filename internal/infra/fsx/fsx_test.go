package fsx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	if err := WriteFileAtomic(dir, "report.json", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(dir, "report.json", []byte("again")); err != nil {
		t.Fatalf("覆盖写入不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "again" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, "report.json")
}

func TestReplaceFile_KeepsPermission(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows 不支持 unix 权限位")
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	if err := os.WriteFile(p, []byte("old"), 0o600); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	if err := ReplaceFile(p, []byte("new-bytes")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	fi, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat 失败：%v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("权限位应保持 0600，实际 %v", fi.Mode().Perm())
	}
	b, _ := os.ReadFile(p)
	if string(b) != "new-bytes" {
		t.Fatalf("内容未替换：%q", string(b))
	}
	assertNoTemp(t, dir, "a.png")
}

func TestReplaceFile_RenameFail_OriginalUntouched(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := ReplaceFile(p, []byte("new")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	b, _ := os.ReadFile(p)
	if string(b) != "old" {
		t.Fatalf("失败时原文件不应改变：%q", string(b))
	}
	assertNoTemp(t, dir, "a.png")
}

func TestReplaceFile_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a.png"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := ReplaceFile(filepath.Join(dir, "a.png"), []byte("x"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestReplaceFile_Missing(t *testing.T) {
	err := ReplaceFile(filepath.Join(t.TempDir(), "nope.png"), []byte("x"))
	if !os.IsNotExist(err) {
		t.Fatalf("期望 not exist 错误，实际：%v", err)
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
