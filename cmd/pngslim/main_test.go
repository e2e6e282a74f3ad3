package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/John-Robertt/pngslim/internal/config"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/goccy/go-json"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want config.CLIArgs
	}{
		{
			name: "positional",
			args: []string{"imgs"},
			want: config.CLIArgs{Path: "imgs"},
		},
		{
			name: "short",
			args: []string{"-p", "imgs", "-s", "7", "-n", "20", "-x", "80", "-d", "0.5", "-c", "fast", "-j", "3", "-v"},
			want: config.CLIArgs{
				Path:  "imgs",
				Speed: 7, SpeedSet: true,
				QualityMin: 20, QualityMinSet: true,
				QualityMax: 80, QualityMaxSet: true,
				DitheringLevel: 0.5, DitheringLevelSet: true,
				Compression: "fast", CompressionSet: true,
				Workers: 3, WorkersSet: true,
				Verbose: true,
			},
		},
		{
			name: "long_with_equals",
			args: []string{"--speed=2", "--compression=equal", "--report=out.json", "--path=x"},
			want: config.CLIArgs{
				Path:  "x",
				Speed: 2, SpeedSet: true,
				Compression: "equal", CompressionSet: true,
				ReportPath: "out.json",
			},
		},
		{
			name: "exclude_repeat_and_comma",
			args: []string{"-e", "a.png", "--exclude", "b.png, c.png", "-e=d.png"},
			want: config.CLIArgs{Exclude: []string{"a.png", "b.png", "c.png", "d.png"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("解析结果不一致：\ngot=%+v\nwant=%+v", got, tt.want)
			}
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	cases := [][]string{
		{"--speed"},
		{"-s", "fast"},
		{"-d", "x"},
		{"-c", "max"},
		{"--unknown"},
		{"a", "b"},
		{"--verbose=true"},
		{"--report", ""},
	}
	for _, args := range cases {
		if _, err := parseArgs(args); err == nil {
			t.Fatalf("期望参数错误：%v", args)
		}
	}
}

func TestRunCmd_UsageAndConfigErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runCmd(context.Background(), []string{"-h"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "用法") {
		t.Fatalf("-h 应输出帮助并返回 0：code=%d", code)
	}

	stdout.Reset()
	stderr.Reset()
	if code := runCmd(context.Background(), []string{"--bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("未知参数应返回 2，实际 %d", code)
	}

	stdout.Reset()
	stderr.Reset()
	if code := runCmd(context.Background(), []string{t.TempDir(), "-s", "42"}, &stdout, &stderr); code != 1 {
		t.Fatalf("配置错误应返回 1，实际 %d", code)
	}
	if !strings.Contains(stderr.String(), domain.ErrCodeConfigInvalid) {
		t.Fatalf("stderr 应包含错误码：%s", stderr.String())
	}
}

func TestRunCmd_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	root := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(i), uint8(i/4), 80, 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	idx := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	buf.Reset()
	_ = png.Encode(&buf, idx)
	if err := os.WriteFile(filepath.Join(root, "b.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	reportPath := filepath.Join(t.TempDir(), "nested", "report.json")
	var stdout, stderr bytes.Buffer
	code := runCmd(context.Background(), []string{root, "-j", "2", "--report", reportPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d\nstderr=%s", code, stderr.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.Total != 2 || rr.Summary.Processed != 1 || rr.Summary.Unhandled != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if !strings.Contains(stderr.String(), "完成：") {
		t.Fatalf("stderr 应包含摘要：%s", stderr.String())
	}

	b, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("--report 文件未写入：%v", err)
	}
	var fromFile domain.RunReport
	if err := json.Unmarshal(b, &fromFile); err != nil || fromFile.RunID != rr.RunID {
		t.Fatalf("报告文件内容不一致：%v run_id=%q/%q", err, fromFile.RunID, rr.RunID)
	}
}
