package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/John-Robertt/pngslim/internal/app/run"
	"github.com/John-Robertt/pngslim/internal/config"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/John-Robertt/pngslim/internal/infra/fsx"
	"github.com/John-Robertt/pngslim/internal/logging"
	"github.com/goccy/go-json"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runCmd(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// runCmd 返回进程退出码：0 正常结束；2 参数错误；1 配置错误或无法继续的 I/O 错误。
// 单个文件失败不影响退出码，结果体现在报告中。
func runCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(stdout)
			return 0
		}
	}

	ra, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printUsage(stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ra)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter(stderr)
	logger, err := logging.New(logging.Options{Verbose: eff.Verbose, Interactive: interactive})
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW, terminalWidth(progressW))
		obs = ui
	}

	rr, runErr := run.Execute(ctx, eff, logger, obs)
	if ui != nil {
		ui.Finish()
	}

	if eff.ReportPath != "" {
		p := resolveFrom(cwd, eff.ReportPath)
		if err := writeReportFile(p, rr); err != nil {
			fmt.Fprintf(stderr, "写入报告失败：%v\n", err)
			emitReport(stdout, stderr, rr)
			return 1
		}
		if interactive {
			fmt.Fprintf(progressW, "report: %s\n", p)
		}
	}

	emitReport(stdout, stderr, rr)
	if runErr != nil {
		fmt.Fprintf(stderr, "运行失败：%v\n", runErr)
		return 1
	}
	return 0
}

// parseArgs 解析 CLI 参数；支持 "-s 4"、"--speed 4"、"--speed=4" 三种写法。
func parseArgs(args []string) (config.CLIArgs, error) {
	var ra config.CLIArgs

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			if ra.Path != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
			continue
		}

		name, val, hasVal := strings.Cut(a, "=")
		next := func() (string, error) {
			if hasVal {
				return val, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s 需要一个值", name)
			}
			i++
			return args[i], nil
		}

		switch name {
		case "-p", "--path":
			v, err := next()
			if err != nil {
				return config.CLIArgs{}, err
			}
			if ra.Path != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, v)
			}
			ra.Path = v
		case "-s", "--speed":
			n, err := intValue(name, next)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.Speed, ra.SpeedSet = n, true
		case "-n", "--quality-min":
			n, err := intValue(name, next)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.QualityMin, ra.QualityMinSet = n, true
		case "-x", "--quality-max":
			n, err := intValue(name, next)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.QualityMax, ra.QualityMaxSet = n, true
		case "-d", "--dithering-level":
			v, err := next()
			if err != nil {
				return config.CLIArgs{}, err
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return config.CLIArgs{}, fmt.Errorf("%s 需要一个数字，实际是 %q", name, v)
			}
			ra.DitheringLevel, ra.DitheringLevelSet = f, true
		case "-c", "--compression":
			v, err := next()
			if err != nil {
				return config.CLIArgs{}, err
			}
			if _, err := domain.ParseCompression(v); err != nil {
				return config.CLIArgs{}, err
			}
			ra.Compression, ra.CompressionSet = v, true
		case "-e", "--exclude":
			v, err := next()
			if err != nil {
				return config.CLIArgs{}, err
			}
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					ra.Exclude = append(ra.Exclude, s)
				}
			}
		case "-j", "--workers":
			n, err := intValue(name, next)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.Workers, ra.WorkersSet = n, true
		case "--report":
			v, err := next()
			if err != nil {
				return config.CLIArgs{}, err
			}
			if strings.TrimSpace(v) == "" {
				return config.CLIArgs{}, fmt.Errorf("--report 不能为空")
			}
			ra.ReportPath = v
		case "-v", "--verbose":
			if hasVal {
				return config.CLIArgs{}, fmt.Errorf("%s 不接受值", name)
			}
			ra.Verbose = true
		default:
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}
	return ra, nil
}

func intValue(name string, next func() (string, error)) (int, error) {
	v, err := next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s 需要一个整数，实际是 %q", name, v)
	}
	return n, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  pngslim [path] [flags]

把目录下（递归）所有 RGBA PNG/APNG 就地转换为索引色 PNG。

参数：
  -p, --path PATH             工作目录（也可作为位置参数；默认当前目录）
  -s, --speed N               速度 1-10，越大越快、质量越低（默认 4）
  -n, --quality-min N         最低质量 0-100，达不到则该文件失败（默认 0）
  -x, --quality-max N         最高质量 0-100，达到即停止增加颜色（默认 60，不低于 -n）
  -d, --dithering-level F     抖动强度 0-1（默认 1.0）
  -c, --compression MODE      压缩：fast | default | equal（默认 default）
  -e, --exclude NAME          按文件名精确排除，可重复或用逗号分隔
  -j, --workers N             并发 worker 数（默认 CPU 核数）
      --report FILE           把 RunReport JSON 写入文件
  -v, --verbose               输出调试日志
  -h, --help                  显示帮助

配置文件：<path>/pngslim.yaml（可选；CLI 优先）
`)
}

// emitReport：stdout 是终端时输出摘要；否则 stdout 只输出一个 RunReport JSON，摘要走 stderr。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		fmt.Fprintln(stdout, renderSummary(rr, true))
		printFailures(stdout, rr)
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, renderSummary(rr, false))
}

func printFailures(w io.Writer, rr domain.RunReport) {
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", it.Path, it.ErrorCode, it.ErrorMsg)
	}
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
}

func resolveFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func pickProgressWriter(stderr io.Writer) (io.Writer, bool) {
	// 进度条只在交互终端启用，并且只写 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	return nil, false
}
