package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/John-Robertt/pngslim/internal/app/run"
	"github.com/John-Robertt/pngslim/internal/config"
	"github.com/John-Robertt/pngslim/internal/domain"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var _ run.Observer = (*progressUI)(nil)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
	// redrawInterval 限制重绘频率；最后一次（100%）总会绘制。
	redrawInterval = 80 * time.Millisecond
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// progressUI 在交互终端上显示单行进度条。
//
// 约束：
// - 所有输出写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件都来自调度 goroutine，串行调用，不需要加锁
// - 未处理/失败的条目在进度条上方各打印一行，进度条本身原地刷新
type progressUI struct {
	w     io.Writer
	width int
	bar   progress.Model

	startedAt time.Time
	lastDraw  time.Time
	drawn     bool

	workers int
	total   int
	done    int
	percent float64
	current string
}

func newProgressUI(w io.Writer, termWidth int) *progressUI {
	barWidth := defaultBarWidth
	if termWidth > 0 && termWidth-40 < barWidth {
		barWidth = termWidth - 40
	}
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	return &progressUI{
		w:     w,
		width: termWidth,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.startedAt = time.Now()
	minQ, maxQ := eff.Quality.Resolve()

	fmt.Fprintf(p.w, "%s %s\n", mutedStyle.Render("["+p.startedAt.Format("15:04:05")+"]"), titleStyle.Render("pngslim"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  speed: %d  quality: %d-%d  dithering: %.2f  compression: %s\n",
		eff.Speed, minQ, maxQ, eff.DitheringLevel, eff.Compression)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	if len(eff.Exclude) > 0 {
		fmt.Fprintf(p.w, "  exclude: %s\n", strings.Join(eff.Exclude, ", "))
	}
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "plan":
		fmt.Fprintf(p.w, "规划: items=%d size=%.1fKB (%s)\n",
			intField(fields, "items"), float64(int64Field(fields, "total_bytes"))/domain.BytesPerKB, formatShortDuration(dur))
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n", p.workers, p.total)
		if p.total > 0 {
			p.draw(true)
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(done, total int, res domain.ItemResult) {
	p.done, p.total = done, total
	p.current = res.Path

	switch res.Status {
	case domain.StatusUnhandled:
		p.printAbove(warnStyle.Render("SKIP") + " " + p.fit(res.Path+" "+res.ErrorCode, 5))
	case domain.StatusFailed:
		p.printAbove(failStyle.Render("FAIL") + " " + p.fit(res.Path+" "+res.ErrorCode+": "+res.ErrorMsg, 5))
	}
	p.draw(done >= total)
}

func (p *progressUI) OnProgress(weightDone, weightTotal float64) {
	if weightTotal <= 0 {
		return
	}
	p.percent = weightDone / weightTotal
	p.draw(p.percent >= 1)
}

// Finish 结束进度条所在行。
func (p *progressUI) Finish() {
	if p.drawn {
		p.draw(true)
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func (p *progressUI) printAbove(line string) {
	if p.drawn {
		fmt.Fprint(p.w, "\r\x1b[2K")
	}
	fmt.Fprintln(p.w, line)
	p.drawn = false
}

func (p *progressUI) draw(force bool) {
	now := time.Now()
	if !force && p.drawn && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now

	stats := fmt.Sprintf(" %5.1f%% %d/%d %s", p.percent*100, p.done, p.total, formatElapsed(time.Since(p.startedAt)))
	line := p.bar.ViewAs(p.percent) + stats
	if p.current != "" {
		used := p.bar.Width + runewidth.StringWidth(stats) + 1
		if name := p.fit(p.current, used); name != "" {
			line += " " + mutedStyle.Render(name)
		}
	}
	fmt.Fprint(p.w, "\r\x1b[2K"+line)
	p.drawn = true
}

// fit 把纯文本截断到终端剩余宽度（按显示宽度计算）；used 是同一行已占用的列数。
// 着色必须在截断之后进行，避免截断 ANSI 转义序列。
func (p *progressUI) fit(s string, used int) string {
	if p.width <= 0 {
		return s
	}
	return truncateWidth(s, p.width-used-1)
}

func truncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// renderSummary 生成结束摘要：已处理数量、原始/最终 KB、减少百分比、耗时。
func renderSummary(rr domain.RunReport, styled bool) string {
	s := rr.Summary
	line1 := fmt.Sprintf("已处理 %d 个文件（未处理 %d，失败 %d，共 %d）", s.Processed, s.Unhandled, s.Failed, s.Total)
	line2 := fmt.Sprintf("%.2f KB -> %.2f KB，减少 %.2f%%", s.OriginalKB(), s.FinalKB(), s.DecreasePct)
	line3 := fmt.Sprintf("耗时 %.2f 秒", rr.ElapsedSec)
	if !styled {
		return "完成：" + line1 + "；" + line2 + "；" + line3
	}

	status := okStyle
	if s.Failed > 0 {
		status = failStyle
	} else if s.Unhandled > 0 {
		status = warnStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("完成"),
		status.Render(line1),
		line2,
		mutedStyle.Render(line3),
	)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	return int(int64Field(fields, key))
}

func int64Field(fields map[string]any, key string) int64 {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}
