package domain

// PNGFile 描述一次扫描得到的候选 PNG（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
type PNGFile struct {
	AbsPath string
	RelPath string
	Name    string // 含扩展名，用于排除列表的精确匹配
	Size    int64
	ModUnix int64
}
