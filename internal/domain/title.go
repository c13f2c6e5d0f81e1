package domain

// MediaKind 区分 provider 的两类目录：电影与剧集。
// 两者的类型表、discover 端点、标题字段名都不同。
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// Valid 报告 k 是否为已知的 MediaKind。
func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindTV
}

// Title 是一条推荐结果的最小可展示形态（按请求构造，不落盘）。
//
// 约束：
// - ImageURL 永远非空：缺海报时由 provider 填入占位图 URL
// - Overview 允许为空，也允许很长（截断由 selection 负责）
type Title struct {
	Name     string
	Overview string
	ImageURL string
}

// GenreID 是 provider 分配的类型 id。
type GenreID int

// Genre 是 provider 类型表中的一项。
type Genre struct {
	ID   GenreID
	Name string
}
