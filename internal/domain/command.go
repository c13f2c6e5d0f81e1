package domain

// CommandKind 是 Command 的变体标签。
type CommandKind int

const (
	CmdInvalid CommandKind = iota
	CmdTest
	CmdHelp
	CmdGenres
	CmdRecommendRandom
	CmdRecommendByGenre
	CmdRecommendListByGenre
	CmdRecommendTvListByGenre
)

func (k CommandKind) String() string {
	switch k {
	case CmdTest:
		return "test"
	case CmdHelp:
		return "help"
	case CmdGenres:
		return "genres"
	case CmdRecommendRandom:
		return "recommend_random"
	case CmdRecommendByGenre:
		return "recommend_genre"
	case CmdRecommendListByGenre:
		return "recommend_list"
	case CmdRecommendTvListByGenre:
		return "recommend_tv"
	default:
		return "invalid"
	}
}

// Command 是解析后的聊天指令（tagged variant）。
//
// 不变量：
// - Kind 为 *ByGenre 系列时 Genre 非空
// - Kind 为 CmdGenres 时 Media 指明要列出哪一类的类型表
// - Kind 为 CmdInvalid 时 Reason 描述具体问题（用于日志，不直接回显）
type Command struct {
	Kind   CommandKind
	Genre  string
	Media  MediaKind
	Reason string
}
