package command

import (
	"strings"

	"github.com/John-Robertt/moviebot/internal/domain"
)

// Prefix 是所有 bot 指令的前缀。
const Prefix = "!"

const (
	reasonMissingSub   = "missing_subcommand"
	reasonMissingGenre = "missing_genre"
)

// Parse 把一条原始文本解析为 domain.Command。
//
// 返回值 ok=false 表示该文本不是发给 bot 的指令（调用方应静默忽略）；
// ok=true 时 Command 可能是 CmdInvalid（格式错误，需要给用户回 usage）。
//
// 规则：
// - 按空白切分；首个 token 大小写不敏感地匹配 !test / !help / !genres / !recommend
// - !recommend 的第二个 token：random / list / tv 为子命令，其余视为类型名
// - 类型名允许多个词（"science fiction"），原样保留大小写，由 genre 目录做不敏感匹配
func Parse(text string) (domain.Command, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], Prefix) {
		return domain.Command{}, false
	}

	switch strings.ToLower(tokens[0]) {
	case Prefix + "test":
		return domain.Command{Kind: domain.CmdTest}, true
	case Prefix + "help":
		return domain.Command{Kind: domain.CmdHelp}, true
	case Prefix + "genres":
		return parseGenres(tokens[1:]), true
	case Prefix + "recommend":
		return parseRecommend(tokens[1:]), true
	default:
		return domain.Command{}, false
	}
}

func parseGenres(args []string) domain.Command {
	media := domain.KindMovie
	if len(args) > 0 && strings.EqualFold(args[0], "tv") {
		media = domain.KindTV
	}
	return domain.Command{Kind: domain.CmdGenres, Media: media}
}

func parseRecommend(args []string) domain.Command {
	if len(args) == 0 {
		return domain.Command{Kind: domain.CmdInvalid, Reason: reasonMissingSub}
	}

	sub := strings.ToLower(args[0])
	switch sub {
	case "random":
		return domain.Command{Kind: domain.CmdRecommendRandom, Media: domain.KindMovie}
	case "list", "tv":
		genre := strings.Join(args[1:], " ")
		if genre == "" {
			return domain.Command{Kind: domain.CmdInvalid, Reason: reasonMissingGenre}
		}
		if sub == "tv" {
			return domain.Command{Kind: domain.CmdRecommendTvListByGenre, Genre: genre, Media: domain.KindTV}
		}
		return domain.Command{Kind: domain.CmdRecommendListByGenre, Genre: genre, Media: domain.KindMovie}
	default:
		return domain.Command{Kind: domain.CmdRecommendByGenre, Genre: strings.Join(args, " "), Media: domain.KindMovie}
	}
}
