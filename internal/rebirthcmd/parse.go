package rebirthcmd

import (
	"strconv"
	"strings"

	"github.com/park285/rebirth-chess-bot/internal/notation"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
	"github.com/park285/rebirth-chess-bot/pkg/rebirthdto"
)

type Kind int

const (
	KindHelp Kind = iota
	KindStart
	KindReset
	KindStatus
	KindSelect
	KindMove
	KindEnter
	KindCancel
	KindPick
	KindPlace
	KindHistory
	KindGame
	KindUnknown
)

// Command is one parsed chat or terminal instruction.
type Command struct {
	Kind      Kind
	Color     rebirth.Color
	Force     bool
	From      rebirth.Square
	To        rebirth.Square
	CaptureID uint64
	Limit     int
	GameID    int64
}

// Korean chat words and their terminal equivalents.
var words = map[string]Kind{
	"도움": KindHelp, "도움말": KindHelp, "help": KindHelp,
	"시작": KindStart, "start": KindStart, "new": KindStart,
	"리셋": KindReset, "reset": KindReset,
	"현황": KindStatus, "status": KindStatus, "board": KindStatus,
	"환생": KindEnter, "res": KindEnter, "resurrect": KindEnter,
	"취소": KindCancel, "cancel": KindCancel,
	"포로": KindPick, "pick": KindPick,
	"배치": KindPlace, "place": KindPlace,
	"기록": KindHistory, "history": KindHistory,
	"기보": KindGame, "game": KindGame,
}

var forceWords = map[string]bool{"강제": true, "force": true, "-f": true}

const (
	UsagePick  = "usage.pick"
	UsagePlace = "usage.place"
	UsageGame  = "usage.game"
)

func usage(key string) error { return &rebirthdto.DomainError{Code: key} }

// Parse reads the words after the command prefix. An empty argument list is help.
func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Kind: KindHelp}, nil
	}
	head := strings.ToLower(strings.TrimSpace(args[0]))
	rest := args[1:]

	kind, ok := words[head]
	if !ok {
		return parseBoard(args)
	}
	cmd := Command{Kind: kind}
	switch kind {
	case KindStart:
		cmd.Color = rebirth.White
		for _, a := range rest {
			a = strings.ToLower(strings.TrimSpace(a))
			if forceWords[a] {
				cmd.Force = true
				continue
			}
			c, ok := parseColor(a)
			if !ok {
				return Command{}, svc.ErrInvalidColor
			}
			cmd.Color = c
		}
	case KindPick:
		if len(rest) == 0 {
			return Command{}, usage(UsagePick)
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(rest[0]), "#"), 10, 64)
		if err != nil || id == 0 {
			return Command{}, usage(UsagePick)
		}
		cmd.CaptureID = id
	case KindPlace:
		if len(rest) == 0 {
			return Command{}, usage(UsagePlace)
		}
		sq, err := notation.ParseSquare(rest[0])
		if err != nil {
			return Command{}, err
		}
		cmd.To = sq
	case KindHistory:
		if len(rest) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(rest[0])); err == nil && n > 0 {
				cmd.Limit = n
			}
		}
	case KindGame:
		if len(rest) == 0 {
			return Command{}, usage(UsageGame)
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(rest[0]), "#"), 10, 64)
		if err != nil || id <= 0 {
			return Command{}, usage(UsageGame)
		}
		cmd.GameID = id
	}
	return cmd, nil
}

// parseBoard handles "e2", "e2e4", "e2-e4" and "e2 e4".
func parseBoard(args []string) (Command, error) {
	joined := strings.Join(args, " ")
	if len(args) == 1 && !notation.LooksLikeMove(joined) {
		sq, err := notation.ParseSquare(args[0])
		if err != nil {
			if looksLikeSquare(args[0]) {
				return Command{}, err
			}
			return Command{Kind: KindUnknown}, nil
		}
		return Command{Kind: KindSelect, To: sq}, nil
	}
	if !notation.LooksLikeMove(joined) {
		return Command{Kind: KindUnknown}, nil
	}
	from, to, err := notation.ParseMove(joined)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindMove, From: from, To: to}, nil
}

func parseColor(s string) (rebirth.Color, bool) {
	switch s {
	case "백", "백색":
		return rebirth.White, true
	case "흑", "흑색":
		return rebirth.Black, true
	}
	return rebirth.ParseColor(s)
}

// looksLikeSquare catches near misses like "e9" or "i2e4" so they get a notation hint.
func looksLikeSquare(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if len(t) != 2 && len(t) != 4 && len(t) != 5 {
		return false
	}
	return t[0] >= 'a' && t[0] <= 'z' && t[1] >= '0' && t[1] <= '9'
}
