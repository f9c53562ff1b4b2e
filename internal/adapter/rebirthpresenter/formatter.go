package rebirthpresenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/rebirth-chess-bot/internal/msgcat"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/util"
	"github.com/park285/rebirth-chess-bot/pkg/rebirthdto"
)

const (
	historyDateLayout = "01-02 15:04"
	gameDateLayout    = "2006-01-02 15:04"
)

// PrefixProvider exposes the Prefix that Kakao messages should use.
type PrefixProvider interface {
	Prefix() string
}

// Formatter renders rebirth DTOs into Kakao-friendly text blocks.
type Formatter struct {
	prefixProvider PrefixProvider
	catalog        *msgcat.Catalog
	historyLimit   int
}

func NewFormatter(provider PrefixProvider, catalog *msgcat.Catalog, historyLimit int) *Formatter {
	return &Formatter{prefixProvider: provider, catalog: catalog, historyLimit: historyLimit}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

type vars map[string]any

func (f *Formatter) text(key string, data vars) string {
	if data == nil {
		data = vars{}
	}
	data["Prefix"] = f.Prefix()
	return f.catalog.Text(key, map[string]any(data))
}

func (f *Formatter) colorName(c string) string { return f.text("color."+c, nil) }

func (f *Formatter) pieceName(t string) string { return f.text("piece."+t, nil) }

func (f *Formatter) Start(state *rebirthdto.SessionState, resumed bool) string {
	if state == nil {
		return f.text("error.generic", nil)
	}
	lines := []string{}
	if resumed {
		lines = append(lines, f.text("start.in_progress", nil))
	} else {
		lines = append(lines, f.text("start.ok", vars{"Color": f.colorName(state.PlayerColor)}))
	}
	lines = append(lines, f.text("start.weighting", vars{"Weighting": f.text("weighting."+state.Weighting, nil)}))
	switch {
	case resumed:
		lines = append(lines, f.turnLine(state))
	case state.PlayerTurn:
		lines = append(lines, f.text("start.player_first", nil))
	default:
		lines = append(lines, f.text("start.opponent_first", nil))
	}
	return util.JoinLines(lines...)
}

func (f *Formatter) Reset(recordID int64) string {
	if recordID > 0 {
		return f.text("reset.ok", vars{"RecordID": recordID})
	}
	return f.text("reset.cleared", nil)
}

func (f *Formatter) NoSession() string { return f.text("reset.none", nil) }

// Command describes the outcome of a board or resurrection command.
func (f *Formatter) Command(state *rebirthdto.SessionState) string {
	if state == nil {
		return f.text("error.generic", nil)
	}
	if state.Rejected {
		return f.Rejection(state)
	}

	var lines []string
	switch rebirth.Outcome(state.Outcome) {
	case rebirth.OutcomeSelected:
		lines = append(lines, f.text("select.ok", vars{
			"Square":   state.Selected,
			"Piece":    f.pieceName(state.SelectedType),
			"Moves":    len(state.MoveHints),
			"Captures": len(state.CaptureHints),
		}))
		if hints := append(append([]string(nil), state.MoveHints...), state.CaptureHints...); len(hints) > 0 {
			lines = append(lines, f.text("select.hints", vars{"Hints": strings.Join(hints, " ")}))
		}
	case rebirth.OutcomeCleared:
		lines = append(lines, f.text("select.cleared", nil))
	case rebirth.OutcomeMoved:
		lines = append(lines, f.moveLine("move", state.Action))
	case rebirth.OutcomeResurrecting:
		lines = append(lines, f.text("status.pools", f.poolVars(state)))
	case rebirth.OutcomePicked:
		if a := state.Action; a != nil && a.Consumed != nil {
			lines = append(lines, f.text("resurrection.picked", vars{"ID": a.Consumed.ID, "Piece": f.pieceName(a.Consumed.Type)}))
		}
	case rebirth.OutcomeResurrected:
		if a := state.Action; a != nil && a.Consumed != nil {
			lines = append(lines, f.text("resurrection.done", vars{"ID": a.Consumed.ID, "Square": a.To, "Piece": f.pieceName(a.Piece)}))
		}
	case rebirth.OutcomeCancelled:
		lines = append(lines, f.text("resurrection.cancelled", nil))
	}
	if state.Advisory != "" {
		lines = append(lines, f.text(state.Advisory, nil))
	}
	switch rebirth.Outcome(state.Outcome) {
	case rebirth.OutcomeMoved, rebirth.OutcomeResurrected, rebirth.OutcomeCancelled:
		lines = append(lines, f.turnLine(state))
	}
	return util.JoinLines(lines...)
}

// Rejection explains why a command changed nothing.
func (f *Formatter) Rejection(state *rebirthdto.SessionState) string {
	square := state.AttemptTo
	switch state.Advisory {
	case rebirth.ReasonEmptySquare, rebirth.ReasonNotYourPiece:
		square = state.AttemptFrom
	}
	return f.text(state.Advisory, vars{
		"Square": square,
		"From":   state.AttemptFrom,
		"To":     state.AttemptTo,
		"ID":     state.AttemptCaptureID,
	})
}

// Opponent announces what the automated side just did.
func (f *Formatter) Opponent(state *rebirthdto.SessionState) string {
	if state == nil {
		return ""
	}
	if state.EventKind == string(rebirth.EventOpponentPassed) {
		return f.text("opponent.passed", nil)
	}
	return util.JoinLines(f.moveLine("opponent", state.OpponentMove), f.turnLine(state))
}

func (f *Formatter) moveLine(group string, m *rebirthdto.Move) string {
	if m == nil {
		return ""
	}
	data := vars{"From": m.From, "To": m.To, "Piece": f.pieceName(m.Piece)}
	if m.Captured == nil {
		key := group + ".ok"
		if group == "opponent" {
			key = "opponent.moved"
		}
		return f.text(key, data)
	}
	data["Captured"] = f.pieceName(m.Captured.Type)
	data["ID"] = m.Captured.ID
	key := group + ".capture"
	if group == "opponent" {
		key = "opponent.captured"
	}
	return f.text(key, data)
}

func (f *Formatter) turnLine(state *rebirthdto.SessionState) string {
	switch {
	case state.InResurrection:
		return ""
	case state.PlayerTurn && state.CanResurrect:
		return f.text("turn.player_resurrect", nil)
	case state.PlayerTurn:
		return f.text("turn.player", nil)
	default:
		return f.text("turn.opponent", nil)
	}
}

func (f *Formatter) Status(state *rebirthdto.SessionState) string {
	if state == nil {
		return f.NoSession()
	}
	header := f.text("status.header", nil)
	lines := []string{
		header,
		f.text("status.color", vars{"Color": f.colorName(state.PlayerColor)}),
		f.text("status.ply", vars{"Ply": state.Ply}),
		f.text("status.turn", vars{"Turn": f.colorName(state.ActiveColor)}),
		f.text("status.pools", f.poolVars(state)),
	}
	if state.InResurrection {
		lines = append(lines, f.text("status.resurrecting", nil))
		if p := state.PendingCapture; p != nil {
			lines = append(lines, f.text("status.pending", vars{"ID": p.ID, "Piece": f.pieceName(p.Type)}))
		}
	}
	lines = append(lines, f.turnLine(state))
	return util.SeeMore(header, util.JoinLines(lines...))
}

func (f *Formatter) poolVars(state *rebirthdto.SessionState) vars {
	return vars{"White": f.formatPool(state.WhitePool), "Black": f.formatPool(state.BlackPool)}
}

func (f *Formatter) formatPool(pool []rebirthdto.CapturedPiece) string {
	if len(pool) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(pool))
	for _, e := range pool {
		parts = append(parts, fmt.Sprintf("#%d %s", e.ID, f.pieceName(e.Type)))
	}
	return strings.Join(parts, ", ")
}

func (f *Formatter) History(games []*rebirthdto.GameRecord) string {
	header := f.text("history.header", nil)
	if len(games) == 0 {
		return header + "\n" + f.text("history.empty", nil)
	}
	lines := []string{header}
	for _, g := range games {
		captures := g.WhiteCaptures
		if g.PlayerColor == rebirth.Black.String() {
			captures = g.BlackCaptures
		}
		lines = append(lines, f.text("history.item", vars{
			"ID":            g.ID,
			"Date":          util.FormatKST(g.EndedAt, historyDateLayout),
			"Color":         f.colorName(g.PlayerColor),
			"Plies":         g.Plies,
			"Captures":      captures,
			"Resurrections": g.Resurrections,
		}))
	}
	lines = append(lines, f.text("game.footer", nil))
	return util.SeeMore(header, util.JoinLines(lines...))
}

func (f *Formatter) Game(game *rebirthdto.GameRecord) string {
	if game == nil {
		return f.text("error.game_not_found", nil)
	}
	moves := "-"
	if len(game.Moves) > 0 {
		moves = strings.Join(game.Moves, " ")
	}
	header := f.text("game.header", vars{"ID": game.ID})
	body := util.JoinLines(
		header,
		f.text("game.color", vars{"Color": f.colorName(game.PlayerColor), "Weighting": f.text("weighting."+game.Weighting, nil)}),
		f.text("game.period", vars{
			"Start":    util.FormatKST(game.StartedAt, gameDateLayout),
			"End":      util.FormatKST(game.EndedAt, gameDateLayout),
			"Duration": formatGameDuration(game.Duration),
		}),
		f.text("game.counts", vars{
			"Plies":         game.Plies,
			"White":         game.WhiteCaptures,
			"Black":         game.BlackCaptures,
			"Resurrections": game.Resurrections,
		}),
		f.text("game.reason", vars{"Reason": f.text("end_reason."+game.EndReason, nil)}),
		f.text("game.moves", vars{"Moves": moves}),
	)
	return util.SeeMore(header, body)
}

func (f *Formatter) Help() string {
	header := f.text("help.header", nil)
	body := f.text("help.body", vars{"Limit": f.historyLimit})
	return util.ApplyKakaoSeeMorePadding(strings.TrimRight(body, "\n"), header)
}

// Error turns a service error into the message shown in the room.
func (f *Formatter) Error(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	data := vars{}
	for k, v := range de.Data {
		data[k] = v
	}
	return f.text(de.Code, data)
}

func (f *Formatter) UnknownCommand() string { return f.text("error.unknown_command", nil) }

func formatGameDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
