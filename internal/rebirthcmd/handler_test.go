package rebirthcmd

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/park285/rebirth-chess-bot/internal/adapter/rebirthpresenter"
	"github.com/park285/rebirth-chess-bot/internal/history"
	"github.com/park285/rebirth-chess-bot/internal/msgcat"
	"github.com/park285/rebirth-chess-bot/internal/notation"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
	"github.com/park285/rebirth-chess-bot/internal/sessionstore"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
	"github.com/park285/rebirth-chess-bot/pkg/rebirthdto"
)

func sq(name string) rebirth.Square {
	s, err := notation.ParseSquare(name)
	if err != nil {
		panic(err)
	}
	return s
}

func TestParse(t *testing.T) {
	cases := []struct {
		args []string
		want Command
	}{
		{nil, Command{Kind: KindHelp}},
		{[]string{"도움"}, Command{Kind: KindHelp}},
		{[]string{"시작"}, Command{Kind: KindStart, Color: rebirth.White}},
		{[]string{"시작", "흑", "강제"}, Command{Kind: KindStart, Color: rebirth.Black, Force: true}},
		{[]string{"start", "black"}, Command{Kind: KindStart, Color: rebirth.Black}},
		{[]string{"E2"}, Command{Kind: KindSelect, To: sq("e2")}},
		{[]string{"e2e4"}, Command{Kind: KindMove, From: sq("e2"), To: sq("e4")}},
		{[]string{"e2", "e4"}, Command{Kind: KindMove, From: sq("e2"), To: sq("e4")}},
		{[]string{"d4-d5"}, Command{Kind: KindMove, From: sq("d4"), To: sq("d5")}},
		{[]string{"환생"}, Command{Kind: KindEnter}},
		{[]string{"res"}, Command{Kind: KindEnter}},
		{[]string{"포로", "#3"}, Command{Kind: KindPick, CaptureID: 3}},
		{[]string{"pick", "12"}, Command{Kind: KindPick, CaptureID: 12}},
		{[]string{"배치", "c6"}, Command{Kind: KindPlace, To: sq("c6")}},
		{[]string{"취소"}, Command{Kind: KindCancel}},
		{[]string{"리셋"}, Command{Kind: KindReset}},
		{[]string{"현황"}, Command{Kind: KindStatus}},
		{[]string{"기록"}, Command{Kind: KindHistory}},
		{[]string{"기록", "5"}, Command{Kind: KindHistory, Limit: 5}},
		{[]string{"기록", "x"}, Command{Kind: KindHistory}},
		{[]string{"기보", "7"}, Command{Kind: KindGame, GameID: 7}},
		{[]string{"뭐야"}, Command{Kind: KindUnknown}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.args)
		if err != nil {
			t.Fatalf("Parse(%v): %v", tc.args, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%v) = %+v, want %+v", tc.args, got, tc.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"포로"}, UsagePick},
		{[]string{"포로", "zero"}, UsagePick},
		{[]string{"배치"}, UsagePlace},
		{[]string{"기보"}, UsageGame},
		{[]string{"기보", "-1"}, UsageGame},
	}
	for _, tc := range cases {
		_, err := Parse(tc.args)
		var de *rebirthdto.DomainError
		if !errors.As(err, &de) || de.Code != tc.want {
			t.Fatalf("Parse(%v) err = %v, want %s", tc.args, err, tc.want)
		}
	}
	if _, err := Parse([]string{"시작", "purple"}); !errors.Is(err, svc.ErrInvalidColor) {
		t.Fatalf("bad color err = %v", err)
	}
	for _, args := range [][]string{{"e9"}, {"배치", "z1"}} {
		if _, err := Parse(args); !errors.Is(err, notation.ErrBadSquare) {
			t.Fatalf("Parse(%v) err = %v", args, err)
		}
	}
}

type stubRenderer struct{}

func (stubRenderer) RenderPNG(context.Context, *rebirth.Board, render.RenderOptions) ([]byte, error) {
	return []byte("png"), nil
}

type prefix string

func (p prefix) Prefix() string { return string(p) }

type outbox struct {
	texts  []string
	images int
}

func (o *outbox) last() string {
	if len(o.texts) == 0 {
		return ""
	}
	return o.texts[len(o.texts)-1]
}

func newHandler(t *testing.T) (*Handler, *outbox, *rebirth.ManualScheduler) {
	t.Helper()
	sched := &rebirth.ManualScheduler{}
	service, err := svc.NewService(sessionstore.NewMemoryStore(0), history.NewMemoryRepository(), stubRenderer{}, svc.Config{
		Scheduler: sched,
		NewRand:   func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(service.Close)
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	out := &outbox{}
	presenter := rebirthpresenter.NewPresenter(
		func(_, msg string) error { out.texts = append(out.texts, msg); return nil },
		func(_, _ string) error { out.images++; return nil },
	)
	h := NewHandler(service, rebirthpresenter.NewFormatter(prefix("!"), cat, 10), presenter, nil)
	service.SetNotifier(h)
	return h, out, sched
}

func TestHandlerGameFlow(t *testing.T) {
	h, out, sched := newHandler(t)
	ctx := context.Background()
	meta := svc.SessionMeta{SessionID: "room:alice", Room: "room", Sender: "alice"}
	run := func(words ...string) string {
		t.Helper()
		if err := h.Handle(ctx, meta, words); err != nil {
			t.Fatalf("Handle(%v): %v", words, err)
		}
		return out.last()
	}

	if got := run("리셋"); !strings.Contains(got, "초기화할 게임이 없습니다") {
		t.Fatalf("reset without game = %q", got)
	}
	if got := run("현황"); !strings.Contains(got, "!부활 시작") {
		t.Fatalf("status without game = %q", got)
	}

	if got := run("시작"); !strings.Contains(got, "당신은 백입니다") || out.images != 1 {
		t.Fatalf("start = %q images=%d", got, out.images)
	}
	if got := run("시작"); !strings.Contains(got, "이미 진행 중인 게임") {
		t.Fatalf("second start = %q", got)
	}

	images := out.images
	if got := run("e2e5"); !strings.Contains(got, "e2에서 e5") || out.images != images {
		t.Fatalf("illegal move = %q images=%d", got, out.images)
	}
	if got := run("e2e4"); !strings.Contains(got, "e2 → e4") || !strings.Contains(got, "상대 차례") {
		t.Fatalf("move = %q", got)
	}
	if got := run("d2d4"); !strings.Contains(got, "상대 차례입니다") {
		t.Fatalf("move during opponent turn = %q", got)
	}

	if sched.Pending() != 1 {
		t.Fatalf("opponent not scheduled: %d", sched.Pending())
	}
	sched.RunAll()
	if got := out.last(); !strings.HasPrefix(got, "상대: ") || !strings.Contains(got, "당신의 차례") {
		t.Fatalf("opponent notice = %q", got)
	}

	if got := run("환생"); !strings.Contains(got, "환생시킬 포로가 없습니다") {
		t.Fatalf("resurrection with empty pool = %q", got)
	}
	if got := run("포로"); !strings.Contains(got, "용법") {
		t.Fatalf("pick usage = %q", got)
	}
	if got := run("e9"); !strings.Contains(got, "칸 표기") {
		t.Fatalf("bad square = %q", got)
	}
	if got := run("야호"); !strings.Contains(got, "알 수 없는 명령") {
		t.Fatalf("unknown = %q", got)
	}

	if got := run("리셋"); !strings.Contains(got, "기록 #1") {
		t.Fatalf("reset = %q", got)
	}
	if got := run("기록"); !strings.Contains(got, "#1") {
		t.Fatalf("history = %q", got)
	}
	if got := run("기보", "1"); !strings.Contains(got, "e2-e4") {
		t.Fatalf("game = %q", got)
	}
	if got := run("기보", "99"); !strings.Contains(got, "찾을 수 없습니다") {
		t.Fatalf("missing game = %q", got)
	}
	if got := run(); !strings.Contains(got, "명령어 안내") {
		t.Fatalf("help = %q", got)
	}
}

func TestHandlerForceStartAsBlack(t *testing.T) {
	h, out, sched := newHandler(t)
	ctx := context.Background()
	meta := svc.SessionMeta{SessionID: "room:bob", Room: "room", Sender: "bob"}

	if err := h.Handle(ctx, meta, []string{"시작"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.Handle(ctx, meta, []string{"시작", "black", "강제"}); err != nil {
		t.Fatalf("force start: %v", err)
	}
	if got := out.last(); !strings.Contains(got, "당신은 흑입니다") || !strings.Contains(got, "상대(백)가 먼저") {
		t.Fatalf("black start = %q", got)
	}
	if sched.Pending() == 0 {
		t.Fatalf("white opponent not scheduled")
	}
	sched.RunAll()
	if got := out.last(); !strings.HasPrefix(got, "상대: ") {
		t.Fatalf("opponent opening = %q", got)
	}
}
