package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/adapter/rebirthpresenter"
	"github.com/park285/rebirth-chess-bot/internal/config"
	"github.com/park285/rebirth-chess-bot/internal/obslog"
	"github.com/park285/rebirth-chess-bot/internal/rebirthbuilder"
	"github.com/park285/rebirth-chess-bot/internal/rebirthcmd"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
)

const (
	terminalRoom = "terminal"
	commandWord  = "부활"
)

func main() {
	delay := flag.Duration("delay", 0, "opponent delay (default REBIRTH_OPPONENT_DELAY_MS)")
	noColor := flag.Bool("no-color", false, "disable ANSI colors")
	flag.Parse()
	if *noColor {
		color.NoColor = true
	}

	cfg := config.LoadLocal()
	cfg.AllowedRooms = nil
	if *delay > 0 {
		cfg.OpponentDelayMS = int(*delay / time.Millisecond)
	}

	// Logs would interleave with the board, so they only go to the log file.
	opts := obslog.OptionsFromEnv()
	opts.Console = false
	logger := zap.NewNop()
	if opts.File != "" {
		l, err := obslog.New(opts)
		if err != nil {
			log.Fatalf("logger init error: %v", err)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	deps, err := rebirthbuilder.NewWith(cfg, logger, rebirthbuilder.Overrides{Renderer: termRenderer{}})
	if err != nil {
		log.Fatalf("rebirth init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	term := &terminal{out: color.Output}
	handler := newTerminalHandler(deps, term, cfg.HistoryLimit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stdin, term, handler, localMeta()); err != nil {
		log.Fatalf("terminal error: %v", err)
	}
}

func newTerminalHandler(deps *rebirthbuilder.Deps, term *terminal, historyLimit int, logger *zap.Logger) *rebirthcmd.Handler {
	presenter := rebirthpresenter.NewPresenter(term.text, term.image)
	formatter := rebirthpresenter.NewFormatter(noPrefix{}, deps.Catalog, historyLimit)
	handler := rebirthcmd.NewHandler(deps.Service, formatter, presenter, logger.Named("command"))
	deps.Service.SetNotifier(handler)
	return handler
}

func localMeta() svc.SessionMeta {
	name := strings.TrimSpace(os.Getenv("USER"))
	if name == "" {
		name = "player"
	}
	return svc.SessionMeta{SessionID: terminalRoom + ":" + name, Room: terminalRoom, Sender: name}
}

// run reads one command per line until quit, EOF or ctx is done.
func run(ctx context.Context, in io.Reader, term *terminal, handler *rebirthcmd.Handler, meta svc.SessionMeta) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	term.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			args := strings.Fields(line)
			// Help text names the chat command word; accept it here too.
			if len(args) > 0 && args[0] == commandWord {
				args = args[1:]
			}
			if len(args) > 0 && isQuit(args[0]) {
				return nil
			}
			if len(args) > 0 {
				if err := handler.Handle(ctx, meta, args); err != nil {
					return err
				}
			}
			term.prompt()
		}
	}
}

func isQuit(word string) bool {
	switch strings.ToLower(word) {
	case "quit", "exit", "q", "종료":
		return true
	}
	return false
}

// terminal serializes output from the prompt loop and opponent timers.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *terminal) text(_, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "\n%s\n", message)
	return err
}

func (t *terminal) image(_, encoded string) error {
	board, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.out.Write(board)
	return err
}

func (t *terminal) prompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "> ")
}

type noPrefix struct{}

func (noPrefix) Prefix() string { return "" }
