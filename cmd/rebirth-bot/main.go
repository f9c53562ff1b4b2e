package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/adapter/rebirthpresenter"
	appcfg "github.com/park285/rebirth-chess-bot/internal/config"
	"github.com/park285/rebirth-chess-bot/internal/irisfast"
	"github.com/park285/rebirth-chess-bot/internal/obslog"
	"github.com/park285/rebirth-chess-bot/internal/rebirthbuilder"
	"github.com/park285/rebirth-chess-bot/internal/rebirthcmd"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
)

const commandWord = "부활"

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	headers := cfg.IrisHeaders

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	// Inject WS handshake headers if required by the server
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})

	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, obslog.Named("egress"))

	deps, err := rebirthbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("rebirth init error", zap.Error(err))
	}

	presenter := rebirthpresenter.NewPresenter(
		func(room, message string) error { return egress.SendText(context.Background(), room, message) },
		func(room, imageBase64 string) error { return egress.SendImage(context.Background(), room, imageBase64) },
	)
	formatter := rebirthpresenter.NewFormatter(prefixProvider{prefix: cfg.BotPrefix}, deps.Catalog, cfg.HistoryLimit)
	handler := rebirthcmd.NewHandler(deps.Service, formatter, presenter, obslog.Named("command"))
	deps.Service.SetNotifier(handler)

	rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := deps.Service.Resume(rctx); err != nil {
		logger.Warn("rebirth_resume_failed", zap.Error(err))
	}
	rcancel()

	// Command handler
	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || strings.TrimSpace(msg.Msg) == "" {
			return
		}
		args, ok := commandArgs(cfg.BotPrefix, msg.Msg)
		if !ok {
			return
		}
		// room filter: if AllowedRooms configured and msg.Room not in list → ignore
		if !roomAllowed(cfg.AllowedRooms, msg.Room) {
			logger.Debug("ignore message from room (not allowed)", zap.String("room", msg.Room))
			return
		}
		// Avoid blocking the WS loop
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := handler.Handle(ctx, metaFor(msg), args); err != nil {
				logger.Warn("reply_failed", zap.String("room", msg.Room), zap.Error(err))
			}
		}()
	})

	// Connect WS
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("ws connect error", zap.Error(err))
	}
	cancel()
	logger.Info("rebirth_bot_ready", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.EgressMode))

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = ws.Close(sctx)
	if err := deps.Close(); err != nil {
		logger.Warn("shutdown errors", zap.Error(err))
	}
}

// commandArgs returns the words after "<prefix>부활", accepting an optional space after the prefix.
func commandArgs(prefix, text string) ([]string, bool) {
	raw := strings.TrimSpace(text)
	if !strings.HasPrefix(raw, prefix) {
		return nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(raw, prefix))
	if len(fields) == 0 || fields[0] != commandWord {
		return nil, false
	}
	return fields[1:], true
}

func metaFor(msg *irisfast.Message) svc.SessionMeta {
	uid := msg.UserID()
	if uid == "" {
		uid = "player"
	}
	sender := msg.SenderName()
	if sender == "" {
		sender = uid
	}
	return svc.SessionMeta{
		SessionID: fmt.Sprintf("%s:%s", strings.TrimSpace(msg.Room), uid),
		Room:      msg.Room,
		Sender:    sender,
	}
}

func roomAllowed(allowed []string, room string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(room)) {
			return true
		}
	}
	return false
}

type prefixProvider struct{ prefix string }

func (p prefixProvider) Prefix() string { return p.prefix }
