package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	appcfg "github.com/park285/rebirth-chess-bot/internal/config"
	"github.com/park285/rebirth-chess-bot/internal/irisfast"
)

// irischeck probes the Iris gateway with the bot's own configuration:
// GET /config, then a short WebSocket watch that prints incoming messages.
func main() {
	watch := flag.Duration("watch", 10*time.Second, "how long to print WS traffic")
	room := flag.String("send", "", "room to send a test reply to (empty skips)")
	flag.Parse()

	cfg := appcfg.LoadLocal()
	if cfg.IrisBaseURL == "" {
		log.Fatal("IRIS_BASE_URL is required")
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.IrisHeaders),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ic, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", ic.Port, ic.PollingSpeed, ic.MessageRate, ic.WebserverEndpoint)
	}

	if *room != "" {
		egress := irisfast.NewEgress("http", cfg.EgressDryRun, client, nil, nil)
		if err := egress.SendText(ctx, *room, "rebirth irischeck"); err != nil {
			log.Printf("reply error: %v", err)
		} else {
			log.Printf("reply sent to %s (dryrun=%v)", *room, cfg.EgressDryRun)
		}
	}

	if cfg.IrisWSURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(cfg.IrisHeaders)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s from=%s uid=%s text=%q\n", msg.Room, msg.SenderName(), msg.UserID(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	<-time.After(*watch)

	sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer scancel()
	_ = ws.Close(sctx)
}
