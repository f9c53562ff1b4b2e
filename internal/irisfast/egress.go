package irisfast

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Egress abstracts message/image sending over HTTP or WebSocket.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// frameWriter is the part of *WebSocket the ws egress needs.
type frameWriter interface {
	Connected() bool
	WriteJSON(ctx context.Context, v any) error
}

// replySender is the part of *Client the http egress needs.
type replySender interface {
	SendMessage(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

type transportMode string

const (
	transportHTTP transportMode = "http"
	transportWS   transportMode = "ws"
	transportAuto transportMode = "auto"
)

// NewEgress creates an Egress based on mode. When mode is auto, WS is preferred when connected;
// on WS failure, it falls back to HTTP once. dryrun logs instead of sending on every transport.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	var (
		sender replySender
		writer frameWriter
	)
	if c != nil {
		sender = c
	}
	if ws != nil {
		writer = ws
	}
	return newEgress(transportMode(mode), dryrun, sender, writer, logger)
}

func newEgress(mode transportMode, dryrun bool, c replySender, ws frameWriter, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return &dryrunEgress{mode: mode, logger: logger}
	}
	switch mode {
	case transportWS:
		return &wsEgress{ws: ws}
	case transportAuto:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	default:
		return &httpEgress{c: c}
	}
}

// httpEgress delegates to Client.
type httpEgress struct{ c replySender }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	if h == nil || h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendMessage(ctx, room, message)
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if h == nil || h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendImage(ctx, room, imageBase64)
}

// wsEgress writes ReplyRequest frames over WebSocket.
type wsEgress struct{ ws frameWriter }

func (w *wsEgress) available() bool { return w != nil && w.ws != nil && w.ws.Connected() }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	return w.send(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return w.send(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

func (w *wsEgress) send(ctx context.Context, req ReplyRequest) error {
	if w == nil || w.ws == nil {
		return errors.New("ws egress not available")
	}
	return w.ws.WriteJSON(ctx, &req)
}

// autoEgress prefers WS if available, with single fallback to HTTP.
type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.available() {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.available() {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "image"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}

type dryrunEgress struct {
	mode   transportMode
	logger *zap.Logger
}

func (d *dryrunEgress) SendText(_ context.Context, room, message string) error {
	d.logger.Info("egress_dryrun",
		zap.String("mode", string(d.mode)),
		zap.String("type", "text"),
		zap.String("room", room),
		zap.String("message", message),
	)
	return nil
}

func (d *dryrunEgress) SendImage(_ context.Context, room, imageBase64 string) error {
	d.logger.Info("egress_dryrun",
		zap.String("mode", string(d.mode)),
		zap.String("type", "image"),
		zap.String("room", room),
		zap.Int("bytes", len(imageBase64)),
	)
	return nil
}
