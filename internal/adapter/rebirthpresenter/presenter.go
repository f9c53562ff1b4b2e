package rebirthpresenter

import (
	"encoding/base64"
	"strings"

	"github.com/park285/rebirth-chess-bot/pkg/rebirthdto"
)

// Presenter delivers formatted messages and board images without coupling to the command layer.
type Presenter struct {
	sendMessage func(room, message string) error
	sendImage   func(room, imageBase64 string) error
}

func NewPresenter(sendMessage func(room, message string) error, sendImage func(room, imageBase64 string) error) *Presenter {
	return &Presenter{
		sendMessage: sendMessage,
		sendImage:   sendImage,
	}
}

// Text sends message alone; blank messages are dropped.
func (p *Presenter) Text(room, message string) error {
	if p == nil || p.sendMessage == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}

// Board sends the message first, then the board image when the state carries one.
func (p *Presenter) Board(room, message string, state *rebirthdto.SessionState) error {
	if p == nil {
		return nil
	}
	if err := p.Text(room, message); err != nil {
		return err
	}
	if state != nil && len(state.BoardImage) > 0 && p.sendImage != nil {
		encoded := base64.StdEncoding.EncodeToString(state.BoardImage)
		if err := p.sendImage(room, encoded); err != nil {
			return err
		}
	}
	return nil
}
