package telegram

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter connects the bot to Telegram through telebot's long poller.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	running   bool

	// dropped counts updates lost because the consumer fell behind.
	dropped atomic.Uint64
}

var _ transport.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log.With(logx.String("comp", "telegram")), bot: b}, nil
}

// Username returns the bot's own username, without "@".
func (a *Adapter) Username() string {
	if a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				a.flushDropped(cap(out))
				return
			case <-ticker.C:
				a.flushDropped(cap(out))
			}
		}
	}()

	forward := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		up := transport.Update{Message: a.convert(rctx, m)}
		select {
		case out <- up:
		default:
			a.dropped.Add(1)
		}
		return nil
	}
	a.bot.Handle(tele.OnText, forward)
	a.bot.Handle(tele.OnPhoto, forward)

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started", logx.String("bot", a.Username()))
		a.bot.Start()
	}()
	return nil
}

func (a *Adapter) flushDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

// Stop ends polling. It waits at most a short grace period for the pending
// long poll to return.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed, continuing shutdown")
		return nil
	}
}

func (a *Adapter) convert(ctx context.Context, m *tele.Message) *transport.Message {
	msg := &transport.Message{
		ID:           m.ID,
		Chat:         transport.ChatTarget{ChatID: m.Chat.ID, ThreadID: m.ThreadID},
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		Text:         m.Text,
	}
	entities := m.Entities
	if m.Text == "" {
		msg.Text = m.Caption
		entities = m.CaptionEntities
	}
	msg.Mentions = mentions(m, entities)

	if m.Photo != nil && m.Photo.FileID != "" {
		if u, err := a.fileURL(ctx, m.Photo.FileID); err != nil {
			a.log.Warn("resolve photo url failed", logx.Int64("chat_id", m.Chat.ID), logx.Err(err))
		} else {
			msg.PhotoURLs = append(msg.PhotoURLs, u)
		}
	}
	return msg
}

func mentions(m *tele.Message, entities tele.Entities) []string {
	var out []string
	for _, e := range entities {
		switch e.Type {
		case tele.EntityMention:
			if s := m.EntityText(e); s != "" {
				out = append(out, s)
			}
		case tele.EntityTMention:
			if e.User != nil {
				out = append(out, strconv.FormatInt(e.User.ID, 10))
			}
		}
	}
	return out
}

func (a *Adapter) fileURL(ctx context.Context, fileID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := a.bot.FileByID(fileID)
	if err != nil {
		return "", err
	}
	if f.FilePath == "" {
		return "", errors.New("telegram returned empty file path")
	}
	return a.bot.URL + "/file/bot" + a.cfg.Token + "/" + f.FilePath, nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string) error {
	return a.Send(ctx, to, []transport.Segment{transport.Text(text)})
}

// Send renders text and mention segments into one HTML message and sends
// image segments after it. Images whose file is missing are skipped.
func (a *Adapter) Send(ctx context.Context, to transport.ChatTarget, segs []transport.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, images := Render(segs)
	chat := &tele.Chat{ID: to.ChatID}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ThreadID: to.ThreadID}

	if strings.TrimSpace(body) != "" {
		if _, err := a.bot.Send(chat, body, opts); err != nil {
			return err
		}
	}

	var album tele.Album
	for _, p := range images {
		if _, err := os.Stat(p); err != nil {
			a.log.Warn("attachment missing, skipped", logx.String("path", p), logx.Err(err))
			continue
		}
		album = append(album, &tele.Photo{File: tele.FromDisk(p)})
	}
	switch {
	case len(album) == 1:
		_, err := a.bot.Send(chat, album[0], &tele.SendOptions{ThreadID: to.ThreadID})
		return err
	case len(album) > 1:
		// Telegram caps albums at 10 items.
		for i := 0; i < len(album); i += 10 {
			end := min(i+10, len(album))
			if _, err := a.bot.SendAlbum(chat, album[i:end], &tele.SendOptions{ThreadID: to.ThreadID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Render converts segments into HTML text and the list of image paths.
// Numeric mentions become tg://user links; anything else is shown as @name.
func Render(segs []transport.Segment) (string, []string) {
	var (
		b      strings.Builder
		images []string
	)
	for _, s := range segs {
		switch s.Kind {
		case transport.SegmentText:
			b.WriteString(html.EscapeString(s.Value))
		case transport.SegmentMention:
			b.WriteString(mentionHTML(s.Value))
		case transport.SegmentImage:
			images = append(images, s.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n"), images
}

func mentionHTML(v string) string {
	v = strings.TrimSpace(v)
	if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
		return `<a href="tg://user?id=` + strconv.FormatInt(id, 10) + `">` + strconv.FormatInt(id, 10) + `</a>`
	}
	return "@" + html.EscapeString(strings.TrimPrefix(v, "@"))
}
