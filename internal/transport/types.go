package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat, optionally a forum topic inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

// String renders the target as "<chat>" or "<chat>:<thread>".
// The result is what the reminder core stores as a destination key.
func (t ChatTarget) String() string {
	if t.ThreadID != 0 {
		return strconv.FormatInt(t.ChatID, 10) + ":" + strconv.Itoa(t.ThreadID)
	}
	return strconv.FormatInt(t.ChatID, 10)
}

// ParseTarget is the inverse of ChatTarget.String.
func ParseTarget(s string) (ChatTarget, error) {
	s = strings.TrimSpace(s)
	chat, thread, hasThread := strings.Cut(s, ":")
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil || id == 0 {
		return ChatTarget{}, fmt.Errorf("invalid chat target %q", s)
	}
	t := ChatTarget{ChatID: id}
	if hasThread {
		tid, err := strconv.Atoi(thread)
		if err != nil {
			return ChatTarget{}, fmt.Errorf("invalid thread in chat target %q", s)
		}
		t.ThreadID = tid
	}
	return t, nil
}

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	Chat         ChatTarget
	FromID       int64
	FromUsername string
	Text         string

	// Mentions are the recipients highlighted in the message, in order of appearance.
	// A mention is either a numeric user id or "@username".
	Mentions []string
	// PhotoURLs are remote URLs for attached photos (largest size only).
	PhotoURLs []string
}

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentMention
	SegmentImage
)

// Segment is one piece of an outbound message.
//
//	SegmentText:    Value is plain text
//	SegmentMention: Value is an opaque recipient id
//	SegmentImage:   Value is a local file path
type Segment struct {
	Kind  SegmentKind
	Value string
}

func Text(s string) Segment    { return Segment{Kind: SegmentText, Value: s} }
func Mention(s string) Segment { return Segment{Kind: SegmentMention, Value: s} }
func Image(p string) Segment   { return Segment{Kind: SegmentImage, Value: p} }

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string) error
	Send(ctx context.Context, to ChatTarget, segs []Segment) error
}
