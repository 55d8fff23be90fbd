package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

// Reminders is the lifecycle API the commands drive.
type Reminders interface {
	Create(ctx context.Context, dest string, req reminder.CreateRequest) (reminder.Task, error)
	AttachCountdown(ctx context.Context, dest string, id, days int) (reminder.Task, error)
	List(dest string) []reminder.TaskView
	Delete(ctx context.Context, dest string, id int) (reminder.Task, error)
	Renumber(ctx context.Context, dest string) int
}

// Replier sends a plain text answer back to the chat.
type Replier interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string) error
}

// Request is one parsed command invocation.
type Request struct {
	Msg  *transport.Message
	Dest string
	Args []string
	Log  logx.Logger
}

type HandlerFunc func(ctx context.Context, req *Request) string

type Command struct {
	Name    string
	Aliases []string // ASCII names; only recognized with a leading "/"
	Handle  HandlerFunc
}

// Dispatcher routes chat messages to commands and sends the replies.
type Dispatcher struct {
	reminders Reminders
	reply     Replier
	log       logx.Logger

	botUsername string
	timeout     time.Duration
	workers     int

	byName  map[string]*Command
	byAlias map[string]*Command
}

type Option func(*Dispatcher)

// WithBotUsername excludes the bot's own @username when choosing a mention.
func WithBotUsername(name string) Option {
	return func(d *Dispatcher) { d.botUsername = strings.TrimPrefix(strings.TrimSpace(name), "@") }
}

// WithTimeout bounds a single command, attachment downloads included.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func New(reminders Reminders, reply Replier, log logx.Logger, opts ...Option) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		reminders: reminders,
		reply:     reply,
		log:       log.With(logx.String("comp", "commands")),
		timeout:   2 * time.Minute,
		workers:   2,
		byName:    map[string]*Command{},
		byAlias:   map[string]*Command{},
	}
	for _, o := range opts {
		o(d)
	}
	for _, c := range d.builtin() {
		c := c
		d.byName[c.Name] = &c
		for _, a := range c.Aliases {
			d.byAlias[a] = &c
		}
	}
	return d
}

func (d *Dispatcher) builtin() []Command {
	return []Command{
		{Name: "设置任务", Aliases: []string{"settask"}, Handle: d.createTask},
		{Name: "任务列表", Aliases: []string{"tasks", "list"}, Handle: d.listTasks},
		{Name: "删除任务", Aliases: []string{"deltask"}, Handle: d.deleteTask},
		{Name: "设置倒计时", Aliases: []string{"countdown"}, Handle: d.setCountdown},
		{Name: "重排任务id", Aliases: []string{"renumber"}, Handle: d.renumber},
		{Name: "timedtask_help", Aliases: []string{"help", "start"}, Handle: d.help},
	}
}

// Run consumes updates until ctx is canceled or updates is closed.
// Commands run on a small worker pool so a slow download never blocks polling.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(d.log))
	jobs := make(chan func(context.Context), 64)
	for i := 0; i < d.workers; i++ {
		sup.Go0(fmt.Sprintf("commands.worker.%d", i), func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					job(c)
				}
			}
		})
	}
	defer func() {
		close(jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Wait(wctx)
		d.log.Info("command dispatcher stopped")
	}()

	d.log.Info("command dispatcher started", logx.Int("workers", d.workers))
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			msg := up.Message
			if msg == nil {
				continue
			}
			cmd, args := d.match(msg.Text)
			if cmd == nil {
				continue
			}
			select {
			case jobs <- func(c context.Context) { d.exec(c, cmd, msg, args) }:
			default:
				_ = d.reply.SendText(ctx, msg.Chat, "❌ 正忙，请稍后再试")
			}
		}
	}
}

// Handle runs the command in msg synchronously. ok is false when msg is
// not a command.
func (d *Dispatcher) Handle(ctx context.Context, msg *transport.Message) (reply string, ok bool) {
	cmd, args := d.match(msg.Text)
	if cmd == nil {
		return "", false
	}
	return d.run(ctx, cmd, msg, args), true
}

func (d *Dispatcher) match(text string) (*Command, []string) {
	parts := tokenize(text)
	if len(parts) == 0 {
		return nil, nil
	}
	word, slash := commandWord(parts[0])
	if c, ok := d.byName[word]; ok {
		return c, parts[1:]
	}
	if slash {
		if c, ok := d.byAlias[word]; ok {
			return c, parts[1:]
		}
	}
	return nil, nil
}

func (d *Dispatcher) exec(ctx context.Context, cmd *Command, msg *transport.Message, args []string) {
	text := d.run(ctx, cmd, msg, args)
	if text == "" {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.reply.SendText(sctx, msg.Chat, text); err != nil {
		d.log.Warn("reply failed", logx.String("cmd", cmd.Name), logx.String("dest", msg.Chat.String()), logx.Err(err))
	}
}

func (d *Dispatcher) run(ctx context.Context, cmd *Command, msg *transport.Message, args []string) (reply string) {
	req := &Request{
		Msg:  msg,
		Dest: msg.Chat.String(),
		Args: args,
		Log: d.log.With(
			logx.String("cmd", cmd.Name),
			logx.String("dest", msg.Chat.String()),
			logx.Int64("from_id", msg.FromID),
		),
	}
	defer func() {
		if r := recover(); r != nil {
			req.Log.Error("command panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			reply = fmt.Sprintf(replyUnknownFailed, cmd.Name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()
	reply = cmd.Handle(ctx, req)
	req.Log.Debug("command handled", logx.Duration("took", time.Since(start)))
	return reply
}

func (d *Dispatcher) createTask(ctx context.Context, req *Request) string {
	mention := d.pickMention(req.Msg.Mentions)
	args := withoutMentions(req.Args, req.Msg.Mentions)
	if len(args) < 2 {
		return usageCreate
	}

	task, err := d.reminders.Create(ctx, req.Dest, reminder.CreateRequest{
		TimeSpec:       args[0],
		Content:        strings.Join(args[1:], " "),
		Mention:        mention,
		AttachmentURLs: req.Msg.PhotoURLs,
	})
	switch {
	case err == nil:
		return replyCreated(task)
	case errors.Is(err, reminder.ErrInvalidTimeFormat), errors.Is(err, reminder.ErrInvalidTimeRange):
		return "❌ " + err.Error()
	case errors.Is(err, reminder.ErrInvalidArgument):
		return usageCreate
	default:
		req.Log.Warn("create failed", logx.Err(err))
		return fmt.Sprintf(replyUnknownFailed, "设置任务", err)
	}
}

// pickMention chooses the reminder recipient: the first mention that is not
// the bot itself.
func (d *Dispatcher) pickMention(mentions []string) string {
	for _, m := range mentions {
		if d.botUsername != "" && strings.EqualFold(strings.TrimPrefix(m, "@"), d.botUsername) {
			continue
		}
		return m
	}
	return ""
}

func withoutMentions(args, mentions []string) []string {
	if len(mentions) == 0 {
		return args
	}
	skip := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		skip[strings.ToLower(m)] = struct{}{}
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		if _, ok := skip[strings.ToLower(a)]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (d *Dispatcher) listTasks(ctx context.Context, req *Request) string {
	return replyList(d.reminders.List(req.Dest))
}

func (d *Dispatcher) deleteTask(ctx context.Context, req *Request) string {
	if len(req.Args) != 1 {
		return usageDelete
	}
	id, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return usageDelete
	}
	_, err = d.reminders.Delete(ctx, req.Dest, id)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ 已删除任务 #%d 并重新排序剩余任务ID", id)
	case errors.Is(err, reminder.ErrNoTasks):
		return replyNoTasks
	case errors.Is(err, reminder.ErrTaskNotFound):
		return replyNotFound(id)
	default:
		return fmt.Sprintf(replyUnknownFailed, "删除任务", err)
	}
}

func (d *Dispatcher) setCountdown(ctx context.Context, req *Request) string {
	if len(req.Args) != 2 {
		return usageCountdown
	}
	id, err1 := strconv.Atoi(req.Args[0])
	days, err2 := strconv.Atoi(req.Args[1])
	if err1 != nil || err2 != nil {
		return usageCountdown
	}
	_, err := d.reminders.AttachCountdown(ctx, req.Dest, id, days)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ 已为任务 #%d 设置 %d 天倒计时", id, days)
	case errors.Is(err, reminder.ErrInvalidArgument):
		return replyBadCountdown
	case errors.Is(err, reminder.ErrNoTasks):
		return "❌ " + replyNoTasks
	case errors.Is(err, reminder.ErrTaskNotFound):
		return replyNotFound(id)
	default:
		return fmt.Sprintf(replyUnknownFailed, "设置倒计时", err)
	}
}

func (d *Dispatcher) renumber(ctx context.Context, req *Request) string {
	n := d.reminders.Renumber(ctx, req.Dest)
	if n == 0 {
		return replyNoTasks
	}
	return fmt.Sprintf("✅ 已重新排序 %d 个任务的ID", n)
}

func (d *Dispatcher) help(ctx context.Context, req *Request) string {
	return helpText
}
