package reminder

import (
	"fmt"
	"strings"

	"remindbot/internal/transport"
)

// Notification renders the reminder message for t. daysLeft is used only
// when t has a countdown.
func Notification(t Task, daysLeft int) []transport.Segment {
	segs := make([]transport.Segment, 0, 3+2*len(t.Attachments))
	if t.Mention != "" {
		segs = append(segs, transport.Mention(t.Mention), transport.Text("\n"))
	}

	var b strings.Builder
	b.WriteString("⏰ 定时提醒：\n")
	fmt.Fprintf(&b, "📝 内容：%s\n", t.Content)
	if t.Mention != "" {
		fmt.Fprintf(&b, "👤 提醒对象：%s\n", t.Mention)
	}
	if t.Countdown != nil {
		fmt.Fprintf(&b, "⌛ 倒计时：剩余 %d 天\n", daysLeft)
	}
	fmt.Fprintf(&b, "🔔 任务ID：#%d", t.ID)
	segs = append(segs, transport.Text(b.String()))

	if len(t.Attachments) > 0 {
		segs = append(segs, transport.Text("\n\n📷 附带图片："))
		for _, p := range t.Attachments {
			segs = append(segs, transport.Text("\n"), transport.Image(p))
		}
	}
	return segs
}
