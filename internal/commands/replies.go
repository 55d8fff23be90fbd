package commands

import (
	"fmt"
	"strings"

	"remindbot/internal/reminder"
)

const (
	replyNoTasks       = "当前会话没有设置任何定时任务"
	replyBadCountdown  = "❌ 倒计时天数必须大于0"
	replyListHeader    = "📋 当前会话的定时任务列表："
	usageCreate        = "❌ 用法：设置任务 <时间> <内容> [@用户] [图片]"
	usageDelete        = "❌ 用法：删除任务 <任务ID>"
	usageCountdown     = "❌ 用法：设置倒计时 <任务ID> <天数>"
	replyUnknownFailed = "❌ %s失败：%v"
)

func replyCreated(t reminder.Task) string {
	h, m, _ := reminder.ParseTime(t.TimeSpec)
	var b strings.Builder
	fmt.Fprintf(&b, "✅ 已设置任务 #%d：将在每天 %s 提醒「%s」", t.ID, reminder.FormatTime(h, m), t.Content)
	if t.Mention != "" {
		fmt.Fprintf(&b, "，并会AT用户 %s", t.Mention)
	}
	if n := len(t.Attachments); n > 0 {
		fmt.Fprintf(&b, "，附带 %d 张图片", n)
	}
	return b.String()
}

func replyNotFound(id int) string {
	return fmt.Sprintf("❌ 未找到ID为 %d 的任务", id)
}

func replyList(tasks []reminder.TaskView) string {
	if len(tasks) == 0 {
		return replyNoTasks
	}
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, replyListHeader)
	for _, t := range tasks {
		var b strings.Builder
		fmt.Fprintf(&b, "#%d: %s - %s", t.ID, t.TimeSpec, t.Content)
		if t.Countdown != nil {
			fmt.Fprintf(&b, " (剩余 %d 天)", t.DaysLeft)
		}
		if t.Mention != "" {
			fmt.Fprintf(&b, " (AT用户 %s)", t.Mention)
		}
		if n := len(t.Attachments); n > 0 {
			fmt.Fprintf(&b, " (附带 %d 张图片)", n)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

const helpText = `📅 定时任务使用指南 📅

【指令列表】
1️⃣ 设置任务 <时间> <内容>  (/settask)
   例如: 设置任务 8时30分 早会提醒
   例如: 设置任务 8时30分 早会提醒 @用户
   例如: 设置任务 8时30分 早会提醒 [图片]
   说明: 创建一个每天固定时间的提醒任务，可以@指定用户，也可以包含图片

2️⃣ 任务列表  (/tasks)
   说明: 显示当前会话的所有定时任务

3️⃣ 删除任务 <任务ID>  (/deltask)
   例如: 删除任务 1
   说明: 删除指定ID的定时任务（会自动重排序剩余任务ID）

4️⃣ 设置倒计时 <任务ID> <天数>  (/countdown)
   例如: 设置倒计时 1 30
   说明: 为指定ID的任务设置倒计时天数，倒计时结束后任务将自动停止

5️⃣ 重排任务ID  (/renumber)
   说明: 手动重新排序当前会话的所有任务ID，使其连续

6️⃣ timedtask_help  (/help)
   说明: 显示此帮助信息

【时间格式】
· XX时XX分: 例如 8时30分, 12时0分
· HHMM: 例如 0830, 1200
· HH:MM: 例如 08:30, 12:00

【提示】
· 任务ID在设置任务后会自动分配，每个会话独立编号
· 任务会在每天设定的时间提醒
· 倒计时任务会显示剩余天数
· 删除任务后会自动重排序剩余任务ID
· 重启后任务不会丢失`
