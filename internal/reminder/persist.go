package reminder

import (
	"time"

	"remindbot/internal/storage"
	"remindbot/pkg/logx"
)

func toDocument(dests map[string]*bucket) *storage.Document {
	doc := storage.NewDocument()
	for dest, b := range dests {
		doc.NextIDs[dest] = b.nextID
		if len(b.tasks) == 0 {
			continue
		}
		recs := make([]storage.Record, 0, len(b.tasks))
		for _, t := range b.tasks {
			recs = append(recs, toRecord(t))
		}
		doc.Tasks[dest] = recs
	}
	return doc
}

func toRecord(t Task) storage.Record {
	r := storage.Record{
		Time:    t.TimeSpec,
		Content: t.Content,
		ID:      t.ID,
		Images:  append([]string{}, t.Attachments...),
	}
	if t.Countdown != nil {
		days := t.Countdown.Days
		start := t.Countdown.StartDate.Format(dateLayout)
		r.CountdownDays = &days
		r.StartDate = &start
	}
	if t.Mention != "" {
		m := t.Mention
		r.Target = &m
	}
	return r
}

// fromDocument migrates a loaded document into the table. Counters that are
// missing or behind the highest id are rebuilt as max(id)+1.
func fromDocument(doc *storage.Document, log logx.Logger) map[string]*bucket {
	out := map[string]*bucket{}
	for dest, recs := range doc.Tasks {
		b := &bucket{tasks: make([]Task, 0, len(recs))}
		maxID := -1
		for _, r := range recs {
			t := fromRecord(r, dest, log)
			if t.ID > maxID {
				maxID = t.ID
			}
			b.tasks = append(b.tasks, t)
		}
		next, ok := doc.NextIDs[dest]
		switch {
		case !ok:
			next = maxID + 1
		case next < maxID+1:
			log.Warn("next id behind stored ids, rebuilt", logx.String("dest", dest), logx.Int("stored", next), logx.Int("next_id", maxID+1))
			next = maxID + 1
		}
		b.nextID = next
		out[dest] = b
	}
	for dest, next := range doc.NextIDs {
		if _, ok := out[dest]; ok {
			continue
		}
		if next < 0 {
			next = 0
		}
		out[dest] = &bucket{nextID: next}
	}
	return out
}

func fromRecord(r storage.Record, dest string, log logx.Logger) Task {
	t := Task{
		ID:          r.ID,
		TimeSpec:    r.Time,
		Content:     r.Content,
		Attachments: append([]string(nil), r.Images...),
	}
	if r.Target != nil {
		t.Mention = *r.Target
	}
	// Countdown fields are kept only as a pair.
	if r.CountdownDays != nil && r.StartDate != nil {
		start, err := time.ParseInLocation(dateLayout, *r.StartDate, time.Local)
		if err != nil {
			log.Warn("bad countdown start date, countdown dropped", logx.String("dest", dest), logx.Int("task_id", r.ID), logx.Err(err))
		} else {
			t.Countdown = &Countdown{Days: *r.CountdownDays, StartDate: start}
		}
	}
	return t
}
