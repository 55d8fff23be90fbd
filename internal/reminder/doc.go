// Package reminder schedules recurring daily reminders per destination.
//
// A Store owns the destination table and its persistence. A Scheduler polls
// the wall clock and fires each task once per matching minute per day. A
// Service exposes create, list, delete, renumber and countdown operations.
package reminder
