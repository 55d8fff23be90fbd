// Package media downloads reminder attachments to local storage and
// removes files that no task references anymore.
package media
