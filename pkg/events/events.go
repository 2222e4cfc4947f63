// Package events publishes expression changes for other processes to
// react to, such as a chat bot or a smart-light bridge.
package events

import "time"

// Expressions is published whenever the visible faces or their
// expressions change.
type Expressions struct {
	Faces       int       `json:"faces"`
	Expressions []string  `json:"expressions"`
	Time        time.Time `json:"time"`
}

// Publisher delivers events. Publish must not block the caller.
type Publisher interface {
	Publish(Expressions)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Expressions) {}
