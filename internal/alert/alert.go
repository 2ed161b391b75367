// Package alert pushes operational failures to the people running the
// service.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Field is a labelled value, rendered as "key: value".
type Field struct {
	Key   string
	Value string
}

// Message is either free text lines, a set of fields or both.
type Message struct {
	Subject string
	Lines   []string
	Fields  []Field
}

func (m Message) String() string {
	parts := []string{}
	if m.Subject != "" {
		parts = append(parts, m.Subject)
	}
	parts = append(parts, m.Lines...)
	for _, f := range m.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Key, f.Value))
	}
	return strings.Join(parts, "\n")
}

type Notifier interface {
	Alert(ctx context.Context, msg Message) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Alert(context.Context, Message) error { return nil }

// Multi sends to every notifier, failures are joined.
type Multi []Notifier

func (m Multi) Alert(ctx context.Context, msg Message) error {
	errs := []error{}
	for _, n := range m {
		if err := n.Alert(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Failure builds the message sent when a job fails for good.
func Failure(route string, err error) Message {
	return Message{
		Subject: "Falha ao processar requisição",
		Fields: []Field{
			{Key: "rota", Value: route},
			{Key: "erro", Value: err.Error()},
		},
	}
}
