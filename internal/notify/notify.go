// Package notify envoie les notifications sortantes (webhook).
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier envoie un message vers un canal externe.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Message est une notification lisible.
type Message struct {
	Title    string
	Text     string
	Severity string
}

// WebhookNotifier poste {"text": ...} en JSON sur une URL entrante.
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

// NewWebhookNotifier renvoie nil quand aucune URL n'est configurée.
func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(5*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})
	return &WebhookNotifier{url: url, client: client}
}

// Notify envoie le message; un notifier non configuré ne fait rien.
func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if n == nil || n.url == "" {
		return nil
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"text": Format(msg)}).
		Post(n.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook: statut %d", resp.StatusCode())
	}
	return nil
}

// Format rend le message en texte simple.
func Format(msg Message) string {
	prefix := "[info]"
	switch msg.Severity {
	case "warning":
		prefix = "[attention]"
	case "critical":
		prefix = "[critique]"
	}
	if msg.Title != "" {
		return prefix + " " + msg.Title + "\n" + msg.Text
	}
	return prefix + " " + msg.Text
}

// Nop ignore les messages.
type Nop struct{}

// Notify ne fait rien.
func (Nop) Notify(context.Context, Message) error { return nil }
