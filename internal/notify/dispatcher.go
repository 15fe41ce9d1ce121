// Package notify consumes the notification queue and delivers templated
// email. Rendering pulls current entity state, so a notification enqueued
// before a rename still shows the latest title.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"ecojourney/pkg/domain"
	"ecojourney/pkg/mailer"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/store"
)

// Dispatcher turns queued notifications into outbound email.
type Dispatcher struct {
	store    store.Store
	mailer   mailer.Mailer
	queue    queue.Queue
	baseURL  string
	siteName string
}

type Config struct {
	Store    store.Store
	Mailer   mailer.Mailer
	Queue    queue.Queue
	BaseURL  string
	SiteName string
}

// New builds a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	siteName := strings.TrimSpace(cfg.SiteName)
	if siteName == "" {
		siteName = "EcoJourney"
	}
	return &Dispatcher{
		store:    cfg.Store,
		mailer:   cfg.Mailer,
		queue:    cfg.Queue,
		baseURL:  baseURL,
		siteName: siteName,
	}, nil
}

// Start launches queue consumers until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context, concurrency int) {
	d.queue.Start(ctx, concurrency, d.Deliver)
}

// Deliver renders and sends one notification. A returned error requeues the
// job per the queue's retry policy.
func (d *Dispatcher) Deliver(ctx context.Context, n domain.Notification) error {
	user, ok, err := d.store.GetUserByID(n.UserID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		// recipient deleted since enqueue; nothing to retry
		slog.Warn("notification recipient gone", "kind", n.Kind, "user_id", n.UserID)
		return nil
	}

	data := mailer.TemplateData{
		UserName:     user.Username,
		Feedback:     n.Feedback,
		RoleName:     string(user.Role),
		DashboardURL: d.baseURL + "/dashboard",
		SiteName:     d.siteName,
	}
	if n.ContentID != "" {
		content, ok, err := d.store.GetContent(n.ContentID)
		if err != nil {
			return fmt.Errorf("fetch content: %w", err)
		}
		if ok {
			data.ContentTitle = content.Title
		}
	}
	if n.Kind == domain.NotifyPasswordReset {
		data.ResetLink = d.baseURL + "/reset-password?token=" + url.QueryEscape(n.Token)
	}

	subject, body, err := mailer.Render(n.Kind, data)
	if err != nil {
		// unknown kind will not get better on retry
		slog.Error("render notification", "kind", n.Kind, "err", err)
		return nil
	}
	if err := d.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	slog.Info("notification sent", "kind", n.Kind, "user_id", user.ID)
	return nil
}
