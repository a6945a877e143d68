// Package digest posts a scheduled weekly summary of active projects
// to a configured channel, with a short model-written retro blurb.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/brrr-bot/brrr/internal/provider"
	"github.com/brrr-bot/brrr/internal/store"
	"github.com/brrr-bot/brrr/pkg/models"
)

// Sender delivers digest text to a channel. The Discord adapter
// satisfies this.
type Sender interface {
	Send(channelID, content string) error
}

// Config holds the digest schedule and destination.
type Config struct {
	// Schedule is a cron expression, e.g. "0 9 * * MON".
	Schedule string

	// ChannelID is the channel the digest is posted to.
	ChannelID string

	// Model is the model used for the retro blurb.
	Model string
}

// Digest runs the weekly project summary on a cron schedule. Model
// calls go through the same serialized client as conversation turns.
type Digest struct {
	store  *store.Store
	client provider.Client
	sender Sender
	config Config
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a digest scheduler.
func New(st *store.Store, client provider.Client, sender Sender, config Config, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{
		store:  st,
		client: client,
		sender: sender,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "digest"),
	}
}

// Start schedules the digest and runs it until ctx is cancelled.
func (d *Digest) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.config.Schedule, func() {
		if err := d.Post(ctx); err != nil {
			d.logger.Error("posting digest failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("digest: invalid schedule %q: %w", d.config.Schedule, err)
	}

	d.cron.Start()
	d.logger.Info("digest scheduled", "schedule", d.config.Schedule, "channel_id", d.config.ChannelID)

	go func() {
		<-ctx.Done()
		<-d.cron.Stop().Done()
	}()
	return nil
}

// Post composes and sends one digest immediately.
func (d *Digest) Post(ctx context.Context) error {
	projects, err := d.store.ActiveProjects(ctx)
	if err != nil {
		return fmt.Errorf("digest: load projects: %w", err)
	}
	if len(projects) == 0 {
		return d.sender.Send(d.config.ChannelID, "No active projects this week. Time to pick an idea and go brrr!")
	}

	body, stats := d.summarize(ctx, projects)

	if blurb := d.retroBlurb(ctx, stats); blurb != "" {
		body += "\n\n" + blurb
	}

	return d.sender.Send(d.config.ChannelID, body)
}

// summarize builds the per-project checklist overview and a compact
// stats line used to prompt the retro blurb.
func (d *Digest) summarize(ctx context.Context, projects []*models.Project) (body string, stats string) {
	var b strings.Builder
	b.WriteString("**Weekly project digest**\n")

	var statLines []string
	for _, p := range projects {
		tasks, err := d.store.ListTasks(ctx, p.ID)
		if err != nil {
			d.logger.Warn("loading tasks failed", "project_id", p.ID, "error", err)
		}
		done := 0
		for _, t := range tasks {
			if t.Done {
				done++
			}
		}
		fmt.Fprintf(&b, "\n**%s** - %d/%d tasks done", p.Title, done, len(tasks))
		if p.Description != "" {
			fmt.Fprintf(&b, "\n  %s", p.Description)
		}
		statLines = append(statLines, fmt.Sprintf("%s: %d/%d tasks done", p.Title, done, len(tasks)))
	}
	return b.String(), strings.Join(statLines, "; ")
}

// retroBlurb asks the model for a short celebratory summary. Failures
// degrade to a digest without the blurb.
func (d *Digest) retroBlurb(ctx context.Context, stats string) string {
	resp, err := d.client.Invoke(ctx, &provider.ChatRequest{
		Model:  d.config.Model,
		System: "You are BRRR Bot, celebrating weekly project progress. Be enthusiastic!",
		Messages: []models.ChatMessage{{
			Role: models.RoleUser,
			Content: fmt.Sprintf(
				"Write a 2-3 sentence weekly retro summary celebrating wins and noting what to carry forward. This week's progress: %s",
				stats),
		}},
		MaxTokens: 200,
	})
	if err != nil {
		d.logger.Warn("retro blurb failed", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Text)
}
