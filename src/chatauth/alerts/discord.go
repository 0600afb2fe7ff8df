package alerts

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const maxFieldLen = 1024

// DiscordSink posts provisioning failures to an operations channel webhook.
type DiscordSink struct {
	session      *discordgo.Session
	webhookID    string
	webhookToken string
}

// NewDiscordSink parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordSink(webhookURL string) (*DiscordSink, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authorized by the token in the path.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{session: session, webhookID: id, webhookToken: token}, nil
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: expected /api/webhooks/<id>/<token>")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func (d *DiscordSink) Notify(ctx context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       "Chat provisioning failed",
		Description: fmt.Sprintf("Step `%s` failed; chat state may lag realm membership until the member logs in again.", ev.Step),
		Color:       0xE74C3C,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: "`" + ev.PubKey + "`"},
			{Name: "Realm", Value: "`" + ev.Realm + "`"},
			{Name: "Error", Value: truncate(ev.Error, maxFieldLen)},
		},
	}
	if ev.RequestID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "request " + ev.RequestID}
	}
	if !ev.Time.IsZero() {
		embed.Timestamp = ev.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	_, err := d.session.WebhookExecute(d.webhookID, d.webhookToken, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
