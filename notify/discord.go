package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var _ Notifier = (*Discord)(nil)

// messageSender is the subset of *discordgo.Session used to post notices.
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts update notices to a channel.
type Discord struct {
	session   messageSender
	channelID string
	close     func() error
}

// DiscordParams holds configuration for creating a Discord notifier.
type DiscordParams struct {
	Config DiscordConfig
	// Session overrides the session built from Config.Token.
	Session messageSender
}

// NewDiscord creates a Discord notifier. Call Open before the first notice
// when the session is built from a token.
func NewDiscord(p DiscordParams) (*Discord, error) {
	if p.Config.ChannelID == "" {
		return nil, errors.New("notify: discord channel id is required")
	}

	d := &Discord{channelID: p.Config.ChannelID}
	if p.Session != nil {
		d.session = p.Session
		return d, nil
	}

	if p.Config.Token == "" {
		return nil, errors.New("notify: discord token is required")
	}
	session, err := discordgo.New("Bot " + p.Config.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	d.session = session
	d.close = session.Close
	return d, nil
}

// Open connects the underlying session, if one was built from a token.
func (d *Discord) Open() error {
	s, ok := d.session.(*discordgo.Session)
	if !ok {
		return nil
	}
	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	return nil
}

func (d *Discord) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func (d *Discord) NotifyUpdate(_ context.Context, n Notice) error {
	if d.session == nil {
		return errors.New("discord session is nil")
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, FormatMessage(n)); err != nil {
		return fmt.Errorf("post update notice: %w", err)
	}
	return nil
}

// FormatMessage renders a notice as a short chat message.
func FormatMessage(n Notice) string {
	headline := "**Update available**"
	if n.Required {
		headline = "**Update required**"
	}
	msg := fmt.Sprintf("%s: %s → %s", headline, n.InstalledVersion, n.StoreVersion)
	if n.StoreURL != "" {
		msg += "\n" + n.StoreURL
	}
	return msg
}
