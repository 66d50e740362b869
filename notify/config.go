package notify

// DiscordConfig holds Discord notifier configuration. An empty Token
// disables the notifier.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// NATSConfig holds NATS notifier configuration. An empty URL disables
// the notifier.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Defaults applies default values to the config.
func (c *NATSConfig) Defaults() {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
}
