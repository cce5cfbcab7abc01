package email

// Config holds email service configuration.
// Postmark tokens are optional: without them the process falls back to
// DevSender, which writes messages to DevDir instead of sending them.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@localhost.localdomain"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost.localdomain"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./var/mail"`
}

// PostmarkEnabled reports whether both Postmark tokens are configured.
func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
