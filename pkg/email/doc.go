// Package email sends transactional messages such as verification and
// password reset codes.
//
// The package is built around the EmailSender interface. Two implementations
// are provided:
//   - PostmarkClient for production delivery through Postmark
//   - DevSender for local development (saves emails to disk)
//
// All implementations validate SendEmailParams before sending and report
// failures wrapped in ErrFailedToSendEmail.
//
// # Usage
//
//	cfg := email.Config{
//		PostmarkServerToken:  "server-token",
//		PostmarkAccountToken: "account-token",
//		SenderEmail:          "no-reply@example.com",
//		SupportEmail:         "support@example.com",
//	}
//
//	var sender email.EmailSender
//	if cfg.PostmarkEnabled() {
//		sender = email.MustNewPostmarkClient(cfg)
//	} else {
//		sender = email.NewDevSender(cfg.DevDir)
//	}
//
//	err := sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Your verification code",
//		BodyHTML: "<p>Your code is 123456</p>",
//		BodyText: "Your code is 123456",
//		Tag:      "registration",
//	})
//
// Link and open tracking are disabled for Postmark messages.
//
// # Development
//
// DevSender writes <timestamp>_<tag>.html and a matching .json metadata file
// with 0600 permissions for every message.
package email
