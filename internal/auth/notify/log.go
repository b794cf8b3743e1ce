package notify

import "log/slog"

// LogMailer writes messages to the log instead of delivering them. Used in
// dev environments without SMTP credentials.
type LogMailer struct {
	Logger *slog.Logger
}

func (l *LogMailer) Send(to, subject, htmlBody, textBody string) error {
	l.Logger.Info("email (log transport)",
		"to", to,
		"subject", subject,
		"text", textBody,
	)
	return nil
}

// LogSMSSender logs text messages instead of delivering them.
type LogSMSSender struct {
	Logger *slog.Logger
}

func (l *LogSMSSender) Send(to, text string) error {
	l.Logger.Info("sms (log transport)", "to", to, "text", text)
	return nil
}
