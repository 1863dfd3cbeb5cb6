package onboard

import (
	"context"
	"fmt"
)

// Message is a human-readable notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers notifications. Most callers treat delivery as
// best-effort: a failure is logged and swallowed because the primary
// state transition has already committed. The forgot-password flow is
// the exception; there the caller surfaces the failure.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, Message) error {
	return nil
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

// notifyBestEffort delivers msg and swallows any failure. The message
// body may reference record ids but never secret material.
func notifyBestEffort(ctx context.Context, mailer Mailer, logger Logger, msg Message) {
	if err := normalizeMailer(mailer).Send(ctx, msg); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("notification delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}

func applicationSubmittedMessage(adminEmail string, app *InstructorApplication) Message {
	return Message{
		To:      adminEmail,
		Subject: "New instructor application",
		Body: fmt.Sprintf(
			"%s (%s) applied to become an instructor. Application id: %s",
			app.Name, app.Email, app.ID,
		),
	}
}

func applicationApprovedMessage(app *InstructorApplication) Message {
	return Message{
		To:      app.Email,
		Subject: "Your instructor application was approved",
		Body: fmt.Sprintf(
			"Congratulations %s! You can now sign in with your existing credentials as an instructor.",
			app.Name,
		),
	}
}

func applicationRejectedMessage(app *InstructorApplication) Message {
	body := fmt.Sprintf("Hello %s, your instructor application was not approved.", app.Name)
	if app.RejectionReason != "" {
		body += fmt.Sprintf(" Reason: %s", app.RejectionReason)
	}
	return Message{
		To:      app.Email,
		Subject: "Your instructor application was rejected",
		Body:    body,
	}
}

func temporaryPasswordMessage(user *User, plaintext string) Message {
	return Message{
		To:      user.Email,
		Subject: "Your temporary password",
		Body: fmt.Sprintf(
			"Hello %s, your temporary password is: %s\nYou will be asked to change it after signing in.",
			user.Name, plaintext,
		),
	}
}
