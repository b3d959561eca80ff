// Package notification renders and delivers transactional email: OTP codes,
// password reset confirmations and clinic review outcomes.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Template IDs used by the domain services.
const (
	TemplateVerifyEmail       = "verify-email"
	TemplateResendOTP         = "resend-otp"
	TemplatePasswordResetOTP  = "password-reset-otp"
	TemplatePasswordResetDone = "password-reset-done"
	TemplateClinicPending     = "clinic-pending"
	TemplateClinicApproved    = "clinic-approved"
	TemplateClinicRejected    = "clinic-rejected"
)

// EmailSender delivers a single rendered message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notifier is what domain services depend on. Delivery is best effort; an
// error means the message could not be queued or rendered.
type Notifier interface {
	Notify(ctx context.Context, templateID, to string, data map[string]string) error
}

// Template is a subject and body with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine holds the registered templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine with the clinic templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtIn {
		e.templates[t.ID] = t
	}
	return e
}

var builtIn = []Template{
	{
		ID:      TemplateVerifyEmail,
		Subject: "Email Verification - Your OTP Code",
		Body:    "Hello {{name}},\n\nYour verification code is {{otp}}. It expires in {{ttl_minutes}} minutes.\n\nIf you did not create an account, you can ignore this email.",
	},
	{
		ID:      TemplateResendOTP,
		Subject: "Email Verification - New OTP Code",
		Body:    "Hello {{name}},\n\nYour new verification code is {{otp}}. It expires in {{ttl_minutes}} minutes.",
	},
	{
		ID:      TemplatePasswordResetOTP,
		Subject: "Password Reset - Your OTP Code",
		Body:    "Hello {{name}},\n\nUse the code {{otp}} to reset your password. It expires in {{ttl_minutes}} minutes.\n\nIf you did not request a reset, no action is needed.",
	},
	{
		ID:      TemplatePasswordResetDone,
		Subject: "Password Reset Successful",
		Body:    "Hello {{name}},\n\nYour password was changed. If this was not you, contact the clinic administrator immediately.",
	},
	{
		ID:      TemplateClinicPending,
		Subject: "New Clinic Pending Approval",
		Body:    "Dr. {{doctor_name}} submitted the clinic \"{{clinic_name}}\" ({{clinic_address}}) for review.",
	},
	{
		ID:      TemplateClinicApproved,
		Subject: "Clinic Approved!",
		Body:    "Hello Dr. {{doctor_name}},\n\nYour clinic \"{{clinic_name}}\" has been approved. Patients can now find and book you.",
	},
	{
		ID:      TemplateClinicRejected,
		Subject: "Clinic Application Update",
		Body:    "Hello Dr. {{doctor_name}},\n\nYour clinic \"{{clinic_name}}\" was not approved.\n\nReason: {{reason}}\n\nYou can update the details and submit again.",
	},
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without a value are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
