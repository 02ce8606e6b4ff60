// Package email sends task assignment mail via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppURL   string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config   Config
	server   string
	auth     smtp.Auth
	sendMail sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config:   config,
		server:   config.Host + ":" + config.Port,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	boundary := "boundary-taskboard"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.sendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type AssignmentData struct {
	AppName    string
	UserName   string
	AssignedBy string
	TaskTitle  string
	TaskURL    string
}

// SendAssignmentEmail tells a user they were put on a task.
func (s *Service) SendAssignmentEmail(to, userName, assignedBy string, taskID int64, taskTitle string) error {
	data := AssignmentData{
		AppName:    "Taskboard",
		UserName:   userName,
		AssignedBy: assignedBy,
		TaskTitle:  taskTitle,
		TaskURL:    fmt.Sprintf("%s/tasks/%d", strings.TrimRight(s.config.AppURL, "/"), taskID),
	}

	html, err := renderTemplate(assignmentEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render assignment template: %w", err)
	}
	text := fmt.Sprintf("%s assigned you to %q: %s", data.AssignedBy, data.TaskTitle, data.TaskURL)
	return s.SendHTMLEmail([]string{to}, "New task assignment: "+taskTitle, text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const assignmentEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New task assignment</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.UserName}},</p>

    <p>{{.AssignedBy}} assigned you to <strong>{{.TaskTitle}}</strong>.</p>

    <p>
        <a href="{{.TaskURL}}" class="button">Open Task</a>
    </p>

    <div class="footer">
        <p>You are receiving this because you are an assignee on this task.</p>
    </div>
</body>
</html>`
