package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
)

// Notifier renders connection emails and writes them to the outbox of the
// caller's transaction. Delivery happens after commit, so a mail failure can
// never roll back a connection change.
type Notifier interface {
	ConnectionStarted(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, message string) error
	RoleChanged(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, from, to string) error
	MessagePosted(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, content string) error
	MentorWelcome(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent) error
	AnonymousInvitation(ctx context.Context, repos *repository.Repositories, invite *domain.AnonymousConnection, org *domain.Organization, message string) error
}

// ConnectionEvent identifies a connection change and the side that made it.
type ConnectionEvent struct {
	Connection   *domain.Connection
	Profile      *domain.Profile
	Organization *domain.Organization
	Actor        domain.Side
}

type mailData struct {
	Program        string
	ProfileName    string
	OrgName        string
	ConnectionURL  string
	ByOrganization bool
	From           string
	To             string
	Message        string
	WelcomeMessage string
	InviteURL      string
	ExpiresOn      string
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var mailTemplates = map[domain.NotificationKind]mailTemplate{
	domain.NotificationNewConnection: mustMailTemplate("new_connection",
		`New connection to {{.OrgName}}`,
		`{{if .ByOrganization}}{{.OrgName}} started a connection with you for {{.Program}}.{{else}}{{.ProfileName}} would like to connect with {{.OrgName}} for {{.Program}}.{{end}}
{{with .Message}}
Message:
{{.}}
{{end}}
Review the connection: {{.ConnectionURL}}
`),
	domain.NotificationRoleChanged: mustMailTemplate("role_changed",
		`Connection between {{.ProfileName}} and {{.OrgName}} updated`,
		`{{if .ByOrganization}}{{.OrgName}}{{else}}{{.ProfileName}}{{end}} changed their selection from {{.From}} to {{.To}}.

Review the connection: {{.ConnectionURL}}
`),
	domain.NotificationNewMessage: mustMailTemplate("new_message",
		`New message on the connection between {{.ProfileName}} and {{.OrgName}}`,
		`{{if .ByOrganization}}{{.OrgName}}{{else}}{{.ProfileName}}{{end}} wrote:

{{.Message}}

Reply: {{.ConnectionURL}}
`),
	domain.NotificationMentorWelcome: mustMailTemplate("mentor_welcome",
		`Welcome to {{.Program}}`,
		`Hello {{.ProfileName}},

{{.WelcomeMessage}}
`),
	domain.NotificationAnonymousOffer: mustMailTemplate("anonymous_invitation",
		`Invitation to join {{.OrgName}} as {{.To}}`,
		`{{.OrgName}} invited you to join {{.Program}} as {{.To}}.
{{with .Message}}
Message:
{{.}}
{{end}}
Register and accept the invitation before {{.ExpiresOn}}: {{.InviteURL}}
`),
}

func mustMailTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

type outboxNotifier struct {
	programName    string
	baseURL        string
	welcomeMessage string
}

func NewOutboxNotifier(programName, baseURL, welcomeMessage string) Notifier {
	return &outboxNotifier{
		programName:    programName,
		baseURL:        strings.TrimRight(baseURL, "/"),
		welcomeMessage: welcomeMessage,
	}
}

func (n *outboxNotifier) ConnectionStarted(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, message string) error {
	data := n.eventData(ev)
	data.Message = message
	return n.notifyOtherSide(ctx, repos, domain.NotificationNewConnection, ev, data)
}

func (n *outboxNotifier) RoleChanged(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, from, to string) error {
	data := n.eventData(ev)
	data.From = from
	data.To = to
	return n.notifyOtherSide(ctx, repos, domain.NotificationRoleChanged, ev, data)
}

func (n *outboxNotifier) MessagePosted(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent, content string) error {
	data := n.eventData(ev)
	data.Message = content
	return n.notifyOtherSide(ctx, repos, domain.NotificationNewMessage, ev, data)
}

// MentorWelcome is a no-op when no welcome message is configured.
func (n *outboxNotifier) MentorWelcome(ctx context.Context, repos *repository.Repositories, ev ConnectionEvent) error {
	if n.welcomeMessage == "" || ev.Profile.Email == "" {
		return nil
	}
	data := n.eventData(ev)
	data.WelcomeMessage = n.welcomeMessage
	return n.enqueue(ctx, repos, domain.NotificationMentorWelcome, &ev.Connection.ID, []string{ev.Profile.Email}, data)
}

func (n *outboxNotifier) AnonymousInvitation(ctx context.Context, repos *repository.Repositories, invite *domain.AnonymousConnection, org *domain.Organization, message string) error {
	data := mailData{
		Program:   n.programName,
		OrgName:   org.Name,
		To:        invite.OrgRole.VerboseName(),
		Message:   message,
		InviteURL: fmt.Sprintf("%s/invitations/%s", n.baseURL, invite.Token),
		ExpiresOn: invite.ExpiresOn.UTC().Format("January 2, 2006 15:04 MST"),
	}
	return n.enqueue(ctx, repos, domain.NotificationAnonymousOffer, nil, []string{invite.Email}, data)
}

func (n *outboxNotifier) eventData(ev ConnectionEvent) mailData {
	return mailData{
		Program:        n.programName,
		ProfileName:    ev.Profile.Name,
		OrgName:        ev.Organization.Name,
		ConnectionURL:  fmt.Sprintf("%s/connections/%d", n.baseURL, ev.Connection.ID),
		ByOrganization: ev.Actor == domain.SideOrg,
	}
}

func (n *outboxNotifier) notifyOtherSide(ctx context.Context, repos *repository.Repositories, kind domain.NotificationKind, ev ConnectionEvent, data mailData) error {
	recipients, err := recipientsFor(ctx, repos, otherSide(ev.Actor), ev.Profile, ev.Organization.ID)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, repos, kind, &ev.Connection.ID, recipients, data)
}

func (n *outboxNotifier) enqueue(ctx context.Context, repos *repository.Repositories, kind domain.NotificationKind, connectionID *int32, recipients []string, data mailData) error {
	if len(recipients) == 0 {
		logger.Debug("No recipients for notification", "kind", kind)
		return nil
	}

	tmpl := mailTemplates[kind]
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render %s body: %w", kind, err)
	}

	// One row per address, so a failed delivery is retried for that address only.
	for _, addr := range recipients {
		note := &domain.Notification{
			Kind:         kind,
			ConnectionID: connectionID,
			Recipients:   []string{addr},
			Subject:      subject.String(),
			Body:         body.String(),
		}
		if err := repos.Notifications.Enqueue(ctx, note); err != nil {
			return fmt.Errorf("failed to enqueue %s notification: %w", kind, err)
		}
		telemetry.NotificationsEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	}
	return nil
}

// recipientsFor returns the addresses notified on behalf of side: the profile
// owner, or the organization's administrators who opted in. The connection's
// own profile is never notified as an administrator.
func recipientsFor(ctx context.Context, repos *repository.Repositories, side domain.Side, profile *domain.Profile, orgID int32) ([]string, error) {
	if side == domain.SideUser {
		if profile.NotifyConnectionUpdates && profile.Email != "" {
			return []string{profile.Email}, nil
		}
		return nil, nil
	}

	admins, err := repos.Profiles.ListOrgAdmins(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins of organization %d: %w", orgID, err)
	}
	var emails []string
	for _, admin := range admins {
		if admin.ID == profile.ID || !admin.NotifyConnectionUpdates || admin.Email == "" {
			continue
		}
		emails = append(emails, admin.Email)
	}
	return emails, nil
}

func otherSide(side domain.Side) domain.Side {
	if side == domain.SideUser {
		return domain.SideOrg
	}
	return domain.SideUser
}
