package service_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

// memStore keeps every table in memory. WithinTx serializes units of work and
// restores the previous state when fn fails, like a rolled back transaction.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID        int32
	now           time.Time
	connections   map[int32]domain.Connection
	messages      []domain.ConnectionMessage
	profiles      map[int32]domain.Profile
	orgs          map[int32]domain.Organization
	notifications []domain.Notification
	invites       map[int32]domain.AnonymousConnection

	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		now:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		connections: map[int32]domain.Connection{},
		profiles:    map[int32]domain.Profile{},
		orgs:        map[int32]domain.Organization{},
		invites:     map[int32]domain.AnonymousConnection{},
	}
}

type memSnapshot struct {
	nextID        int32
	connections   map[int32]domain.Connection
	messages      []domain.ConnectionMessage
	profiles      map[int32]domain.Profile
	notifications []domain.Notification
	invites       map[int32]domain.AnonymousConnection
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := make(map[int32]domain.Profile, len(s.profiles))
	for id, p := range s.profiles {
		p.MentorFor = slices.Clone(p.MentorFor)
		p.AdminFor = slices.Clone(p.AdminFor)
		profiles[id] = p
	}
	return memSnapshot{
		nextID:        s.nextID,
		connections:   maps.Clone(s.connections),
		messages:      slices.Clone(s.messages),
		profiles:      profiles,
		notifications: slices.Clone(s.notifications),
		invites:       maps.Clone(s.invites),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.connections = snap.connections
	s.messages = snap.messages
	s.profiles = snap.profiles
	s.notifications = snap.notifications
	s.invites = snap.invites
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.txCount++

	snap := s.snapshot()
	if err := fn(ctx, s.Repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Repos() *repository.Repositories {
	return &repository.Repositories{
		Connections:          memConnections{s},
		Messages:             memMessages{s},
		Profiles:             memProfiles{s},
		Organizations:        memOrgs{s},
		Notifications:        memNotifications{s},
		AnonymousConnections: memInvites{s},
	}
}

func (s *memStore) id() int32 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *memStore) addOrg(o domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *memStore) profile(id int32) domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

func (s *memStore) connectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *memStore) messagesFor(connectionID int32) []domain.ConnectionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConnectionMessage
	for _, m := range s.messages {
		if m.ConnectionID == connectionID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) auditMessages(connectionID int32) []string {
	var out []string
	for _, m := range s.messagesFor(connectionID) {
		if m.IsAutoGenerated {
			out = append(out, m.Content)
		}
	}
	return out
}

func (s *memStore) notificationsOf(kind domain.NotificationKind) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type memConnections struct{ s *memStore }

func (r memConnections) Create(ctx context.Context, conn *domain.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.connections {
		if c.ProfileID == conn.ProfileID && c.OrganizationID == conn.OrganizationID {
			return &domain.ConflictError{ProfileID: conn.ProfileID, OrganizationID: conn.OrganizationID}
		}
	}
	conn.ID = r.s.id()
	conn.CreatedOn = r.s.now
	conn.LastModified = r.s.now
	r.s.connections[conn.ID] = *conn
	return nil
}

func (r memConnections) GetByID(ctx context.Context, id int32) (*domain.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.connections[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "connection", ID: fmt.Sprint(id)}
	}
	return &c, nil
}

func (r memConnections) GetForUpdate(ctx context.Context, id int32) (*domain.Connection, error) {
	return r.GetByID(ctx, id)
}

func (r memConnections) GetByProfileAndOrg(ctx context.Context, profileID, orgID int32) (*domain.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.connections {
		if c.ProfileID == profileID && c.OrganizationID == orgID {
			return &c, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "connection", ID: fmt.Sprintf("%d/%d", profileID, orgID)}
}

func (r memConnections) list(match func(domain.Connection) bool) []domain.Connection {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Connection
	for _, c := range r.s.connections {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memConnections) ListByProfile(ctx context.Context, profileID int32) ([]domain.Connection, error) {
	return r.list(func(c domain.Connection) bool { return c.ProfileID == profileID }), nil
}

func (r memConnections) ListByOrg(ctx context.Context, orgID int32) ([]domain.Connection, error) {
	return r.list(func(c domain.Connection) bool { return c.OrganizationID == orgID }), nil
}

func (r memConnections) Update(ctx context.Context, conn *domain.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.connections[conn.ID]; !ok {
		return &domain.NotFoundError{Entity: "connection", ID: fmt.Sprint(conn.ID)}
	}
	conn.LastModified = r.s.now
	r.s.connections[conn.ID] = *conn
	return nil
}

func (r memConnections) MarkSeen(ctx context.Context, id int32, side domain.Side) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.connections[id]
	if !ok {
		return &domain.NotFoundError{Entity: "connection", ID: fmt.Sprint(id)}
	}
	if side == domain.SideUser {
		c.SeenByUser = true
	} else {
		c.SeenByOrg = true
	}
	r.s.connections[id] = c
	return nil
}

type memMessages struct{ s *memStore }

func (r memMessages) Create(ctx context.Context, msg *domain.ConnectionMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.ID = r.s.id()
	msg.CreatedOn = r.s.now
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r memMessages) ListByConnection(ctx context.Context, connectionID int32, includePrivate bool, limit int32) ([]domain.ConnectionMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ConnectionMessage
	for _, m := range r.s.messages {
		if m.ConnectionID == connectionID && (includePrivate || !m.IsPrivate) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].ID < out[j].ID
	})
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memProfiles struct{ s *memStore }

func (r memProfiles) GetByID(ctx context.Context, id int32) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "profile", ID: fmt.Sprint(id)}
	}
	p.MentorFor = slices.Clone(p.MentorFor)
	p.AdminFor = slices.Clone(p.AdminFor)
	return &p, nil
}

func (r memProfiles) GetForUpdate(ctx context.Context, id int32) (*domain.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r memProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "profile", ID: email}
}

func (r memProfiles) UpdateRoles(ctx context.Context, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[profile.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "profile", ID: fmt.Sprint(profile.ID)}
	}
	p.MentorFor = slices.Clone(profile.MentorFor)
	p.AdminFor = slices.Clone(profile.AdminFor)
	r.s.profiles[p.ID] = p
	return nil
}

func (r memProfiles) ListOrgAdmins(ctx context.Context, orgID int32) ([]domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Profile
	for _, p := range r.s.profiles {
		if p.IsActive() && p.IsAdminFor(orgID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memOrgs struct{ s *memStore }

func (r memOrgs) GetByID(ctx context.Context, id int32) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "organization", ID: fmt.Sprint(id)}
	}
	return &o, nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Enqueue(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.id()
	n.Status = domain.NotificationPending
	n.CreatedOn = r.s.now
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r memNotifications) ClaimPending(ctx context.Context, limit int32, lease time.Duration) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.s.notifications {
		if n.Status == domain.NotificationPending && len(out) < int(limit) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r memNotifications) update(id int32, fn func(n *domain.Notification)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id {
			fn(&r.s.notifications[i])
			return nil
		}
	}
	return &domain.NotFoundError{Entity: "notification", ID: fmt.Sprint(id)}
}

func (r memNotifications) MarkSent(ctx context.Context, id int32) error {
	return r.update(id, func(n *domain.Notification) {
		now := r.s.now
		n.Status = domain.NotificationSent
		n.SentOn = &now
	})
}

func (r memNotifications) MarkFailed(ctx context.Context, id int32, lastErr string, maxAttempts int32) error {
	return r.update(id, func(n *domain.Notification) {
		n.Attempts++
		n.LastError = lastErr
		if n.Attempts >= maxAttempts {
			n.Status = domain.NotificationFailed
		}
	})
}

type memInvites struct{ s *memStore }

func (r memInvites) Create(ctx context.Context, a *domain.AnonymousConnection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id()
	a.CreatedOn = r.s.now
	r.s.invites[a.ID] = *a
	return nil
}

func (r memInvites) GetByTokenForUpdate(ctx context.Context, token string) (*domain.AnonymousConnection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.invites {
		if a.Token == token {
			return &a, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "anonymous connection", ID: token}
}

func (r memInvites) MarkUsed(ctx context.Context, id, profileID int32) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.invites[id]
	if !ok || a.UsedOn != nil {
		return &domain.NotFoundError{Entity: "unused anonymous connection", ID: fmt.Sprint(id)}
	}
	now := r.s.now
	a.UsedOn = &now
	a.UsedByProfileID = &profileID
	r.s.invites[id] = a
	return nil
}

func (r memInvites) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, a := range r.s.invites {
		if a.UsedOn == nil && a.ExpiresOn.Before(before) {
			delete(r.s.invites, id)
			n++
		}
	}
	return n, nil
}
