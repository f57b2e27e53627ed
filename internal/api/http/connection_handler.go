package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/service"
)

// ConnectionHandler serves the connection API. The authenticated profile acts
// as the user side when it owns the connection and as the organization side
// when it administers the connection's organization.
type ConnectionHandler struct {
	connections      service.ConnectionService
	anonymous        service.AnonymousConnectionService
	access           service.AccessService
	messageMaxLength int
}

// NewConnectionHandler builds the handler. messageMaxLength bounds the note of
// a role selection; zero disables the check.
func NewConnectionHandler(connections service.ConnectionService, anonymous service.AnonymousConnectionService, access service.AccessService, messageMaxLength int) *ConnectionHandler {
	return &ConnectionHandler{
		connections:      connections,
		anonymous:        anonymous,
		access:           access,
		messageMaxLength: messageMaxLength,
	}
}

// TranscriptTruncatedHeader is set on a message listing that stops before the
// newest messages.
const TranscriptTruncatedHeader = "X-Transcript-Truncated"

type startConnectionRequest struct {
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
}

type postMessageRequest struct {
	Content   string `json:"content"`
	IsPrivate bool   `json:"is_private"`
}

type inviteRequest struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
}

type invitationResponse struct {
	ID             int32          `json:"id"`
	OrganizationID int32          `json:"organization_id"`
	OrgRole        domain.OrgRole `json:"org_role"`
	Email          string         `json:"email"`
	ExpiresOn      time.Time      `json:"expires_on"`
}

func (h *ConnectionHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func actor(r *http.Request) int32 {
	id, _ := ProfileIDFromContext(r.Context())
	return id
}

// StartConnectionAsUser lets the authenticated profile ask an organization for a role.
func (h *ConnectionHandler) StartConnectionAsUser(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body startConnectionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Role == "" {
		body.Role = string(domain.UserRoleRole)
	}
	role, err := domain.ParseUserRole(body.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profileID := actor(r)
	conn, err := h.connections.CreateConnection(r.Context(), domain.CreateConnectionRequest{
		ProfileID:      profileID,
		OrganizationID: orgID,
		InitiatorID:    profileID,
		Initiator:      domain.SideUser,
		UserRole:       role,
		OrgRole:        domain.OrgRoleNoRole,
		Message:        body.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// StartConnectionAsOrg lets an organization admin offer a role to a profile.
func (h *ConnectionHandler) StartConnectionAsOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	profileID, err := pathID(r, "profileID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body startConnectionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := domain.ParseOrgRole(body.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	adminID := actor(r)
	if err := h.access.AuthorizeOrgAdmin(r.Context(), adminID, orgID); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := h.connections.CreateConnection(r.Context(), domain.CreateConnectionRequest{
		ProfileID:      profileID,
		OrganizationID: orgID,
		InitiatorID:    adminID,
		Initiator:      domain.SideOrg,
		UserRole:       domain.UserRoleNoRole,
		OrgRole:        role,
		Message:        body.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// loadForActor fetches a connection and resolves which side the caller acts for.
func (h *ConnectionHandler) loadForActor(ctx context.Context, r *http.Request) (*domain.Connection, domain.Side, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, "", err
	}
	conn, err := h.connections.GetConnectionByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	side, err := h.access.SideFor(ctx, actor(r), conn)
	if err != nil {
		return nil, "", err
	}
	return conn, side, nil
}

func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, _, err := h.loadForActor(r.Context(), r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) ListProfileConnections(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profileID != actor(r) {
		writeError(w, r, service.ErrNotAuthorized)
		return
	}
	conns, err := h.connections.ListForProfile(r.Context(), profileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *ConnectionHandler) ListOrgConnections(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.access.AuthorizeOrgAdmin(r.Context(), actor(r), orgID); err != nil {
		writeError(w, r, err)
		return
	}
	conns, err := h.connections.ListForOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

// SelectUserRole applies the profile owner's selection together with its optional message.
func (h *ConnectionHandler) SelectUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body domain.RoleSelectionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	role, message, err := body.UserSelection(h.messageMaxLength)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := h.connections.GetConnectionByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.access.AuthorizeUser(ctx, actor(r), conn); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err = h.connections.ApplyUserRoleSelection(ctx, id, role, message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// SelectOrgRole applies an organization admin's selection together with its optional message.
func (h *ConnectionHandler) SelectOrgRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body domain.RoleSelectionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	role, message, err := body.OrgSelection(h.messageMaxLength)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := h.connections.GetConnectionByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	adminID := actor(r)
	if err := h.access.AuthorizeOrgAdmin(ctx, adminID, conn.OrganizationID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err = h.connections.ApplyOrgRoleSelection(ctx, id, role, adminID, message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := h.connections.GetConnectionByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	adminID := actor(r)
	if err := h.access.AuthorizeOrgAdmin(ctx, adminID, conn.OrganizationID); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err = h.connections.RevokeRole(ctx, id, adminID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body postMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	conn, _, err := h.loadForActor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.connections.PostMessage(ctx, conn.ID, actor(r), body.Content, body.IsPrivate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ListMessages returns the transcript oldest first. Private organization notes
// are only shown to the organization side.
func (h *ConnectionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, side, err := h.loadForActor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seq := h.connections.ListMessages(ctx, conn.ID, side == domain.SideOrg)
	messages, err := seq.Slice()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if seq.Truncated() {
		w.Header().Set(TranscriptTruncatedHeader, "true")
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ConnectionHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, side, err := h.loadForActor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.connections.MarkSeen(ctx, conn.ID, side); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckEligibility answers whether ?role= would be accepted for the caller's side.
func (h *ConnectionHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, side, err := h.loadForActor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	eligibility, err := h.connections.CheckEligibility(ctx, conn.ID, side, r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

func (h *ConnectionHandler) InviteAnonymous(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := pathID(r, "orgID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body inviteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := domain.ParseOrgRole(body.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	adminID := actor(r)
	if err := h.access.AuthorizeOrgAdmin(ctx, adminID, orgID); err != nil {
		writeError(w, r, err)
		return
	}

	invite, err := h.anonymous.Invite(ctx, orgID, body.Email, role, body.Message, adminID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The token only travels by email.
	writeJSON(w, http.StatusCreated, invitationResponse{
		ID:             invite.ID,
		OrganizationID: invite.OrganizationID,
		OrgRole:        invite.OrgRole,
		Email:          invite.Email,
		ExpiresOn:      invite.ExpiresOn,
	})
}

func (h *ConnectionHandler) RedeemAnonymousInvite(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	conn, err := h.anonymous.Redeem(r.Context(), token, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}
