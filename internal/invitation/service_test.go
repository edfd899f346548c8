package invitation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/audit"
	emailpkg "tenantkit/internal/notifications/email"
	"tenantkit/internal/tenant"
	"tenantkit/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// store is an in-memory stand-in for the invitations and memberships tables.
type store struct {
	invitations map[string]*types.Invitation
	memberships map[string]*types.Membership // key: org/user
	emails      map[string]string            // userID -> email

	createErr error
}

func newStore() *store {
	return &store{
		invitations: map[string]*types.Invitation{},
		memberships: map[string]*types.Membership{},
		emails:      map[string]string{},
	}
}

func (s *store) addMember(orgID, userID, email string, role types.Role) {
	s.memberships[orgID+"/"+userID] = &types.Membership{
		ID: "mem_" + userID, OrganizationID: orgID, UserID: userID, Role: role, Status: types.MembershipActive,
	}
	s.emails[userID] = email
}

// InvitationRepo

func (s *store) Create(_ context.Context, inv *types.Invitation) error {
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *store) GetByID(_ context.Context, orgID, id string) (*types.Invitation, error) {
	inv, ok := s.invitations[id]
	if !ok || inv.OrganizationID != orgID {
		return nil, types.NewAppError(types.ErrCodeNotFoundInvitation, "invitation not found", nil)
	}
	return inv, nil
}

func (s *store) GetByToken(_ context.Context, token string) (*types.Invitation, error) {
	for _, inv := range s.invitations {
		if inv.Token.Unmask() == token {
			return inv, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundInvitation, "invitation not found", nil)
}

func (s *store) FindUnexpired(_ context.Context, orgID, email string, now time.Time) (*types.Invitation, error) {
	for _, inv := range s.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && !inv.IsExpired(now) {
			return inv, nil
		}
	}
	return nil, nil
}

func (s *store) List(_ context.Context, orgID string) ([]*types.Invitation, error) {
	var out []*types.Invitation
	for _, inv := range s.invitations {
		if inv.OrganizationID == orgID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *store) Delete(_ context.Context, orgID, id string) (int64, error) {
	inv, ok := s.invitations[id]
	if !ok || inv.OrganizationID != orgID {
		return 0, nil
	}
	delete(s.invitations, id)
	return 1, nil
}

// MembershipRepo, reached through memberships().

type membershipView struct{ s *store }

func (s *store) members() MembershipRepo { return membershipView{s} }

func (v membershipView) Create(_ context.Context, m *types.Membership) error {
	if v.s.createErr != nil {
		return v.s.createErr
	}
	key := m.OrganizationID + "/" + m.UserID
	if _, ok := v.s.memberships[key]; ok {
		return types.NewAppError(types.ErrCodeConflictAlreadyMember, "already a member", nil)
	}
	cp := *m
	v.s.memberships[key] = &cp
	return nil
}

func (v membershipView) Get(_ context.Context, orgID, userID string) (*types.Membership, error) {
	m, ok := v.s.memberships[orgID+"/"+userID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundMembership, "membership not found", nil)
	}
	return m, nil
}

func (v membershipView) ActiveMemberExistsByEmail(_ context.Context, orgID, email string) (bool, error) {
	for _, m := range v.s.memberships {
		if m.OrganizationID == orgID && m.IsActive() && v.s.emails[m.UserID] == email {
			return true, nil
		}
	}
	return false, nil
}

// storeTx runs fn against the same store and restores it when fn fails.
type storeTx struct{ s *store }

func (t storeTx) RunInTx(ctx context.Context, fn func(context.Context, InvitationRepo, MembershipRepo) error) error {
	invs := make(map[string]*types.Invitation, len(t.s.invitations))
	for k, v := range t.s.invitations {
		invs[k] = v
	}
	mems := make(map[string]*types.Membership, len(t.s.memberships))
	for k, v := range t.s.memberships {
		mems[k] = v
	}
	if err := fn(ctx, t.s, t.s.members()); err != nil {
		t.s.invitations, t.s.memberships = invs, mems
		return err
	}
	return nil
}

type recordingDispatcher struct {
	messages []types.EmailMessage
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg types.EmailMessage) error {
	d.messages = append(d.messages, msg)
	return d.err
}

type recordingAudit struct{ events []audit.Event }

func (r *recordingAudit) Record(_ context.Context, e audit.Event) { r.events = append(r.events, e) }

func (r *recordingAudit) actions() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type sequentialTokens struct{ n int }

func (g *sequentialTokens) GenerateToken() (string, error) {
	g.n++
	return fmt.Sprintf("tok%02d", g.n), nil
}

type fakeOrgs struct{}

func (fakeOrgs) GetByID(_ context.Context, id string) (*types.Organization, error) {
	return &types.Organization{ID: id, Name: "Acme", Slug: "acme"}, nil
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id string) (*types.User, error) {
	return &types.User{ID: id, Name: "Alice", Preferences: types.UserPreferences{Language: "pt-BR"}}, nil
}

type harness struct {
	svc    *Service
	store  *store
	mail   *recordingDispatcher
	audit  *recordingAudit
	clock  *types.FixedClock
	ownerA types.Caller
	memB   types.Caller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := newStore()
	st.addMember("org_acme", "user_a", "a@acme.com", types.RoleOwner)
	st.addMember("org_acme", "user_b", "b@acme.com", types.RoleMember)

	h := &harness{
		store: st,
		mail:  &recordingDispatcher{},
		audit: &recordingAudit{},
		clock: &types.FixedClock{T: testNow},
		ownerA: types.Caller{
			UserID: "user_a", Email: "a@acme.com", OrganizationID: "org_acme", Role: types.RoleOwner,
		},
		memB: types.Caller{
			UserID: "user_b", Email: "b@acme.com", OrganizationID: "org_acme", Role: types.RoleMember,
		},
	}
	ids := 0
	h.svc = NewService(ServiceDeps{
		Invitations: st,
		Memberships: st.members(),
		Orgs:        fakeOrgs{},
		Users:       fakeUsers{},
		Tx:          storeTx{st},
		Emails:      h.mail,
		Links:       tenant.LinkBuilder{Scheme: "https", RootDomain: "app.test"},
		Audit:       h.audit,
		Tokens:      &sequentialTokens{},
		NewID:       func(prefix string) string { ids++; return fmt.Sprintf("%s%d", prefix, ids) },
		Clock:       clockFunc(func() time.Time { return h.clock.T }),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

func TestScenario_InviteAndAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Equal(t, testNow.Add(7*24*time.Hour), res.Invitation.ExpiresAt)
	assert.Equal(t, "tok01", res.Invitation.Token.Unmask())

	_, err = h.svc.Create(ctx, h.ownerA, CreateInput{Email: "Carol@ACME.com ", Role: types.RoleMember})
	assert.Equal(t, types.ErrCodeConflictInvitationPending, types.CodeOf(err))

	carol := &types.User{ID: "user_c", Email: "carol@acme.com"}
	m, err := h.svc.Accept(ctx, carol, "tok01")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, m.Role)
	assert.Equal(t, types.MembershipActive, m.Status)
	assert.Equal(t, "org_acme", m.OrganizationID)
	require.NotNil(t, m.InvitedBy)
	assert.Equal(t, "user_a", *m.InvitedBy)

	assert.Empty(t, h.store.invitations)
	assert.Contains(t, h.store.memberships, "org_acme/user_c")
	assert.Equal(t, []string{types.AuditActionInvitationCreate, types.AuditActionInvitationAccept}, h.audit.actions())
}

func TestCreate_EmailContent(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)

	require.Len(t, h.mail.messages, 1)
	msg := h.mail.messages[0]
	assert.Equal(t, types.TemplateInvitation, msg.Template)
	assert.Equal(t, "carol@acme.com", msg.Recipient)
	assert.Equal(t, "pt-BR", msg.Locale)
	assert.Equal(t, "Alice", msg.Variables[emailpkg.VarInviterName])
	assert.Equal(t, "Acme", msg.Variables[emailpkg.VarOrgName])
	assert.Equal(t, "https://app.test/invitations/accept?token=tok01", msg.Variables[emailpkg.VarAcceptURL])
	assert.Equal(t, "2026-03-08T12:00:00Z", msg.Variables[emailpkg.VarExpiresAt])
}

func TestCreate_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, h.memB, CreateInput{Email: "x@acme.com", Role: types.RoleMember})
	assert.Equal(t, types.ErrCodePermissionRole, types.CodeOf(err))

	_, err = h.svc.Create(ctx, h.ownerA, CreateInput{Email: "x@acme.com", Role: types.RoleOwner})
	assert.Equal(t, types.ErrCodeValidationInvalidRole, types.CodeOf(err))

	_, err = h.svc.Create(ctx, h.ownerA, CreateInput{Email: "not-an-email", Role: types.RoleMember})
	assert.Equal(t, types.ErrCodeValidationInvalidEmail, types.CodeOf(err))

	_, err = h.svc.Create(ctx, h.ownerA, CreateInput{Email: "B@acme.com", Role: types.RoleMember})
	assert.Equal(t, types.ErrCodeConflictAlreadyMember, types.CodeOf(err))

	assert.Empty(t, h.store.invitations)
	assert.Empty(t, h.mail.messages)
}

func TestCreate_EmailFailureKeepsInvitation(t *testing.T) {
	h := newHarness(t)
	h.mail.err = errors.New("queue down")

	res, err := h.svc.Create(context.Background(), h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.Len(t, h.store.invitations, 1)
}

func TestCreate_AfterExpiryAllowsNewInvitation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)

	h.clock.T = testNow.Add(8 * 24 * time.Hour)
	_, err = h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	assert.NoError(t, err)
}

func TestResend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)
	id := res.Invitation.ID

	_, err = h.svc.Resend(ctx, h.memB, id)
	assert.Equal(t, types.ErrCodePermissionRole, types.CodeOf(err))

	_, err = h.svc.Resend(ctx, h.ownerA, "inv_missing")
	assert.Equal(t, types.ErrCodeNotFoundInvitation, types.CodeOf(err))

	h.clock.T = testNow.Add(24 * time.Hour)
	out, err := h.svc.Resend(ctx, h.ownerA, id)
	require.NoError(t, err)
	assert.True(t, out.EmailSent)
	assert.Equal(t, testNow.Add(7*24*time.Hour), out.Invitation.ExpiresAt, "expiry is not extended")
	require.Len(t, h.mail.messages, 2)
	assert.Equal(t, h.mail.messages[0].Variables[emailpkg.VarAcceptURL], h.mail.messages[1].Variables[emailpkg.VarAcceptURL])

	h.clock.T = testNow.Add(7*24*time.Hour + time.Second)
	_, err = h.svc.Resend(ctx, h.ownerA, id)
	assert.Equal(t, types.ErrCodeInvitationExpired, types.CodeOf(err))
	assert.Equal(t, 410, types.CodeOf(err).HTTPStatus())
}

func TestCancel_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)

	require.NoError(t, h.svc.Cancel(ctx, h.ownerA, res.Invitation.ID))
	require.NoError(t, h.svc.Cancel(ctx, h.ownerA, res.Invitation.ID))
	assert.Empty(t, h.store.invitations)

	assert.Equal(t, types.ErrCodePermissionRole, types.CodeOf(h.svc.Cancel(ctx, h.memB, "inv_x")))

	last := h.audit.events[len(h.audit.events)-1]
	assert.Equal(t, types.AuditActionInvitationCancel, last.Action)
	assert.Equal(t, false, last.Metadata["deleted"])
}

func TestAccept_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)

	_, err = h.svc.Accept(ctx, &types.User{ID: "user_c", Email: "carol@acme.com"}, "nope")
	assert.Equal(t, types.ErrCodeNotFoundInvitation, types.CodeOf(err))

	_, err = h.svc.Accept(ctx, &types.User{ID: "user_d", Email: "dave@acme.com"}, "tok01")
	assert.Equal(t, types.ErrCodePermissionEmailMismatch, types.CodeOf(err))

	h.clock.T = testNow.Add(8 * 24 * time.Hour)
	_, err = h.svc.Accept(ctx, &types.User{ID: "user_c", Email: "CAROL@acme.com"}, "tok01")
	assert.Equal(t, types.ErrCodeInvitationExpired, types.CodeOf(err))
	assert.Len(t, h.store.invitations, 1)
}

func TestAccept_ExistingMemberConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.invitations["inv_b"] = &types.Invitation{
		ID: "inv_b", OrganizationID: "org_acme", Email: "b@acme.com", Role: types.RoleAdmin,
		Token: "tokb", ExpiresAt: testNow.Add(time.Hour),
	}

	_, err := h.svc.Accept(ctx, &types.User{ID: "user_b", Email: "b@acme.com"}, "tokb")
	assert.Equal(t, types.ErrCodeConflictAlreadyMember, types.CodeOf(err))
}

func TestAccept_RollsBackOnInsertFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Create(ctx, h.ownerA, CreateInput{Email: "carol@acme.com", Role: types.RoleMember})
	require.NoError(t, err)
	h.store.createErr = types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil)

	_, err = h.svc.Accept(ctx, &types.User{ID: "user_c", Email: "carol@acme.com"}, "tok01")
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	assert.Len(t, h.store.invitations, 1)
	assert.NotContains(t, h.store.memberships, "org_acme/user_c")
}

func TestList_FlagsExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.invitations["inv_old"] = &types.Invitation{
		ID: "inv_old", OrganizationID: "org_acme", Email: "old@acme.com", Role: types.RoleMember,
		ExpiresAt: testNow.Add(-time.Hour), CreatedAt: testNow.Add(-8 * 24 * time.Hour),
	}
	h.store.invitations["inv_new"] = &types.Invitation{
		ID: "inv_new", OrganizationID: "org_acme", Email: "new@acme.com", Role: types.RoleMember,
		ExpiresAt: testNow.Add(time.Hour), CreatedAt: testNow,
	}

	items, err := h.svc.List(ctx, h.memB)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "inv_new", items[0].ID)
	assert.False(t, items[0].Expired)
	assert.True(t, items[1].Expired)
}
