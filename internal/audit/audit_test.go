package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantkit/internal/types"
)

type fakeWriter struct {
	mu      sync.Mutex
	entries []*types.AuditLogEntry
	err     error
}

func (f *fakeWriter) Insert(_ context.Context, e *types.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type staticFlags map[string]bool

func (s staticFlags) IsEnabled(key string) bool { return s[key] }

var now = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

func TestSink_RecordsWithClientInfo(t *testing.T) {
	w := &fakeWriter{}
	sink := NewSink(w, staticFlags{"auditLog": true}, types.FixedClock{T: now}, nil)
	ctx := types.WithClientInfo(context.Background(), types.ClientInfo{IPAddress: "198.51.100.7", UserAgent: "curl/8"})

	sink.Record(ctx, Event{
		OrganizationID: "org_1",
		ActorID:        "user_1",
		Action:         types.AuditActionMemberRemove,
		TargetType:     types.AuditTargetMembership,
		TargetID:       "user_2",
		Metadata:       map[string]any{"role": "member"},
	})

	require.Len(t, w.entries, 1)
	e := w.entries[0]
	assert.Equal(t, "org_1", e.OrganizationID)
	assert.Equal(t, "user_1", *e.ActorID)
	assert.Equal(t, "member.remove", e.Action)
	assert.Equal(t, "198.51.100.7", *e.IPAddress)
	assert.Equal(t, "curl/8", *e.UserAgent)
	assert.Equal(t, "member", e.Metadata["role"])
	assert.Equal(t, now, e.CreatedAt)
}

func TestSink_MissingValuesStoredAsNull(t *testing.T) {
	w := &fakeWriter{}
	sink := NewSink(w, staticFlags{"auditLog": true}, nil, nil)

	sink.Record(context.Background(), Event{OrganizationID: "org_1", Action: "organization.update"})

	require.Len(t, w.entries, 1)
	assert.Nil(t, w.entries[0].ActorID)
	assert.Nil(t, w.entries[0].IPAddress)
	assert.Nil(t, w.entries[0].UserAgent)
}

func TestSink_FlagOffIsNoop(t *testing.T) {
	w := &fakeWriter{}
	sink := NewSink(w, staticFlags{}, nil, nil)

	sink.Record(context.Background(), Event{OrganizationID: "org_1", Action: "organization.update"})

	assert.Empty(t, w.entries)
}

func TestSink_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	sink := NewSink(w, staticFlags{"auditLog": true}, nil, nil)

	assert.NotPanics(t, func() {
		sink.Record(context.Background(), Event{OrganizationID: "org_1", Action: "organization.update"})
	})
}

func TestSink_NilIsNoop(t *testing.T) {
	var sink *Sink
	assert.NotPanics(t, func() { sink.Record(context.Background(), Event{}) })
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"first forwarded entry", "203.0.113.1, 10.0.0.1", "", "10.0.0.2:4000", "203.0.113.1"},
		{"peer address", "", "", "192.0.2.10:51234", "192.0.2.10"},
		{"peer without port", "", "", "192.0.2.11", "192.0.2.11"},
		{"real ip fallback", "", "198.51.100.3", "", "198.51.100.3"},
		{"blank forwarded", " , 10.0.0.1", "", "192.0.2.12:80", "192.0.2.12"},
		{"nothing", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestClientInfoMiddleware(t *testing.T) {
	var got types.ClientInfo
	h := ClientInfoMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = types.GetClientInfo(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/acme/members", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "Mozilla/5.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, types.ClientInfo{IPAddress: "192.0.2.1", UserAgent: "Mozilla/5.0"}, got)
}

type fakeStore struct {
	entries  []*types.AuditLogEntry
	total    int
	listErr  error
	countErr error

	gotLimit, gotOffset int
}

func (f *fakeStore) List(_ context.Context, _ string, limit, offset int) ([]*types.AuditLogEntry, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.entries, f.listErr
}

func (f *fakeStore) Count(context.Context, string) (int, error) {
	return f.total, f.countErr
}

func TestReader_List(t *testing.T) {
	store := &fakeStore{
		entries: []*types.AuditLogEntry{{ID: "audit_2"}, {ID: "audit_1"}},
		total:   51,
	}
	page, err := NewReader(store).List(context.Background(), "org_1", types.PageParams{Page: 3, PageSize: 25})

	require.NoError(t, err)
	assert.Equal(t, 25, store.gotLimit)
	assert.Equal(t, 50, store.gotOffset)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 51, page.Total)
	assert.Equal(t, 3, page.PageCount)
	assert.Len(t, page.Logs, 2)
}

func TestReader_ListNormalizesParams(t *testing.T) {
	store := &fakeStore{}
	page, err := NewReader(store).List(context.Background(), "org_1", types.PageParams{Page: 0, PageSize: 1000})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 0, store.gotOffset)
	assert.Equal(t, 1, page.PageCount)
	assert.NotNil(t, page.Logs)
}

func TestReader_ListHugePageStaysInRange(t *testing.T) {
	store := &fakeStore{total: 60}
	page, err := NewReader(store).List(context.Background(), "org_1", types.PageParams{Page: 922337203685477580, PageSize: 25})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, store.gotOffset, 0)
	assert.Empty(t, page.Logs)
	assert.Equal(t, 60, page.Total)
	assert.Equal(t, 3, page.PageCount)
}

func TestReader_ListPropagatesErrors(t *testing.T) {
	store := &fakeStore{countErr: errors.New("count failed")}
	_, err := NewReader(store).List(context.Background(), "org_1", types.PageParams{})
	assert.EqualError(t, err, "count failed")
}
