package meetings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

type fakeStore struct {
	events   map[uuid.UUID]EventScope
	users    map[uuid.UUID]uuid.UUID
	meetings map[uuid.UUID]Meeting
}

func (f *fakeStore) Event(ctx context.Context, id uuid.UUID) (*EventScope, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return &e, nil
}

func (f *fakeStore) CompanyUserIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := map[uuid.UUID]bool{}
	for _, id := range ids {
		if f.users[id] == companyID {
			found[id] = true
		}
	}
	return found, nil
}

func (f *fakeStore) ListByEvent(ctx context.Context, eventID uuid.UUID, guestID *uuid.UUID) ([]Meeting, error) {
	list := []Meeting{}
	for _, m := range f.meetings {
		if m.EventID == eventID && (guestID == nil || contains(m.GuestIDs, *guestID)) {
			list = append(list, m)
		}
	}
	return list, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	m.GuestIDs = append([]uuid.UUID(nil), m.GuestIDs...)
	return &m, nil
}

func (f *fakeStore) Save(ctx context.Context, m *models.RaciMeeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	e := f.events[m.EventID]
	f.meetings[m.ID] = Meeting{RaciMeeting: *m, EventName: e.Name, CompanyID: e.CompanyID, DepartmentID: e.DepartmentID}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.meetings[id]; !ok {
		return apperr.NotFound("meeting not found")
	}
	delete(f.meetings, id)
	return nil
}

type fakeNotifier struct{ invited [][]uuid.UUID }

func (n *fakeNotifier) MeetingScheduled(ctx context.Context, m Meeting, guestIDs []uuid.UUID) {
	n.invited = append(n.invited, guestIDs)
}

type fixture struct {
	store    *fakeStore
	notifier *fakeNotifier
	svc      *Service
	event    EventScope
	admin    authz.Principal
	hod      authz.Principal
	alice    uuid.UUID
	bob      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	company := uuid.New()
	f := &fixture{
		store:    &fakeStore{events: map[uuid.UUID]EventScope{}, users: map[uuid.UUID]uuid.UUID{}, meetings: map[uuid.UUID]Meeting{}},
		notifier: &fakeNotifier{},
		event:    EventScope{ID: uuid.New(), Name: "Budget", CompanyID: company, DepartmentID: uuid.New()},
		alice:    uuid.New(),
		bob:      uuid.New(),
	}
	f.store.events[f.event.ID] = f.event
	f.store.users[f.alice] = company
	f.store.users[f.bob] = company
	f.admin = authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: company}
	f.hod = authz.Principal{ID: uuid.New(), Role: models.RoleHOD, CompanyID: company, DepartmentID: f.event.DepartmentID}
	f.svc = NewService(f.store, f.notifier, zaptest.NewLogger(t))
	return f
}

func (f *fixture) input(guests ...uuid.UUID) CreateInput {
	return CreateInput{EventID: f.event.ID, MeetingDate: time.Now().Add(24 * time.Hour), Title: "Kickoff", GuestUserIDs: guests}
}

func TestCreateValidatesGuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.hod, f.input(f.alice, f.alice, f.bob))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, m.GuestIDs, "duplicates collapsed")
	assert.Equal(t, "Budget", m.EventName)
	require.Len(t, f.notifier.invited, 1)
	assert.Len(t, f.notifier.invited[0], 2)

	outsider := uuid.New()
	f.store.users[outsider] = uuid.New()
	_, err = f.svc.Create(ctx, f.admin, f.input(f.alice, outsider))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, f.admin, f.input(uuid.New()))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "unknown users are rejected")

	in := f.input()
	in.Title = "  "
	_, err = f.svc.Create(ctx, f.admin, in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in = f.input()
	in.EventID = uuid.New()
	_, err = f.svc.Create(ctx, f.admin, in)
	assert.True(t, apperr.IsNotFound(err))

	user := authz.Principal{ID: f.alice, Role: models.RoleUser, CompanyID: f.event.CompanyID}
	_, err = f.svc.Create(ctx, user, f.input())
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	stranger := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: uuid.New()}
	_, err = f.svc.Create(ctx, stranger, f.input())
	assert.True(t, apperr.IsNotFound(err))
}

func TestGuestsSeeTheirMeetings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invited, err := f.svc.Create(ctx, f.admin, f.input(f.alice))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.admin, f.input(f.bob))
	require.NoError(t, err)

	list, err := f.svc.ListByEvent(ctx, f.hod, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	alice := authz.Principal{ID: f.alice, Role: models.RoleUser, CompanyID: f.event.CompanyID}
	list, err = f.svc.ListByEvent(ctx, alice, f.event.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, invited.ID, list[0].ID)

	_, err = f.svc.Get(ctx, alice, invited.ID)
	require.NoError(t, err)
	bob := authz.Principal{ID: f.bob, Role: models.RoleUser, CompanyID: f.event.CompanyID}
	_, err = f.svc.Get(ctx, bob, invited.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	web := authz.Principal{ID: uuid.New(), Role: models.RoleWebsiteAdmin}
	_, err = f.svc.ListByEvent(ctx, web, f.event.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestUpdateReplacesGuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.svc.Create(ctx, f.admin, f.input(f.alice))
	require.NoError(t, err)

	title := "Review"
	updated, err := f.svc.Update(ctx, f.admin, m.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Review", updated.Title)
	assert.Equal(t, []uuid.UUID{f.alice}, updated.GuestIDs, "guests untouched without guestUserIds")

	updated, err = f.svc.Update(ctx, f.admin, m.ID, UpdateInput{GuestUserIDs: []uuid.UUID{f.bob, f.alice}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.alice, f.bob}, updated.GuestIDs)
	assert.Equal(t, []uuid.UUID{f.bob}, f.notifier.invited[len(f.notifier.invited)-1], "only new guests notified")

	updated, err = f.svc.Update(ctx, f.admin, m.ID, UpdateInput{GuestUserIDs: []uuid.UUID{}})
	require.NoError(t, err)
	assert.Empty(t, updated.GuestIDs)

	otherHOD := authz.Principal{ID: uuid.New(), Role: models.RoleHOD, CompanyID: f.event.CompanyID, DepartmentID: uuid.New()}
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(f.svc.Delete(ctx, otherHOD, m.ID)))
	require.NoError(t, f.svc.Delete(ctx, f.hod, m.ID))
	_, err = f.svc.Get(ctx, f.admin, m.ID)
	assert.True(t, apperr.IsNotFound(err))
}
