package raci

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/pagination"
)

type fakeAssignment struct {
	models.RaciAssignment
}

type fakeStore struct {
	mu          sync.Mutex
	events      map[uuid.UUID]*EventRef
	settings    map[uuid.UUID]*models.CompanySettings
	assignments map[uuid.UUID]*fakeAssignment
	approvals   map[uuid.UUID]*models.RaciApproval
	users       map[uuid.UUID]uuid.UUID // user -> company
	trackers    map[uuid.UUID][]uuid.UUID
	failInsert  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:      map[uuid.UUID]*EventRef{},
		settings:    map[uuid.UUID]*models.CompanySettings{},
		assignments: map[uuid.UUID]*fakeAssignment{},
		approvals:   map[uuid.UUID]*models.RaciApproval{},
		users:       map[uuid.UUID]uuid.UUID{},
		trackers:    map[uuid.UUID][]uuid.UUID{},
	}
}

// InTx snapshots state and restores it when fn fails, like a rollback.
func (f *fakeStore) InTx(ctx context.Context, fn func(Queries) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.clone()
	if err := fn(f); err != nil {
		f.restore(snapshot)
		return err
	}
	return nil
}

type fakeSnapshot struct {
	events      map[uuid.UUID]EventRef
	assignments map[uuid.UUID]fakeAssignment
	approvals   map[uuid.UUID]models.RaciApproval
	trackers    map[uuid.UUID][]uuid.UUID
}

func (f *fakeStore) clone() fakeSnapshot {
	s := fakeSnapshot{
		events:      map[uuid.UUID]EventRef{},
		assignments: map[uuid.UUID]fakeAssignment{},
		approvals:   map[uuid.UUID]models.RaciApproval{},
		trackers:    map[uuid.UUID][]uuid.UUID{},
	}
	for k, v := range f.events {
		s.events[k] = *v
	}
	for k, v := range f.assignments {
		s.assignments[k] = *v
	}
	for k, v := range f.approvals {
		s.approvals[k] = *v
	}
	for k, v := range f.trackers {
		s.trackers[k] = append([]uuid.UUID(nil), v...)
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.events = map[uuid.UUID]*EventRef{}
	for k, v := range s.events {
		v := v
		f.events[k] = &v
	}
	f.assignments = map[uuid.UUID]*fakeAssignment{}
	for k, v := range s.assignments {
		v := v
		f.assignments[k] = &v
	}
	f.approvals = map[uuid.UUID]*models.RaciApproval{}
	for k, v := range s.approvals {
		v := v
		f.approvals[k] = &v
	}
	f.trackers = s.trackers
}

func (f *fakeStore) ApprovalByID(ctx context.Context, id uuid.UUID) (*ApprovalRef, error) {
	ap, ok := f.approvals[id]
	if !ok {
		return nil, apperr.NotFound("approval not found")
	}
	as := f.assignments[ap.RaciID]
	return &ApprovalRef{Approval: *ap, EventID: as.EventID, AssigneeID: as.UserID, Type: as.Type}, nil
}

func (f *fakeStore) LockEvent(ctx context.Context, id uuid.UUID) (*EventRef, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) EventRef(ctx context.Context, id uuid.UUID) (*EventRef, error) {
	return f.LockEvent(ctx, id)
}

func (f *fakeStore) Settings(ctx context.Context, companyID uuid.UUID) (*models.CompanySettings, error) {
	if s, ok := f.settings[companyID]; ok {
		cp := *s
		return &cp, nil
	}
	def := models.DefaultCompanySettings(companyID)
	return &def, nil
}

func (f *fakeStore) Chain(ctx context.Context, raciID uuid.UUID) ([]models.RaciApproval, error) {
	list := []models.RaciApproval{}
	for _, ap := range f.approvals {
		if ap.RaciID == raciID {
			list = append(list, *ap)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ApprovalLevel < list[j].ApprovalLevel })
	return list, nil
}

func (f *fakeStore) EventApprovals(ctx context.Context, eventID uuid.UUID) ([]models.RaciApproval, error) {
	list := []models.RaciApproval{}
	for _, ap := range f.approvals {
		if f.assignments[ap.RaciID].EventID == eventID {
			list = append(list, *ap)
		}
	}
	return list, nil
}

func (f *fakeStore) UpdateApproval(ctx context.Context, a *models.RaciApproval) error {
	cur, ok := f.approvals[a.ID]
	if !ok {
		return apperr.NotFound("approval not found")
	}
	if cur.Status != models.StatusPending {
		return errAlreadyDecided
	}
	a.UpdatedAt = time.Now()
	cp := *a
	f.approvals[a.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.ApprovalStatus, reason string, approvedBy *uuid.UUID) error {
	e, ok := f.events[eventID]
	if !ok {
		return apperr.NotFound("event not found")
	}
	e.Status = status
	return nil
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

func (f *fakeStore) InsertMatrix(ctx context.Context, eventID uuid.UUID, matrix []AssignmentInput) error {
	for _, in := range matrix {
		if f.failInsert {
			return apperr.Wrap(context.DeadlineExceeded, "insert assignment")
		}
		as := &fakeAssignment{models.RaciAssignment{ID: uuid.New(), EventID: eventID, Type: in.Type, UserID: in.UserID,
			FinancialLimitMin: in.FinancialLimitMin, FinancialLimitMax: in.FinancialLimitMax}}
		f.assignments[as.ID] = as
		for _, ap := range in.Approvals {
			id := uuid.New()
			f.approvals[id] = &models.RaciApproval{ID: id, RaciID: as.ID, ApprovalLevel: ap.Level, ApproverID: ap.ApproverID, Status: models.StatusPending}
		}
		f.trackers[eventID] = append(f.trackers[eventID], in.UserID)
	}
	return nil
}

func (f *fakeStore) DeleteMatrix(ctx context.Context, eventID uuid.UUID) error {
	for id, as := range f.assignments {
		if as.EventID != eventID {
			continue
		}
		for apID, ap := range f.approvals {
			if ap.RaciID == id {
				delete(f.approvals, apID)
			}
		}
		delete(f.assignments, id)
	}
	delete(f.trackers, eventID)
	return nil
}

func (f *fakeStore) Matrix(ctx context.Context, eventID uuid.UUID) ([]models.RaciAssignment, error) {
	list := []models.RaciAssignment{}
	for _, as := range f.assignments {
		if as.EventID != eventID {
			continue
		}
		a := as.RaciAssignment
		a.Approvals, _ = f.Chain(ctx, a.ID)
		list = append(list, a)
	}
	return list, nil
}

func (f *fakeStore) views(match func(*fakeAssignment, *EventRef) bool) []AssignmentView {
	list := []AssignmentView{}
	for _, as := range f.assignments {
		e := f.events[as.EventID]
		if !match(as, e) {
			continue
		}
		chain, _ := f.Chain(context.Background(), as.ID)
		list = append(list, AssignmentView{ID: as.ID, Type: as.Type, UserID: as.UserID,
			Event: EventBrief{ID: e.ID, Name: e.Name, ApprovalStatus: e.Status}, Department: DepartmentBrief{ID: e.DepartmentID},
			Approvals: chain})
	}
	return list
}

func pageOf(list []AssignmentView, p pagination.Params) []AssignmentView {
	p = pagination.Clamp(p, len(list))
	start := p.Offset()
	if start >= len(list) {
		return []AssignmentView{}
	}
	end := start + p.PageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func (f *fakeStore) UserAssignments(ctx context.Context, userID uuid.UUID, p pagination.Params) ([]AssignmentView, int, error) {
	all := f.views(func(as *fakeAssignment, _ *EventRef) bool { return as.UserID == userID })
	return pageOf(all, p), len(all), nil
}

func (f *fakeStore) CompanyAssignments(ctx context.Context, companyID uuid.UUID, departmentID *uuid.UUID, p pagination.Params) ([]AssignmentView, int, error) {
	all := f.views(func(_ *fakeAssignment, e *EventRef) bool {
		return e.CompanyID == companyID && (departmentID == nil || e.DepartmentID == *departmentID)
	})
	return pageOf(all, p), len(all), nil
}

func (f *fakeStore) PendingApprovals(ctx context.Context, filter PendingFilter) ([]PendingApproval, error) {
	list := []PendingApproval{}
	for _, ap := range f.approvals {
		as := f.assignments[ap.RaciID]
		e := f.events[as.EventID]
		if e.CompanyID != filter.CompanyID || ap.Status != models.StatusPending || e.Status != models.StatusPending {
			continue
		}
		list = append(list, PendingApproval{RaciApproval: *ap, AssignmentType: as.Type, AssigneeID: as.UserID,
			Event: EventBrief{ID: e.ID, Name: e.Name, ApprovalStatus: e.Status}, DepartmentID: e.DepartmentID})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ApprovalLevel < list[j].ApprovalLevel })
	return list, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []DecisionNotice
}

func (n *fakeNotifier) ApprovalDecided(ctx context.Context, notice DecisionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}
