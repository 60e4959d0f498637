// Package dashboard aggregates per-role overview statistics.
package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/cache"
)

const (
	recentLimit   = 5
	upcomingLimit = 5
)

type PlatformStats struct {
	Companies     int `json:"companies"`
	Users         int `json:"users"`
	WebsiteAdmins int `json:"websiteAdmins"`
	Events        int `json:"events"`
}

type CompanyBrief struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type DepartmentBrief struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type UserStats struct {
	Total        int `json:"total"`
	CompanyAdmin int `json:"company_admin"`
	HOD          int `json:"hod"`
	User         int `json:"user"`
}

type EventStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

type AssignmentStats struct {
	Total       int `json:"total"`
	Responsible int `json:"R"`
	Accountable int `json:"A"`
	Consulted   int `json:"C"`
	Informed    int `json:"I"`
}

type TrackerStats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

type RecentEvent struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus"`
	Department     DepartmentBrief       `json:"department"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type MeetingBrief struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	MeetingDate time.Time `json:"meetingDate"`
	EventID     uuid.UUID `json:"eventId"`
	EventName   string    `json:"eventName"`
}

// WebsiteAdmin is the platform overview.
type WebsiteAdmin struct {
	Stats           PlatformStats  `json:"stats"`
	RecentCompanies []CompanyBrief `json:"recentCompanies"`
}

// CompanyAdmin is the overview of one company.
type CompanyAdmin struct {
	Company CompanyBrief `json:"company"`
	Stats   struct {
		Users       UserStats  `json:"users"`
		Departments int        `json:"departments"`
		Events      EventStats `json:"events"`
	} `json:"stats"`
	RecentEvents []RecentEvent `json:"recentEvents"`
}

// HOD is the overview of the caller's department.
type HOD struct {
	Department DepartmentBrief `json:"department"`
	Stats      struct {
		Users            UserStats  `json:"users"`
		Events           EventStats `json:"events"`
		PendingApprovals int        `json:"pendingApprovals"`
	} `json:"stats"`
	RecentEvents []RecentEvent `json:"recentEvents"`
}

// User is the overview of the caller's own work.
type User struct {
	Stats struct {
		Assignments      AssignmentStats `json:"assignments"`
		Trackers         TrackerStats    `json:"trackers"`
		Events           EventStats      `json:"events"`
		PendingApprovals int             `json:"pendingApprovals"`
	} `json:"stats"`
	UpcomingMeetings []MeetingBrief `json:"upcomingMeetings"`
	RecentEvents     []RecentEvent  `json:"recentEvents"`
}

// Cache is the read-through cache the dashboards are served from.
type Cache interface {
	BuildKey(ctx context.Context, scope string, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error
}

// Service builds dashboards.
type Service struct {
	store  Store
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a dashboard service. A nil *cache.Cache disables caching.
func NewService(store Store, c Cache, logger *zap.Logger) *Service {
	return &Service{store: store, cache: c, logger: logger, now: time.Now}
}

func requireRole(p authz.Principal, role models.Role) error {
	if p.Role != role {
		return apperr.Authorization("dashboard is only available to %s", role)
	}
	return nil
}

// cached serves dest from the cache, running fill on a miss. Redis failures are logged and
// answered from fill.
func (s *Service) cached(ctx context.Context, scope string, dest interface{}, fill func(context.Context) error, parts ...string) error {
	var filled bool
	var fillErr error
	loader := func(ctx context.Context) (interface{}, error) {
		if fillErr = fill(ctx); fillErr != nil {
			return nil, fillErr
		}
		filled = true
		return dest, nil
	}
	key, err := s.cache.BuildKey(ctx, scope, append([]string{"dashboard"}, parts...)...)
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, dest, loader)
		switch {
		case err == nil:
			return nil
		case fillErr != nil:
			return fillErr
		case filled:
			s.logger.Warn("dashboard cache write failed", zap.String("scope", scope), zap.Error(err))
			return nil
		}
	}
	s.logger.Warn("dashboard cache unavailable", zap.String("scope", scope), zap.Error(err))
	return fill(ctx)
}

// WebsiteAdmin returns platform totals and the newest companies.
func (s *Service) WebsiteAdmin(ctx context.Context, p authz.Principal) (*WebsiteAdmin, error) {
	if err := requireRole(p, models.RoleWebsiteAdmin); err != nil {
		return nil, err
	}
	var out WebsiteAdmin
	err := s.cached(ctx, cache.PlatformScope, &out, func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			st, err := s.store.PlatformStats(ctx)
			if err == nil {
				out.Stats = *st
			}
			return err
		})
		g.Go(func() (err error) {
			out.RecentCompanies, err = s.store.RecentCompanies(ctx, recentLimit)
			return err
		})
		return g.Wait()
	}, "website-admin")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompanyAdmin returns the statistics of the caller's company.
func (s *Service) CompanyAdmin(ctx context.Context, p authz.Principal) (*CompanyAdmin, error) {
	if err := requireRole(p, models.RoleCompanyAdmin); err != nil {
		return nil, err
	}
	var out CompanyAdmin
	err := s.cached(ctx, cache.CompanyScope(p.CompanyID), &out, func(ctx context.Context) error {
		sc := Scope{CompanyID: p.CompanyID}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			c, err := s.store.Company(ctx, p.CompanyID)
			if err == nil {
				out.Company = *c
			}
			return err
		})
		g.Go(func() error {
			u, err := s.store.UserStats(ctx, sc)
			if err == nil {
				out.Stats.Users = *u
			}
			return err
		})
		g.Go(func() (err error) {
			out.Stats.Departments, err = s.store.DepartmentCount(ctx, p.CompanyID)
			return err
		})
		g.Go(func() error {
			e, err := s.store.EventStats(ctx, sc)
			if err == nil {
				out.Stats.Events = *e
			}
			return err
		})
		g.Go(func() (err error) {
			out.RecentEvents, err = s.store.RecentEvents(ctx, sc, recentLimit)
			return err
		})
		return g.Wait()
	}, "company-admin")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// HOD returns the statistics of the caller's department.
func (s *Service) HOD(ctx context.Context, p authz.Principal) (*HOD, error) {
	if err := requireRole(p, models.RoleHOD); err != nil {
		return nil, err
	}
	if p.DepartmentID == uuid.Nil {
		return nil, apperr.NotFound("department not found")
	}
	var out HOD
	err := s.cached(ctx, cache.CompanyScope(p.CompanyID), &out, func(ctx context.Context) error {
		dept := p.DepartmentID
		sc := Scope{CompanyID: p.CompanyID, DepartmentID: &dept}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			dep, err := s.store.Department(ctx, dept)
			if err == nil {
				out.Department = *dep
			}
			return err
		})
		g.Go(func() error {
			u, err := s.store.UserStats(ctx, sc)
			if err == nil {
				out.Stats.Users = *u
			}
			return err
		})
		g.Go(func() error {
			e, err := s.store.EventStats(ctx, sc)
			if err == nil {
				out.Stats.Events = *e
			}
			return err
		})
		g.Go(func() (err error) {
			out.Stats.PendingApprovals, err = s.store.PendingApprovals(ctx, sc, nil)
			return err
		})
		g.Go(func() (err error) {
			out.RecentEvents, err = s.store.RecentEvents(ctx, sc, recentLimit)
			return err
		})
		return g.Wait()
	}, "hod", p.DepartmentID.String())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// User returns the caller's assignments, trackers, approvals waiting on them and upcoming meetings.
func (s *Service) User(ctx context.Context, p authz.Principal) (*User, error) {
	if err := requireRole(p, models.RoleUser); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var out User
	err := s.cached(ctx, cache.CompanyScope(p.CompanyID), &out, func(ctx context.Context) error {
		me := p.ID
		sc := Scope{CompanyID: p.CompanyID, AssigneeID: &me}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a, err := s.store.AssignmentStats(ctx, me)
			if err == nil {
				out.Stats.Assignments = *a
			}
			return err
		})
		g.Go(func() error {
			t, err := s.store.TrackerStats(ctx, me)
			if err == nil {
				out.Stats.Trackers = *t
			}
			return err
		})
		g.Go(func() error {
			e, err := s.store.EventStats(ctx, sc)
			if err == nil {
				out.Stats.Events = *e
			}
			return err
		})
		g.Go(func() (err error) {
			out.Stats.PendingApprovals, err = s.store.PendingApprovals(ctx, Scope{CompanyID: p.CompanyID}, &me)
			return err
		})
		g.Go(func() (err error) {
			out.UpcomingMeetings, err = s.store.UpcomingMeetings(ctx, me, now, upcomingLimit)
			return err
		})
		g.Go(func() (err error) {
			out.RecentEvents, err = s.store.RecentEvents(ctx, sc, recentLimit)
			return err
		})
		return g.Wait()
	}, "user", p.ID.String())
	if err != nil {
		return nil, err
	}
	return &out, nil
}
