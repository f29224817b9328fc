package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"instacap/internal/domain"
	"instacap/internal/infra"
	"instacap/internal/providers/language"
	"instacap/internal/providers/vision"
	"instacap/internal/sqlinline"
)

// accountRecord is the single row backing fakeDB.
type accountRecord struct {
	ID             string
	Email          string
	Name           string
	Picture        string
	Plan           string
	PostsThisMonth int
	PeriodResetAt  time.Time
}

// fakeDB implements infra.SQLExecutor over one in-memory account, with the
// same conditional-increment semantics as the real charge statement.
type fakeDB struct {
	mu      sync.Mutex
	account accountRecord
	events  []string

	chargeErr error
	selectErr error
}

func newFakeDB(plan string, posts int) *fakeDB {
	return &fakeDB{account: accountRecord{
		ID:             "11111111-2222-3333-4444-555555555555",
		Email:          "ana@example.com",
		Name:           "Ana",
		Plan:           plan,
		PostsThisMonth: posts,
		PeriodResetAt:  domain.NextReset(time.Now()),
	}}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if query == sqlinline.QInsertUsageEvent {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, args[2].(string))
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected exec: " + query)
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch query {
	case sqlinline.QSelectUserByID:
		if f.selectErr != nil {
			return stubRow{err: f.selectErr}
		}
		if args[0].(string) != f.account.ID {
			return stubRow{err: pgx.ErrNoRows}
		}
		a := f.account
		return stubRow{vals: []any{a.ID, a.Email, a.Name, a.Picture, a.Plan, a.PostsThisMonth, a.PeriodResetAt}}
	case sqlinline.QUpsertGoogleUser:
		f.account.Email = args[1].(string)
		f.account.Name = args[2].(string)
		f.account.Picture = args[3].(string)
		a := f.account
		return stubRow{vals: []any{a.ID, a.Email, a.Name, a.Picture, a.Plan, a.PostsThisMonth, a.PeriodResetAt}}
	case sqlinline.QChargeGeneration:
		if f.chargeErr != nil {
			return stubRow{err: f.chargeErr}
		}
		limit := domain.PlanLimit(domain.Plan(f.account.Plan))
		if f.account.PostsThisMonth >= limit {
			return stubRow{err: pgx.ErrNoRows}
		}
		f.account.PostsThisMonth++
		a := f.account
		return stubRow{vals: []any{a.Plan, a.PostsThisMonth, a.PeriodResetAt}}
	case sqlinline.QUpdatePlanByEmail:
		if args[0].(string) != f.account.Email {
			return stubRow{err: pgx.ErrNoRows}
		}
		f.account.Plan = args[1].(string)
		return stubRow{vals: []any{f.account.ID}}
	}
	return stubRow{err: errors.New("unexpected query: " + query)}
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query: " + query)
}

func (f *fakeDB) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeDB) posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account.PostsThisMonth
}

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int:
			*p = r.vals[i].(int)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("stubRow: unsupported scan destination")
		}
	}
	return nil
}

type stubVision struct {
	mu       sync.Mutex
	calls    int
	analysis *vision.Analysis
	err      error
}

func (s *stubVision) Annotate(ctx context.Context, image []byte) (*vision.Analysis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.analysis != nil {
		return s.analysis, nil
	}
	return &vision.Analysis{Labels: []string{"beach", "sunset"}}, nil
}

func (s *stubVision) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubLanguage struct {
	content *domain.PostContent
	err     error
}

func (s *stubLanguage) GeneratePost(ctx context.Context, req language.CaptionRequest) (*domain.PostContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.content != nil {
		return s.content, nil
	}
	return &domain.PostContent{
		Caption:     "Golden hour by the sea",
		Hashtags:    []string{"beach", "sunset"},
		Suggestions: []string{"Post at 6pm", "Tag the location", "Ask a question"},
	}, nil
}

func newTestApp(db *fakeDB, v *stubVision, l *stubLanguage) *App {
	return &App{
		Config: &infra.Config{
			JWTSecret:            "test-secret",
			JWTTTL:               time.Hour,
			BillingWebhookSecret: "whsec_test",
		},
		Logger:   zerolog.Nop(),
		SQL:      db,
		Vision:   v,
		Language: l,
	}
}
