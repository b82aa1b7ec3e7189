package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/estate-crm/models"
)

// fakeLeadStore meniru predicate query lead store di memori.
type fakeLeadStore struct {
	mu        sync.Mutex
	leads     map[uint]*models.Lead
	findErr   error
	markCalls int
}

func newFakeLeadStore(leads ...models.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: make(map[uint]*models.Lead)}
	for i := range leads {
		l := leads[i]
		s.leads[l.ID] = &l
	}
	return s
}

func (s *fakeLeadStore) FindLeadsWithPendingReminders(context.Context) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []models.Lead
	for _, l := range s.leads {
		if l.HasPendingReminder() {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeLeadStore) MarkReminderCompleted(_ context.Context, id uint, dueAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	l, ok := s.leads[id]
	if !ok || l.Reminder.IsCompleted || l.Reminder.Date == nil || !l.Reminder.Date.Equal(dueAt) {
		return false, nil
	}
	l.Reminder.IsCompleted = true
	return true, nil
}

func (s *fakeLeadStore) completed(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leads[id].Reminder.IsCompleted
}

type fakeUserStore map[uint]*models.User

func (s fakeUserStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) DeliverReminder(ctx context.Context, ev ReminderEvent) DeliveryReport {
	args := m.Called(ctx, ev)
	return args.Get(0).(DeliveryReport)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestReminderService(leads LeadStore, users UserStore, n ReminderNotifier, clk *clock) *ReminderService {
	s := NewReminderService(leads, users, n, NewDedupCache(2*time.Hour), ReminderServiceConfig{
		Interval:    time.Minute,
		EvalTimeout: time.Second,
	})
	s.now = clk.Now
	return s
}

var testAgent = &models.User{ID: 10, CompanyID: 1, Name: "Sari", Email: "sari@example.com"}

func TestReminderServiceFiresOncePerThreshold(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	due := clk.Now().Add(72 * time.Minute) // 1.2 jam
	leads := newFakeLeadStore(models.Lead{
		ID: 1, CompanyID: 1, Name: "Budi", AssignedTo: uintPtr(10),
		Reminder: models.Reminder{Date: timePtr(due), Message: "call back"},
	})

	n := &mockNotifier{}
	n.On("DeliverReminder", mock.Anything, mock.MatchedBy(func(ev ReminderEvent) bool {
		return ev.Lead.ID == 1 && ev.Interval.Hours == 2 && ev.User.ID == 10
	})).Return(DeliveryReport{Persisted: true}).Once()

	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fired)

	// scan berikutnya dalam band yang sama hanya di-suppress
	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		res, err = s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, res.Fired)
		assert.Equal(t, 1, res.Suppressed)
	}
	n.AssertExpectations(t)
}

func TestReminderServiceWalksLadder(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	due := clk.Now().Add(25 * time.Hour)
	leads := newFakeLeadStore(models.Lead{
		ID: 5, CompanyID: 1, Name: "Rina", AssignedTo: uintPtr(10),
		Reminder: models.Reminder{Date: timePtr(due)},
	})

	var mu sync.Mutex
	var fired []float64
	n := &mockNotifier{}
	n.On("DeliverReminder", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		fired = append(fired, args.Get(1).(ReminderEvent).Interval.Hours)
		mu.Unlock()
	}).Return(DeliveryReport{})

	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)

	// scan tiap 10 menit sampai lewat due
	for clk.Now().Before(due.Add(20 * time.Minute)) {
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		clk.Advance(10 * time.Minute)
	}

	assert.Equal(t, []float64{24, 2, 1, 0.5}, fired)
	assert.True(t, leads.completed(5))
}

func TestReminderServiceRetiresDueReminderOnce(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	leads := newFakeLeadStore(models.Lead{
		ID: 2, CompanyID: 1, Name: "Dewi", AssignedTo: uintPtr(10),
		Reminder: models.Reminder{Date: timePtr(clk.Now().Add(-12 * time.Minute))},
	})
	n := &mockNotifier{}
	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.True(t, leads.completed(2))

	res, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Equal(t, 1, leads.markCalls)

	n.AssertNotCalled(t, "DeliverReminder", mock.Anything, mock.Anything)
}

func TestReminderServiceSkipsUnassignedAndFarLeads(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	leads := newFakeLeadStore(
		models.Lead{ID: 1, Name: "Unassigned", Reminder: models.Reminder{Date: timePtr(clk.Now().Add(30 * time.Minute))}},
		models.Lead{ID: 2, Name: "Far", AssignedTo: uintPtr(10), Reminder: models.Reminder{Date: timePtr(clk.Now().Add(48 * time.Hour))}},
		models.Lead{ID: 3, Name: "NoReminder", AssignedTo: uintPtr(10)},
	)
	n := &mockNotifier{}
	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Idle)
	n.AssertNotCalled(t, "DeliverReminder", mock.Anything, mock.Anything)
}

func TestReminderServiceCustomLadderTakesPrecedence(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	user := &models.User{ID: 11, CompanyID: 1, Name: "Custom"}
	user.NotificationSettings.ReminderTimeline = jsonTimeline(models.ReminderTimeline{
		Enabled:   true,
		Intervals: []models.ReminderInterval{{Hours: 4, Label: "4h"}},
	})
	leads := newFakeLeadStore(
		models.Lead{ID: 1, Name: "A", AssignedTo: uintPtr(11), Reminder: models.Reminder{Date: timePtr(clk.Now().Add(3 * time.Hour))}},
		models.Lead{ID: 2, Name: "B", AssignedTo: uintPtr(11), Reminder: models.Reminder{Date: timePtr(clk.Now().Add(20 * time.Hour))}},
	)

	n := &mockNotifier{}
	n.On("DeliverReminder", mock.Anything, mock.MatchedBy(func(ev ReminderEvent) bool {
		return ev.Lead.ID == 1 && ev.Interval.Hours == 4
	})).Return(DeliveryReport{}).Once()

	s := newTestReminderService(leads, fakeUserStore{11: user}, n, clk)
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fired)
	// lead B 20 jam lagi: default 24h tidak dipakai
	assert.Equal(t, 1, res.Idle)
	n.AssertExpectations(t)
}

func TestReminderServiceIsolatesFailures(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	soon := timePtr(clk.Now().Add(20 * time.Minute))
	leads := newFakeLeadStore(
		models.Lead{ID: 1, Name: "MissingUser", AssignedTo: uintPtr(404), Reminder: models.Reminder{Date: soon}},
		models.Lead{ID: 2, Name: "Panics", AssignedTo: uintPtr(10), Reminder: models.Reminder{Date: soon}},
		models.Lead{ID: 3, Name: "Fine", AssignedTo: uintPtr(10), Reminder: models.Reminder{Date: soon}},
	)

	n := &mockNotifier{}
	n.On("DeliverReminder", mock.Anything, mock.MatchedBy(func(ev ReminderEvent) bool { return ev.Lead.ID == 2 })).
		Run(func(mock.Arguments) { panic("boom") }).Return(DeliveryReport{})
	n.On("DeliverReminder", mock.Anything, mock.MatchedBy(func(ev ReminderEvent) bool { return ev.Lead.ID == 3 })).
		Return(DeliveryReport{}).Once()

	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Fired)
}

func TestReminderServiceStoreFailure(t *testing.T) {
	leads := newFakeLeadStore()
	leads.findErr = errors.New("db down")
	clk := &clock{now: time.Now()}
	s := newTestReminderService(leads, fakeUserStore{}, &mockNotifier{}, clk)

	_, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")

	// tick menelan error, tidak panic
	assert.NotPanics(t, func() { s.tick(context.Background()) })
}

func TestReminderServiceConcurrentRunOnceFiresOnce(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	leads := newFakeLeadStore(models.Lead{
		ID: 1, Name: "Race", AssignedTo: uintPtr(10),
		Reminder: models.Reminder{Date: timePtr(clk.Now().Add(45 * time.Minute))},
	})
	n := &mockNotifier{}
	n.On("DeliverReminder", mock.Anything, mock.Anything).Return(DeliveryReport{}).Once()

	s := newTestReminderService(leads, fakeUserStore{10: testAgent}, n, clk)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	n.AssertNumberOfCalls(t, "DeliverReminder", 1)
}

func TestReminderServiceStartStop(t *testing.T) {
	leads := newFakeLeadStore()
	s := NewReminderService(leads, fakeUserStore{}, &mockNotifier{}, nil, ReminderServiceConfig{Interval: 5 * time.Millisecond})

	s.Start(context.Background())
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestReminderServiceStopsOnContextCancel(t *testing.T) {
	s := NewReminderService(newFakeLeadStore(), fakeUserStore{}, &mockNotifier{}, nil, ReminderServiceConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
}

// editAfterLoad mengubah reminder tepat setelah scan memuat lead, sebelum lead dievaluasi.
type editAfterLoad struct {
	*LeadService
	edit func(ctx context.Context)
}

func (s *editAfterLoad) FindLeadsWithPendingReminders(ctx context.Context) ([]models.Lead, error) {
	leads, err := s.LeadService.FindLeadsWithPendingReminders(ctx)
	if err == nil && s.edit != nil {
		s.edit(ctx)
		s.edit = nil
	}
	return leads, err
}

func TestReminderServiceDoesNotRetireEditedReminder(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(ctx context.Context, svc *LeadService, leadID uint) error
		check func(t *testing.T, lead *models.Lead)
	}{
		{
			name: "rescheduled",
			edit: func(ctx context.Context, svc *LeadService, leadID uint) error {
				_, err := svc.SetReminder(ctx, 1, leadID, time.Now().Add(3*time.Hour), "pindah jadwal")
				return err
			},
			check: func(t *testing.T, lead *models.Lead) {
				require.NotNil(t, lead.Reminder.Date)
				assert.True(t, lead.Reminder.Date.After(time.Now().Add(2*time.Hour)))
				assert.Equal(t, "pindah jadwal", lead.Reminder.Message)
			},
		},
		{
			name: "cleared",
			edit: func(ctx context.Context, svc *LeadService, leadID uint) error {
				_, err := svc.ClearReminder(ctx, 1, leadID)
				return err
			},
			check: func(t *testing.T, lead *models.Lead) {
				assert.Nil(t, lead.Reminder.Date)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t)
			leads := NewLeadService(db)
			ctx := context.Background()

			overdue := time.Now().UTC().Add(-time.Minute)
			lead := models.Lead{
				CompanyID: 1, Name: "Pak Harun", AssignedTo: uintPtr(10),
				Reminder: models.Reminder{Date: timePtr(overdue), Message: "survey"},
			}
			require.NoError(t, db.Create(&lead).Error)

			store := &editAfterLoad{LeadService: leads, edit: func(ctx context.Context) {
				require.NoError(t, tc.edit(ctx, leads, lead.ID))
			}}
			n := &mockNotifier{}
			s := newTestReminderService(store, fakeUserStore{10: testAgent}, n, &clock{now: time.Now().UTC()})

			res, err := s.RunOnce(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Candidates)
			assert.Equal(t, 0, res.Completed)

			got, err := leads.GetLead(ctx, 1, lead.ID)
			require.NoError(t, err)
			assert.False(t, got.Reminder.IsCompleted)
			tc.check(t, got)
			n.AssertNotCalled(t, "DeliverReminder", mock.Anything, mock.Anything)
		})
	}
}
