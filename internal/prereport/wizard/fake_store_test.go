package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prereport-service/internal/models"
	"prereport-service/internal/prereport/cache"
	"prereport-service/internal/prereport/store"
)

// memStore is an in-memory Store with failure hooks.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	reports   map[int64]*models.PreReport
	data      map[int64]models.LeadData
	clients   []models.Client
	products  map[int64][]models.Product
	saveHook  func(ctx context.Context) error
	readHook  func()
	saveCalls int
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  100,
		reports: map[int64]*models.PreReport{},
		data:    map[int64]models.LeadData{},
		clients: []models.Client{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}},
		products: map[int64][]models.Product{
			1: {{ID: 10, ClientID: 1, Name: "Bolts"}, {ID: 11, ClientID: 1, Name: "Nuts"}},
		},
	}
}

func (m *memStore) CreateReport(_ context.Context, req models.InitRequest) (*models.PreReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned, ok := m.products[req.ClientID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrClientNotFound, req.ClientID)
	}
	for _, id := range req.ProductIDs {
		found := false
		for _, p := range owned {
			found = found || p.ID == id
		}
		if !found {
			return nil, fmt.Errorf("%w: product %d", store.ErrInvalidProducts, id)
		}
	}

	m.nextID++
	now := time.Now().UTC()
	r := &models.PreReport{
		ID:           m.nextID,
		ClientID:     req.ClientID,
		ProductIDs:   req.ProductIDs,
		LeadType:     req.LeadType,
		ReportStatus: models.ReportStatusDraft,
		CurrentStep:  1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.reports[r.ID] = r
	m.data[r.ID] = models.LeadData{}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetReport(_ context.Context, id int64) (*models.PreReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetLeadData(_ context.Context, id int64, _ models.LeadType) (models.LeadData, error) {
	m.mu.Lock()
	hook := m.readHook
	m.readHook = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (m *memStore) SaveStep(ctx context.Context, id int64, _ models.LeadType, patch models.LeadData, ptr store.Pointer) (models.LeadData, error) {
	m.mu.Lock()
	m.saveCalls++
	hook := m.saveHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	merged := m.data[id].Merge(patch)
	m.data[id] = merged
	r.CurrentStep = ptr.CurrentStep
	r.ReportStatus = ptr.Status
	r.UpdatedAt = time.Now().UTC()
	return merged.Clone(), nil
}

func (m *memStore) SetStep(_ context.Context, id int64, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	r.CurrentStep = step
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, from, to models.ReportStatus, submittedAt *time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.ReportStatus != from {
		return time.Time{}, store.ErrStatusConflict
	}
	r.ReportStatus = to
	if submittedAt != nil {
		at := *submittedAt
		r.SubmittedAt = &at
	}
	r.UpdatedAt = time.Now().UTC()
	return r.UpdatedAt, nil
}

func (m *memStore) ListClients(context.Context) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]models.Client(nil), m.clients...), nil
}

func (m *memStore) ListProducts(_ context.Context, clientID int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Product{}, m.products[clientID]...), nil
}

func (m *memStore) report(id int64) models.PreReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reports[id]
}

func (m *memStore) leadData(id int64) models.LeadData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id].Clone()
}

// place moves a report directly, bypassing the wizard.
func (m *memStore) place(id int64, step int, status models.ReportStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[id].CurrentStep = step
	m.reports[id].ReportStatus = status
}

// onNextLeadDataRead runs fn once, before the next GetLeadData reads.
func (m *memStore) onNextLeadDataRead(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readHook = fn
}

// hookedLocker runs afterRelease once a lease has been released.
type hookedLocker struct {
	cache.Locker
	mu           sync.Mutex
	acquired     int
	afterRelease func()
}

func (l *hookedLocker) Acquire(ctx context.Context, reportID int64, ttl time.Duration) (cache.Release, error) {
	release, err := l.Locker.Acquire(ctx, reportID, ttl)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return func(ctx context.Context) error {
		err := release(ctx)
		l.mu.Lock()
		hook := l.afterRelease
		l.afterRelease = nil
		l.mu.Unlock()
		if hook != nil {
			hook()
		}
		return err
	}, nil
}

func (l *hookedLocker) Acquisitions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
