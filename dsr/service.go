package dsr

import (
	"context"
	"sync"
	"time"

	"github.com/clinicboost/go-common/logger"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Processor fulfils one kind of data-subject request: exporting the
// patient's records, anonymizing them, and so on. Implementations must
// be idempotent; a failed request is retried from pending.
type Processor interface {
	Type() RequestType
	Process(ctx context.Context, req *Request) (outcome string, err error)
}

// Service drives the request workflow on top of a Store.
type Service struct {
	store      *Store
	log        logger.Logger
	mu         sync.RWMutex
	processors map[RequestType]Processor

	scanInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	waitGroup    sync.WaitGroup
	once         sync.Once
}

type ServiceOption func(*Service)

// WithScanInterval controls how often the background overdue scan runs.
func WithScanInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.scanInterval = d
		}
	}
}

// NewService returns a Service and starts the overdue scanner. Call
// Close to stop it.
func NewService(ctx context.Context, store *Store, log logger.Logger, opts ...ServiceOption) *Service {
	childCtx, cancel := context.WithCancel(ctx)
	s := &Service{
		store:        store,
		log:          log.WithPrefix("[dsr]"),
		processors:   make(map[RequestType]Processor),
		scanInterval: time.Hour,
		ctx:          childCtx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

// RegisterProcessor installs the handler for a request type, replacing
// any previous one.
func (s *Service) RegisterProcessor(p Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors[p.Type()] = p
}

func (s *Service) processor(t RequestType) (Processor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processors[t]
	return p, ok
}

// Submit records a new request. The due date is the legal response
// window from the time of receipt.
func (s *Service) Submit(ctx context.Context, patientID string, t RequestType, details string) (*Request, error) {
	if !t.Valid() {
		return nil, errors.Wrapf(ErrInvalidType, "%q", t)
	}
	now := time.Now()
	r := &Request{
		ID:         uuid.New().String(),
		PatientID:  patientID,
		Type:       t,
		Status:     StatusPending,
		Details:    details,
		ReceivedAt: now,
		DueAt:      now.Add(ResponseWindow),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("request received: id=%s patient=%s type=%s due=%s", r.ID, r.PatientID, r.Type, r.DueAt.Format(time.RFC3339))
	return r, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	return s.store.Get(ctx, id)
}

// Start moves a pending request to in_progress.
func (s *Service) Start(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, StatusInProgress, "")
}

// Complete closes an in_progress request, recording the outcome.
func (s *Service) Complete(ctx context.Context, id string, outcome string) (*Request, error) {
	return s.transition(ctx, id, StatusCompleted, outcome)
}

// Reject closes a request with a reason. Allowed from pending or
// in_progress.
func (s *Service) Reject(ctx context.Context, id string, reason string) (*Request, error) {
	return s.transition(ctx, id, StatusRejected, reason)
}

func (s *Service) transition(ctx context.Context, id string, next Status, outcome string) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", r.Status, next)
	}
	r.Status = next
	if outcome != "" {
		r.Outcome = outcome
	}
	if next == StatusCompleted {
		now := time.Now()
		r.CompletedAt = &now
	}
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Extend pushes the due date out by a duration string such as "2w" or
// "30d" (go-str2duration syntax). A request may be extended once, by at
// most two months, per GDPR Art. 12(3).
func (s *Service) Extend(ctx context.Context, id string, by string) (*Request, error) {
	d, err := str2duration.ParseDuration(by)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid extension %q", by)
	}
	if d <= 0 || d > MaxExtension {
		return nil, errors.Wrapf(ErrExtensionTooLong, "%s", by)
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, errors.Wrapf(ErrRequestClosed, "id %s", id)
	}
	if r.Extended {
		return nil, errors.Wrapf(ErrAlreadyExtended, "id %s", id)
	}
	r.DueAt = r.DueAt.Add(d)
	r.Extended = true
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("request extended: id=%s by=%s due=%s", r.ID, by, r.DueAt.Format(time.RFC3339))
	return r, nil
}

// Process runs the registered processor for a pending request. On
// success the request completes with the processor's outcome; on
// failure it returns to pending so it can be retried.
func (s *Service) Process(ctx context.Context, id string) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, ok := s.processor(r.Type)
	if !ok {
		return nil, errors.Wrapf(ErrNoProcessor, "%s", r.Type)
	}
	if r, err = s.transition(ctx, id, StatusInProgress, ""); err != nil {
		return nil, err
	}
	outcome, perr := p.Process(ctx, r)
	if perr != nil {
		s.log.Error("processing failed: id=%s type=%s error=%v", r.ID, r.Type, perr)
		if _, terr := s.transition(ctx, id, StatusPending, ""); terr != nil {
			return nil, errors.CombineErrors(perr, terr)
		}
		return nil, perr
	}
	r, err = s.transition(ctx, id, StatusCompleted, outcome)
	if err != nil {
		return nil, err
	}
	s.log.Info("request completed: id=%s type=%s", r.ID, r.Type)
	return r, nil
}

// Overdue returns open requests past their due date.
func (s *Service) Overdue(ctx context.Context) ([]*Request, error) {
	return s.store.ListOverdue(ctx, time.Now())
}

func (s *Service) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.scanOverdue()
		}
	}
}

func (s *Service) scanOverdue() {
	overdue, err := s.store.ListOverdue(s.ctx, time.Now())
	if err != nil {
		s.log.Error("overdue scan failed: %v", err)
		return
	}
	for _, r := range overdue {
		s.log.Warn("request overdue: id=%s patient=%s type=%s due=%s", r.ID, r.PatientID, r.Type, r.DueAt.Format(time.RFC3339))
	}
}

// Close stops the overdue scanner. The store is left open; the caller
// owns it.
func (s *Service) Close() {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
}
