package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pyrelog/pyre/internal/app/model"
	"github.com/pyrelog/pyre/internal/app/repository"
	infraPrometheus "github.com/pyrelog/pyre/internal/infra/prometheus"
	"github.com/pyrelog/pyre/internal/patledger"
	"github.com/pyrelog/pyre/internal/screen"
	"github.com/pyrelog/pyre/internal/secretid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyContent rejects content that is empty after trimming.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLong rejects content over the length limit.
	ErrContentTooLong = errors.New("content too long")

	// ErrSensitiveContent is a policy outcome, not a fault: the screen
	// flagged the text and the caller should route to support resources.
	ErrSensitiveContent = errors.New("content flagged by sensitive screen")

	// ErrInvalidID rejects ids that fail the shape check, before any
	// store round-trip.
	ErrInvalidID = errors.New("invalid worry id")

	// ErrPatNotCounted reports a pat that registered in the ledger but
	// whose counter increment then failed. Deliberately not retried: the
	// increment may have landed before the failure was reported, and a
	// blind retry would risk counting the pat twice.
	ErrPatNotCounted = errors.New("pat registered but not counted")
)

// collisionRetries caps id regeneration on insert collision. The keyspace
// makes collisions astronomically rare; the bound exists to cap latency.
const collisionRetries = 3

// BurnResult is the outcome of a successful manual burn.
type BurnResult struct {
	BurnedAt    time.Time
	Certificate string
}

// PatResult reports the counter after a pat attempt. Registered is false
// when this origin had already patted the worry, which is an expected
// outcome rather than an error; PatCount then carries the current total.
type PatResult struct {
	PatCount   int
	Registered bool
}

// WorryService is the lifecycle engine: the only place that enforces the
// legality of state transitions. A worry is pending until it burns or its
// expiry passes; expired-but-unburned rows still exist (and accept burns
// and pats) until the sweep removes them; burned is terminal.
type WorryService interface {
	CreateWorry(ctx context.Context, content string) (*model.Worry, error)
	GetWorry(ctx context.Context, id string) (*model.Worry, error)
	BurnWorry(ctx context.Context, id string) (*BurnResult, error)
	RegisterPat(ctx context.Context, id, originKey string) (*PatResult, error)
	Peek(ctx context.Context) (*model.Worry, error)
	Sweep(ctx context.Context) (int64, error)
}

// CertificateIssuer mints a verifiable token for a completed burn.
type CertificateIssuer interface {
	Issue(worryID string, burnedAt time.Time) (string, error)
}

// Deps bundles the collaborators of the lifecycle engine.
type Deps struct {
	Logger       *zap.Logger
	Worries      repository.WorryRepository
	Ledger patledger.Ledger
	Screen *screen.Screen

	// IDFilter is the optional process-local negative cache. Leave nil
	// unless this process is the only one creating worries.
	IDFilter *secretid.Filter

	Publisher    *EventPublisher
	Certificates CertificateIssuer

	// TTL is the lifetime of a worry; zero selects model.DefaultTTL.
	TTL time.Duration

	// RetentionGrace keeps expired rows sweepable-but-present for a
	// while after expiry. Zero purges at expiry.
	RetentionGrace time.Duration
}

type worryService struct {
	deps    Deps
	ttl     time.Duration
	nowFunc func() time.Time
	genFunc func() (string, error)
}

// NewWorryService returns the lifecycle engine implementation.
func NewWorryService(deps Deps) WorryService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Screen == nil {
		deps.Screen = screen.New(nil)
	}
	ttl := deps.TTL
	if ttl == 0 {
		ttl = model.DefaultTTL
	}
	return &worryService{
		deps:    deps,
		ttl:     ttl,
		nowFunc: time.Now,
		genFunc: secretid.Generate,
	}
}

func (s *worryService) CreateWorry(ctx context.Context, content string) (*model.Worry, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(trimmed) > model.MaxContentLength {
		return nil, ErrContentTooLong
	}

	// Authoritative screen check. The edge runs the same check before
	// submitting, but a client can bypass that one.
	if s.deps.Screen.Flags(trimmed) {
		infraPrometheus.ContentFlagged.Inc()
		return nil, ErrSensitiveContent
	}

	now := s.nowFunc()
	worry := &model.Worry{
		Content:   trimmed,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		PatCount:  0,
	}

	for attempt := 0; ; attempt++ {
		id, err := s.genFunc()
		if err != nil {
			return nil, fmt.Errorf("generate worry id: %w", err)
		}
		worry.ID = id

		err = s.deps.Worries.Create(ctx, worry)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrIDCollision) && attempt < collisionRetries {
			s.deps.Logger.Warn("worry id collision, regenerating",
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, fmt.Errorf("create worry: %w", err)
	}

	if s.deps.IDFilter != nil {
		s.deps.IDFilter.Add(worry.ID)
	}
	infraPrometheus.WorriesCreated.Inc()
	s.publish(model.EventWorryCreated, worry.ID, 0)

	return worry, nil
}

func (s *worryService) GetWorry(ctx context.Context, id string) (*model.Worry, error) {
	if !secretid.IsValid(id) {
		return nil, ErrInvalidID
	}
	// The bloom filter only ever short-circuits ids that were certainly
	// never created, so the not-found answer stays uniform. It is only
	// installed when this process is the sole writer; see Filter.
	if s.deps.IDFilter != nil && !s.deps.IDFilter.MayExist(id) {
		return nil, repository.ErrWorryNotFound
	}

	worry, err := s.deps.Worries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWorryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get worry: %w", err)
	}
	return worry, nil
}

func (s *worryService) BurnWorry(ctx context.Context, id string) (*BurnResult, error) {
	if !secretid.IsValid(id) {
		return nil, ErrInvalidID
	}

	burnedAt, err := s.deps.Worries.Burn(ctx, id, s.nowFunc())
	if err != nil {
		if errors.Is(err, repository.ErrWorryNotFound) || errors.Is(err, repository.ErrAlreadyBurned) {
			return nil, err
		}
		return nil, fmt.Errorf("burn worry: %w", err)
	}

	result := &BurnResult{BurnedAt: burnedAt}
	if s.deps.Certificates != nil {
		cert, certErr := s.deps.Certificates.Issue(id, burnedAt)
		if certErr != nil {
			// The burn itself succeeded; a missing certificate is not
			// worth failing the request over.
			s.deps.Logger.Error("failed to issue burn certificate", zap.Error(certErr))
		} else {
			result.Certificate = cert
		}
	}

	infraPrometheus.WorriesBurned.Inc()
	s.publish(model.EventWorryBurned, id, 0)

	return result, nil
}

func (s *worryService) RegisterPat(ctx context.Context, id, originKey string) (*PatResult, error) {
	if !secretid.IsValid(id) {
		return nil, ErrInvalidID
	}

	worry, err := s.deps.Worries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWorryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load worry for pat: %w", err)
	}
	if worry.IsBurned {
		return nil, repository.ErrAlreadyBurned
	}

	registered, err := s.deps.Ledger.TryRegister(ctx, id, originKey)
	if err != nil {
		return nil, fmt.Errorf("register pat: %w", err)
	}
	if !registered {
		return &PatResult{PatCount: worry.PatCount, Registered: false}, nil
	}

	count, err := s.deps.Worries.IncrementPat(ctx, id)
	if err != nil {
		// Registered-but-not-counted is a distinguishable failure; see
		// ErrPatNotCounted for why it is never silently retried.
		return nil, fmt.Errorf("%w: %w", ErrPatNotCounted, err)
	}

	infraPrometheus.PatsRegistered.Inc()
	s.publish(model.EventWorryPatted, id, int64(count))

	return &PatResult{PatCount: count, Registered: true}, nil
}

func (s *worryService) Peek(ctx context.Context) (*model.Worry, error) {
	worry, err := s.deps.Worries.RandomLive(ctx, s.nowFunc())
	if err != nil {
		if errors.Is(err, repository.ErrNoLiveWorries) {
			return nil, err
		}
		return nil, fmt.Errorf("peek random worry: %w", err)
	}
	return worry, nil
}

func (s *worryService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.nowFunc().Add(-s.deps.RetentionGrace)
	ids, err := s.deps.Worries.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired worries: %w", err)
	}

	// Pat registrations must not outlive their record. Backings whose
	// entries expire on their own (Redis TTL) skip this.
	if forgetter, ok := s.deps.Ledger.(patledger.Forgetter); ok {
		for _, id := range ids {
			forgetter.Forget(id)
		}
	}

	purged := int64(len(ids))
	if purged > 0 {
		infraPrometheus.WorriesPurged.Add(float64(purged))
		s.publish(model.EventSweepPurged, "", purged)
	}
	return purged, nil
}

func (s *worryService) publish(kind, worryID string, count int64) {
	if s.deps.Publisher == nil {
		return
	}
	go func() {
		if err := s.deps.Publisher.Publish(kind, worryID, count); err != nil {
			s.deps.Logger.Error("failed to publish lifecycle event",
				zap.String("kind", kind), zap.Error(err))
		}
	}()
}
