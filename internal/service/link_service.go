package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hopnet-labs/hoplink/internal/clicks"
	"github.com/hopnet-labs/hoplink/internal/model"
	"github.com/hopnet-labs/hoplink/internal/repository"
)

var (
	ErrInvalidURL          = errors.New("invalid URL format")
	ErrLinkNotFound        = errors.New("link not found")
	ErrLinkExpired         = errors.New("link has expired")
	ErrLinkDeactivated     = errors.New("link is deactivated")
	ErrShortCodeGeneration = errors.New("failed to generate unique short code")
)

// LinkService handles business logic for link operations
type LinkService struct {
	repo             repository.LinkRepositoryInterface
	tracker          clicks.Tracker
	generator        *ShortCodeGenerator
	baseURL          string
	shortCodeRetries int
	guestExpiry      time.Duration
	lookupTimeout    time.Duration
}

// LinkServiceInterface defines the contract for link operations
type LinkServiceInterface interface {
	CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.CreateLinkResponse, error)
	GetLink(ctx context.Context, code string) (*model.LinkResponse, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, code string, meta clicks.Metadata) (string, error)
}

// Options carries the service's tunables.
type Options struct {
	BaseURL          string
	ShortCodeLen     int
	ShortCodeRetries int
	GuestLinkExpiry  time.Duration
	LookupTimeout    time.Duration
}

// NewLinkService creates a new link service
func NewLinkService(repo repository.LinkRepositoryInterface, tracker clicks.Tracker, opts Options) *LinkService {
	if opts.ShortCodeLen <= 0 {
		opts.ShortCodeLen = 7
	}
	if opts.ShortCodeRetries <= 0 {
		opts.ShortCodeRetries = 5
	}
	if opts.GuestLinkExpiry <= 0 {
		opts.GuestLinkExpiry = 7 * 24 * time.Hour
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 2 * time.Second
	}
	if tracker == nil {
		tracker = clicks.NoopTracker{}
	}
	return &LinkService{
		repo:             repo,
		tracker:          tracker,
		generator:        NewShortCodeGenerator(opts.ShortCodeLen),
		baseURL:          opts.BaseURL,
		shortCodeRetries: opts.ShortCodeRetries,
		guestExpiry:      opts.GuestLinkExpiry,
		lookupTimeout:    opts.LookupTimeout,
	}
}

// Resolve maps a short code to its redirect target and schedules the click
// side effect. The redirect decision is final before the click is
// persisted; tracking failures never alter it. The directory lookup is
// bounded by the configured timeout, and lookup failures (including the
// deadline) are infrastructure errors, never a not-found.
func (s *LinkService) Resolve(ctx context.Context, code string, meta clicks.Metadata) (string, error) {
	if code == "" {
		return "", ErrLinkNotFound
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	link, err := s.repo.GetByCode(lookupCtx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("directory lookup for %q: %w", code, err)
	}

	if !link.Active {
		return "", ErrLinkDeactivated
	}
	if link.Expired() {
		return "", ErrLinkExpired
	}

	s.tracker.Track(link.ID, meta)

	// The stored target is returned exactly as created, byte for byte.
	return link.TargetURL, nil
}

// CreateLink creates a new short link. Guest links (no owner) always get
// the default expiry; owned links may request one in days or omit it.
func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.CreateLinkResponse, error) {
	if _, err := Canonicalize(req.URL); err != nil {
		return nil, ErrInvalidURL
	}

	now := time.Now()
	var expiresAt *time.Time
	if req.OwnerID == nil {
		t := now.Add(s.guestExpiry)
		expiresAt = &t
	} else if req.ExpiresIn > 0 {
		t := now.AddDate(0, 0, req.ExpiresIn)
		expiresAt = &t
	}

	var created *model.Link
	for attempt := 0; attempt < s.shortCodeRetries; attempt++ {
		candidate, err := s.generator.Generate(req.URL)
		if err != nil {
			return nil, err
		}

		link := &model.Link{
			ID:        uuid.New(),
			OwnerID:   req.OwnerID,
			ShortCode: candidate,
			TargetURL: req.URL,
			Active:    true,
			ExpiresAt: expiresAt,
		}
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeConflict) {
				continue
			}
			return nil, err
		}
		created = link
		break
	}
	if created == nil {
		// Exhausting the retry budget means the code space is too dense
		// for current volume; surface it instead of failing silently.
		return nil, ErrShortCodeGeneration
	}

	var expiresAtStr string
	if created.ExpiresAt != nil {
		expiresAtStr = created.ExpiresAt.Format(time.RFC3339)
	}

	return &model.CreateLinkResponse{
		ID:        created.ID,
		ShortCode: created.ShortCode,
		ShortURL:  s.baseURL + "/" + created.ShortCode,
		ExpiresAt: expiresAtStr,
	}, nil
}

// GetLink retrieves link metadata by short code, without any click side
// effect. Deactivated links are still returned so owners can inspect and
// re-activate them; expired links are reported as gone.
func (s *LinkService) GetLink(ctx context.Context, code string) (*model.LinkResponse, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.Expired() {
		return nil, ErrLinkExpired
	}

	var expiresAtStr string
	if link.ExpiresAt != nil {
		expiresAtStr = link.ExpiresAt.Format(time.RFC3339)
	}

	return &model.LinkResponse{
		ID:         link.ID,
		ShortCode:  link.ShortCode,
		TargetURL:  link.TargetURL,
		ShortURL:   s.baseURL + "/" + link.ShortCode,
		Active:     link.Active,
		CreatedAt:  link.CreatedAt.Format(time.RFC3339),
		ExpiresAt:  expiresAtStr,
		ClickCount: link.ClickCount,
	}, nil
}

// SetActive toggles a link's active flag. Deactivation makes the link
// unresolvable until re-activated.
func (s *LinkService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	return nil
}

// DeleteLink removes a link; its click events go with it.
func (s *LinkService) DeleteLink(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	return nil
}

// Ensure LinkService implements LinkServiceInterface at compile time
var _ LinkServiceInterface = (*LinkService)(nil)
