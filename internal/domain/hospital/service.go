package hospital

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/organlink/organlink/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("hospital not found")
	ErrInvalidCredentials = errors.New("invalid hospital id or password")
	ErrInactive           = errors.New("hospital account is inactive")
)

var hospitalIDPattern = regexp.MustCompile(`^[A-Z0-9_]{2,64}$`)

type Service struct {
	repo   Repository
	issuer *auth.TokenIssuer
}

func NewService(repo Repository, issuer *auth.TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// LoginResult carries the issued token and the authenticated facility.
type LoginResult struct {
	Token    string    `json:"token"`
	Hospital *Hospital `json:"hospital"`
}

// Authenticate checks hospital credentials and issues a session token.
// Unknown IDs and wrong passwords return the same error so callers cannot
// probe for registered IDs.
func (s *Service) Authenticate(ctx context.Context, hospitalID, password string) (*LoginResult, error) {
	h, err := s.repo.GetByID(ctx, hospitalID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if h.Status != StatusActive {
		return nil, ErrInactive
	}

	token, err := s.issuer.Issue(h.HospitalID, h.HospitalID, auth.RoleHospital)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, Hospital: h}, nil
}

// Register creates a facility account. Admin only.
func (s *Service) Register(ctx context.Context, h *Hospital, password string) error {
	h.HospitalID = strings.ToUpper(strings.TrimSpace(h.HospitalID))
	if !hospitalIDPattern.MatchString(h.HospitalID) {
		return fmt.Errorf("invalid hospital_id: must be 2-64 chars of A-Z, 0-9 or underscore")
	}
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.City == "" || h.State == "" || h.Country == "" {
		return fmt.Errorf("city, state and country are required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	h.PasswordHash = string(hash)
	h.Status = StatusActive
	return s.repo.Create(ctx, h)
}

func (s *Service) Get(ctx context.Context, hospitalID string) (*Hospital, error) {
	return s.repo.GetByID(ctx, hospitalID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, h *Hospital) error {
	if _, err := s.repo.GetByID(ctx, h.HospitalID); err != nil {
		return err
	}
	return s.repo.Update(ctx, h)
}

func (s *Service) SetStatus(ctx context.Context, hospitalID, status string) error {
	if status != StatusActive && status != StatusInactive {
		return fmt.Errorf("invalid status: %s", status)
	}
	ok, err := s.repo.UpdateStatus(ctx, hospitalID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Locations builds the country/state/city tree for the login picker. Only
// active hospitals are listed.
func (s *Service) Locations(ctx context.Context) (LocationTree, error) {
	hospitals, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	tree := LocationTree{}
	for _, h := range hospitals {
		states, ok := tree[h.Country]
		if !ok {
			states = map[string]map[string][]LocationEntry{}
			tree[h.Country] = states
		}
		cities, ok := states[h.State]
		if !ok {
			cities = map[string][]LocationEntry{}
			states[h.State] = cities
		}
		cities[h.City] = append(cities[h.City], LocationEntry{
			HospitalID: h.HospitalID,
			Name:       h.Name,
		})
	}
	return tree, nil
}
