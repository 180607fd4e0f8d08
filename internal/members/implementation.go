// internal/members/implementation.go
package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pointnexus/internal/clients"
	"pointnexus/internal/ratelimit"
)

var (
	// ErrInvalidOTP covers missing, expired and mismatched codes alike
	// so the response does not reveal which one it was.
	ErrInvalidOTP = errors.New("invalid or expired code")
)

const otpTTL = 10 * time.Minute

// service implements the Service interface.
type service struct {
	store     Store
	notifier  clients.Notifier
	tokens    *TokenIssuer
	otpSend   ratelimit.Allower
	otpVerify ratelimit.Allower
	purgers   []Purger
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Config wires the member registry.
type Config struct {
	Store     Store
	Notifier  clients.Notifier
	Tokens    *TokenIssuer
	OTPSend   ratelimit.Allower
	OTPVerify ratelimit.Allower
	Purgers   []Purger
	Logger    *slog.Logger
}

// NewService creates a new member registry instance.
func NewService(cfg Config) Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &service{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		tokens:    cfg.Tokens,
		otpSend:   cfg.OTPSend,
		otpVerify: cfg.OTPVerify,
		purgers:   cfg.Purgers,
		logger:    cfg.Logger,
		tracer:    otel.Tracer("pointnexus/members"),
	}
}

func (s *service) Provision(ctx context.Context, in ProvisionInput) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "members.provision",
		trace.WithAttributes(attribute.String("member.email", in.Email)))
	defer span.End()

	subStatus := SubInactive
	memStatus := MemberInactive
	if in.FreeTier {
		subStatus = SubFree
		memStatus = MemberActive
	}

	member := &Member{
		ID:                 uuid.New(),
		Email:              in.Email,
		Name:               in.Name,
		SubscriptionStatus: subStatus,
		MembershipStatus:   memStatus,
		MembershipType:     in.MembershipType,
		InvitedBy:          in.InvitedBy,
		Country:            in.Country,
		City:               in.City,
		Lat:                in.Lat,
		Lng:                in.Lng,
	}

	err := s.store.Create(ctx, member)
	if errors.Is(err, ErrEmailTaken) {
		// A retried redemption already created this member.
		return s.store.GetByEmail(ctx, in.Email)
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.store.GetByID(ctx, id)
}

func (s *service) GetByEmail(ctx context.Context, email string) (*Member, error) {
	return s.store.GetByEmail(ctx, email)
}

func (s *service) RequestOTP(ctx context.Context, email string) error {
	if !s.otpSend.Allow(email) {
		return ratelimit.ErrRateLimited
	}

	// Only registered members receive codes, but the caller gets the
	// same answer either way.
	if _, err := s.store.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, salt, err := hashCode(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	if err := s.store.SaveOTP(ctx, &OTPChallenge{
		Email:     email,
		CodeHash:  hash,
		Salt:      salt,
		ExpiresAt: time.Now().UTC().Add(otpTTL),
	}); err != nil {
		return err
	}

	if err := s.notifier.Notify(ctx, email, "Your login code", code); err != nil {
		s.logger.Error("otp delivery failed", "email", email, "error", err)
	}
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	if !s.otpVerify.Allow(email) {
		return "", ratelimit.ErrRateLimited
	}

	challenge, err := s.store.GetOTP(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidOTP
	}
	if err != nil {
		return "", err
	}
	if time.Now().UTC().After(challenge.ExpiresAt) {
		return "", ErrInvalidOTP
	}

	ok, err := verifyCode(code, challenge.Salt, challenge.CodeHash)
	if err != nil {
		return "", fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		return "", ErrInvalidOTP
	}

	member, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if err := s.store.DeleteOTP(ctx, email); err != nil {
		return "", err
	}
	return s.tokens.Issue(member.ID, "login")
}

func (s *service) Purge(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "members.purge",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer span.End()

	member, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, p := range s.purgers {
		if err := p.PurgeMember(ctx, id); err != nil {
			return fmt.Errorf("cascade purge: %w", err)
		}
	}
	if err := s.store.DeleteOTP(ctx, member.Email); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
