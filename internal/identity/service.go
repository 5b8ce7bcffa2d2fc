package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cartline/internal/users"
	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/db/models"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/security"
	"github.com/example/cartline/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const provisionalPasswordLen = 24

// OTPSender dispatches challenge codes and account notices to the
// buyer's phone.
type OTPSender interface {
	SendOTP(ctx context.Context, to types.Phone, code string)
	SendAccountCreated(ctx context.Context, user *models.User)
}

type resendLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service resolves buyer identities during checkout. COD buyers prove
// ownership of their number through an OTP challenge; gateway buyers are
// provisioned on the spot and the successful payment stands in for
// verification.
type Service interface {
	Lookup(ctx context.Context, phone types.Phone) (*models.User, error)
	RequestOTP(ctx context.Context, phone types.Phone) error
	VerifyOTP(ctx context.Context, phone types.Phone, code string) error
	ResolveVerified(ctx context.Context, phone types.Phone, name, code string) (*models.User, error)
	ResolveProvisional(ctx context.Context, phone types.Phone, name string) (*models.User, error)
}

type service struct {
	store   ChallengeStore
	users   users.Repository
	sender  OTPSender
	limiter resendLimiter
	cfg     config.OTPConfig
	pwCfg   config.PasswordConfig
	logg    *logger.Logger
}

// NewService builds the identity service.
func NewService(
	store ChallengeStore,
	usersRepo users.Repository,
	sender OTPSender,
	limiter resendLimiter,
	cfg config.OTPConfig,
	pwCfg config.PasswordConfig,
	logg *logger.Logger,
) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("otp sender is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		store:   store,
		users:   usersRepo,
		sender:  sender,
		limiter: limiter,
		cfg:     cfg,
		pwCfg:   pwCfg,
		logg:    logg,
	}, nil
}

// Lookup returns the account registered for the phone pair, or nil when
// the number is unknown.
func (s *service) Lookup(ctx context.Context, phone types.Phone) (*models.User, error) {
	if phone.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	return s.findByPhone(ctx, phone)
}

// RequestOTP issues a fresh challenge for the phone pair, replacing any
// challenge still outstanding.
func (s *service) RequestOTP(ctx context.Context, phone types.Phone) error {
	if phone.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, "otp:"+phone.Key(), s.cfg.ResendLimit, s.cfg.ResendWindow)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking otp rate limit")
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeConflict, "too many otp requests")
		}
	}

	code, err := GenerateCode(s.cfg.Digits)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating otp")
	}

	if err := s.store.Delete(ctx, phone); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing previous otp")
	}
	challenge := Challenge{Code: code, IssuedAt: time.Now().UTC()}
	if err := s.store.Put(ctx, phone, challenge, s.cfg.TTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing otp")
	}

	s.logg.Info(s.logg.WithField(ctx, "phone", phone.Masked()), "otp issued")
	s.sender.SendOTP(ctx, phone, code)
	return nil
}

// VerifyOTP checks the submitted code against the outstanding challenge
// and consumes it on success.
func (s *service) VerifyOTP(ctx context.Context, phone types.Phone, code string) error {
	challenge, err := s.store.Get(ctx, phone)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading otp")
	}
	if challenge == nil {
		return pkgerrors.New(pkgerrors.CodeOTPInvalid, "no outstanding challenge")
	}
	if s.cfg.TTL > 0 && time.Since(challenge.IssuedAt) > s.cfg.TTL {
		_ = s.store.Delete(ctx, phone)
		return pkgerrors.New(pkgerrors.CodeOTPExpired, "challenge expired")
	}
	if challenge.Code != code {
		return pkgerrors.New(pkgerrors.CodeOTPInvalid, "code mismatch")
	}
	if err := s.store.Delete(ctx, phone); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consuming otp")
	}
	return nil
}

// ResolveVerified verifies the OTP and returns the matching user, creating
// one when the number is new. Existing unverified users are upgraded.
func (s *service) ResolveVerified(ctx context.Context, phone types.Phone, name, code string) (*models.User, error) {
	if err := s.VerifyOTP(ctx, phone, code); err != nil {
		return nil, err
	}

	user, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		created, err := s.provision(ctx, phone, name, true)
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	if !user.Verified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking user verified")
		}
		user.Verified = true
	}
	return user, nil
}

// ResolveProvisional returns the user for the phone pair, creating an
// unverified account when none exists.
func (s *service) ResolveProvisional(ctx context.Context, phone types.Phone, name string) (*models.User, error) {
	if phone.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	user, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return s.provision(ctx, phone, name, false)
}

func (s *service) findByPhone(ctx context.Context, phone types.Phone) (*models.User, error) {
	user, err := s.users.FindByPhone(ctx, phone.CountryCode, phone.Number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

func (s *service) provision(ctx context.Context, phone types.Phone, name string, verified bool) (*models.User, error) {
	password, err := security.GenerateRandomPassword(provisionalPasswordLen)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating credential")
	}
	hash, err := security.HashPassword(password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing credential")
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		CountryCode:  phone.CountryCode,
		Number:       phone.Number,
		PasswordHash: hash,
		Verified:     verified,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}
	s.logg.Info(s.logg.WithField(ctx, "phone", phone.Masked()), "user provisioned")
	s.sender.SendAccountCreated(ctx, created)
	return created, nil
}
