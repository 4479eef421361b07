package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/notify"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const (
	codeDigits       = 6
	phoneCodePrefix  = "phone:"
	defaultCodeTTL   = 5 * time.Minute
	errBadCredential = "invalid email or password"
)

var codeSpace = big.NewInt(1_000_000)

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PhoneCodeInput requests a verification code for a phone number.
type PhoneCodeInput struct {
	Phone string `json:"phone" validate:"required,phone"`
}

// VerifyPhoneInput submits a verification code.
type VerifyPhoneInput struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// TokenResponse is returned after a successful login or verification.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

// CodeRequested reports how long a freshly sent code stays valid.
type CodeRequested struct {
	ExpiresIn int `json:"expires_in"`
}

// AuthService authenticates admins and vendors.
type AuthService struct {
	admins   repository.AdminRepository
	vendors  repository.VendorRepository
	codes    repository.CodeStore
	notifier notify.Notifier
	tokens   *auth.JWTManager
	codeTTL  time.Duration
	logger   *slog.Logger
}

// NewAuthService creates a new auth service. A non-positive codeTTL selects
// the five minute default.
func NewAuthService(
	admins repository.AdminRepository,
	vendors repository.VendorRepository,
	codes repository.CodeStore,
	notifier notify.Notifier,
	tokens *auth.JWTManager,
	codeTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	return &AuthService{
		admins:   admins,
		vendors:  vendors,
		codes:    codes,
		notifier: notifier,
		tokens:   tokens,
		codeTTL:  codeTTL,
		logger:   logger,
	}
}

// Login authenticates an admin or vendor by email and password. Admin
// accounts take precedence when both share an email.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, apperrors.Unauthorized(errBadCredential)
	}

	principal, err := s.resolvePrincipal(ctx, email)
	if err != nil {
		return nil, err
	}

	if !principal.IsVerified() {
		return nil, apperrors.Forbidden("account is not verified")
	}
	if v, ok := principal.(*domain.Vendor); ok && !v.IsActive {
		return nil, apperrors.Forbidden("account is disabled")
	}

	hash := principal.PasswordHash()
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)) != nil {
		return nil, apperrors.Unauthorized(errBadCredential)
	}

	s.logger.InfoContext(ctx, "principal logged in",
		slog.String("user_id", principal.PrincipalID()),
		slog.String("role", string(principal.Kind())),
	)
	return s.issue(principal)
}

func (s *AuthService) resolvePrincipal(ctx context.Context, email string) (domain.Principal, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get admin by email: %w", err)
	}

	vendor, err := s.vendors.GetByEmail(ctx, email)
	if err == nil {
		return vendor, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized(errBadCredential)
	}
	return nil, fmt.Errorf("get vendor by email: %w", err)
}

// RequestPhoneCode generates a one-time code for phone, stores it with a TTL
// and hands it to the notifier. The code itself is never returned.
func (s *AuthService) RequestPhoneCode(ctx context.Context, input PhoneCodeInput) (*CodeRequested, error) {
	phone := normalizePhone(input.Phone)
	if phone == "" {
		return nil, apperrors.MissingField("phone")
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	if err := s.codes.Save(ctx, phoneCodePrefix+phone, code, s.codeTTL); err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}

	if err := s.notifier.SendVerificationCode(ctx, phone, code); err != nil {
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	s.logger.InfoContext(ctx, "verification code sent", slog.String("phone", notify.Mask(phone)))
	return &CodeRequested{ExpiresIn: int(s.codeTTL.Seconds())}, nil
}

// VerifyPhoneCode consumes the code sent to phone. A first verification
// onboards the vendor; later ones log it in. Codes are single use, so a
// wrong guess also burns the code.
func (s *AuthService) VerifyPhoneCode(ctx context.Context, input VerifyPhoneInput) (*TokenResponse, error) {
	phone := normalizePhone(input.Phone)
	if phone == "" {
		return nil, apperrors.MissingField("phone")
	}

	stored, err := s.codes.Consume(ctx, phoneCodePrefix+phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired verification code")
		}
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(input.Code))) != 1 {
		return nil, apperrors.Unauthorized("invalid or expired verification code")
	}

	vendor, err := s.vendorForPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !vendor.IsActive {
		return nil, apperrors.Forbidden("account is disabled")
	}

	return s.issue(vendor)
}

func (s *AuthService) vendorForPhone(ctx context.Context, phone string) (*domain.Vendor, error) {
	vendor, err := s.vendors.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if !vendor.Verified {
			if err := s.vendors.MarkVerified(ctx, vendor.ID); err != nil {
				return nil, fmt.Errorf("mark vendor verified: %w", err)
			}
			vendor.Verified = true
		}
		return vendor, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("get vendor by phone: %w", err)
	}

	now := time.Now().UTC()
	vendor = &domain.Vendor{
		ID:        uuid.New().String(),
		Phone:     phone,
		Verified:  true,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.vendors.Create(ctx, vendor); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			// Another verification for the same phone won the insert.
			return s.vendors.GetByPhone(ctx, phone)
		}
		return nil, fmt.Errorf("create vendor: %w", err)
	}

	s.logger.InfoContext(ctx, "vendor onboarded", slog.String("vendor_id", vendor.ID))
	return vendor, nil
}

func (s *AuthService) issue(p domain.Principal) (*TokenResponse, error) {
	token, err := s.tokens.GenerateAccessToken(p.PrincipalID(), string(p.Kind()))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.ExpiresIn().Seconds()),
		UserID:      p.PrincipalID(),
		Role:        string(p.Kind()),
	}, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
