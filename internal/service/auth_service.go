package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexedwards/argon2id"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/repo/postgres"
	"github.com/confero/checkin-api/pkg/auth"
	"github.com/confero/checkin-api/pkg/config"
)

type AuthService interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
}

type authService struct {
	adminRepo       postgres.AdminRepo
	participantRepo postgres.ParticipantRepo
	config          *config.Config
}

func NewAuthService(adminRepo postgres.AdminRepo, participantRepo postgres.ParticipantRepo, config *config.Config) AuthService {
	return &authService{
		adminRepo:       adminRepo,
		participantRepo: participantRepo,
		config:          config,
	}
}

// Login authenticates against the admins table first, then participants.
// Registration is disabled in this build; accounts are provisioned out of
// band.
func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, domain.ErrUnauthorized
	}

	admin, err := s.adminRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	if admin != nil {
		return s.issueTokens(strconv.FormatInt(admin.ID, 10), admin.Email, admin.Role, admin.PasswordHash, req.Password)
	}

	participant, err := s.participantRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	if participant == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.issueTokens(participant.ID, participant.Email, domain.RoleParticipant, participant.PasswordHash, req.Password)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if claims.Role != "refresh" {
		return nil, domain.ErrUnauthorized
	}

	// The real role travels in the audience-restricted refresh claims; look
	// the principal up again so a role change takes effect on rotation.
	var role domain.Role
	if id, err := strconv.ParseInt(claims.Sub, 10, 64); err == nil {
		admin, err := s.adminRepo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find admin: %w", err)
		}
		if admin == nil {
			return nil, domain.ErrUnauthorized
		}
		role = admin.Role
	} else {
		participant, err := s.participantRepo.GetByID(ctx, claims.Sub)
		if err != nil {
			return nil, fmt.Errorf("failed to find participant: %w", err)
		}
		if participant == nil {
			return nil, domain.ErrUnauthorized
		}
		role = domain.RoleParticipant
	}

	accessToken, err := auth.NewAccessToken(claims.Sub, claims.Email, string(role), s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		Role:         role,
	}, nil
}

func (s *authService) issueTokens(sub, email string, role domain.Role, passwordHash, password string) (*domain.LoginResponse, error) {
	valid, err := argon2id.ComparePasswordAndHash(password, passwordHash)
	if err != nil || !valid {
		return nil, domain.ErrUnauthorized
	}

	accessToken, err := auth.NewAccessToken(sub, email, string(role), s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := auth.NewAccessToken(sub, email, "refresh", s.config.Auth.JWTSecret, s.config.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		Role:         role,
	}, nil
}
