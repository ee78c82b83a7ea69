package services

import (
	"errors"

	"github.com/baharkarakas/betsave-core/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminAuthService logs the operator into the admin read API.
type AdminAuthService struct {
	creds auth.AdminCredentials
	tm    *auth.TokenManager
}

func NewAdminAuthService(creds auth.AdminCredentials, tm *auth.TokenManager) *AdminAuthService {
	return &AdminAuthService{creds: creds, tm: tm}
}

func (s *AdminAuthService) Login(email, password string) (auth.TokenPair, error) {
	if !s.creds.Check(email, password) {
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	return s.tm.GeneratePair(s.creds.Email, auth.RoleAdmin)
}

// Refresh trades a valid refresh token for a new pair.
func (s *AdminAuthService) Refresh(refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tm.ParseRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.tm.GeneratePair(claims.Subject, claims.Role)
}
