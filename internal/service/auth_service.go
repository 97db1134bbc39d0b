package service

import (
	"errors"

	"survey_analytics_backend/internal/config"
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/repository"
	"survey_analytics_backend/internal/util"
)

type AuthService struct {
	userRepo *repository.UserRepository
	jwtCfg   config.JWTConfig
}

func NewAuthService(userRepo *repository.UserRepository, jwtCfg config.JWTConfig) *AuthService {
	return &AuthService{userRepo: userRepo, jwtCfg: jwtCfg}
}

type RegisterInput struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=8"`
	Role     model.UserRole `json:"role"`
}

func (s *AuthService) Register(input RegisterInput) (*model.User, error) {
	if _, err := s.userRepo.FindByEmail(input.Email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, util.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := util.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = model.Creator
	}

	user := &model.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: hashed,
		Role:     role,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return "", nil, util.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !util.CheckPassword(password, user.Password) {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.jwtCfg.Secret, s.jwtCfg.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	_ = s.userRepo.UpdateLastSeen(user.ID)
	return token, user, nil
}

func (s *AuthService) GetProfile(userID uint) (*model.User, error) {
	return s.userRepo.FindByID(userID)
}
