package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/galo-graneros/ai-contador/internal/config"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/fiscal"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

type AuthService interface {
	Registrar(ctx context.Context, req dto.RegistrarRequest) (*dto.LoginResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	Perfil(ctx context.Context, userID uuid.UUID) (*dto.UsuarioResponse, error)
	ActualizarPerfil(ctx context.Context, userID uuid.UUID, req dto.ActualizarPerfilRequest) (*dto.UsuarioResponse, error)
}

type authService struct {
	repo repository.UsuarioRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func (s *authService) Registrar(ctx context.Context, req dto.RegistrarRequest) (*dto.LoginResponse, error) {
	if req.CUIT != nil {
		limpio := fiscal.LimpiarCUIT(*req.CUIT)
		if !fiscal.ValidarCUIT(limpio) {
			return nil, fmt.Errorf("CUIT inválido: %s", *req.CUIT)
		}
		req.CUIT = &limpio
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}

	condicion := req.CondicionFiscal
	if condicion == "" {
		condicion = "monotributo"
	}
	user := &model.Usuario{
		Email:           req.Email,
		Nombre:          req.Nombre,
		PasswordHash:    string(hash),
		CUIT:            req.CUIT,
		CondicionFiscal: condicion,
		Activo:          true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("no se pudo crear el usuario: %w", err)
	}
	return s.buildLoginResponse(user)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("credenciales invalidas")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("credenciales invalidas")
	}
	return s.buildLoginResponse(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("refresh token invalido o expirado")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims invalidos")
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("token mal formado")
	}
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.New("token mal formado")
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, errors.New("usuario no encontrado o inactivo")
	}
	return s.buildLoginResponse(user)
}

func (s *authService) Perfil(ctx context.Context, userID uuid.UUID) (*dto.UsuarioResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.New("usuario no encontrado")
	}
	return usuarioToResponse(user), nil
}

func (s *authService) ActualizarPerfil(ctx context.Context, userID uuid.UUID, req dto.ActualizarPerfilRequest) (*dto.UsuarioResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.New("usuario no encontrado")
	}

	if req.Nombre != "" {
		user.Nombre = req.Nombre
	}
	if req.CUIT != nil {
		limpio := fiscal.LimpiarCUIT(*req.CUIT)
		if !fiscal.ValidarCUIT(limpio) {
			return nil, fmt.Errorf("CUIT inválido: %s", *req.CUIT)
		}
		user.CUIT = &limpio
	}
	if req.CondicionFiscal != "" {
		user.CondicionFiscal = req.CondicionFiscal
	}
	if req.CategoriaMonotributo != nil {
		user.CategoriaMonotributo = req.CategoriaMonotributo
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return usuarioToResponse(user), nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *authService) buildLoginResponse(user *model.Usuario) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         *usuarioToResponse(user),
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"exp":     time.Now().Add(duration).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func usuarioToResponse(u *model.Usuario) *dto.UsuarioResponse {
	return &dto.UsuarioResponse{
		ID:                   u.ID.String(),
		Email:                u.Email,
		Nombre:               u.Nombre,
		CUIT:                 u.CUIT,
		CondicionFiscal:      u.CondicionFiscal,
		CategoriaMonotributo: u.CategoriaMonotributo,
		Activo:               u.Activo,
	}
}
