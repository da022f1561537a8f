package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"
)

type UserDTO struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	PhoneNumber  string `json:"phone_number"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthLoginInput struct {
	Email    string
	Password string
}

// nilの項目は変更しない。氏名は空文字でも変更しない。
type UpdateProfileInput struct {
	FirstName   *string
	LastName    *string
	Address     *string
	City        *string
	State       *string
	PhoneNumber *string
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type ForceLogoutResponse struct {
	UserID          string `json:"user_id"`
	NewTokenVersion int    `json:"new_token_version"`
}

type AuthUsecase struct {
	users  repo.UserRepository
	hasher PasswordHasher
	tokens AccessTokenIssuer
	ids    IDGenerator
	clock  Clock
}

func NewAuthUsecase(
	users repo.UserRepository,
	hasher PasswordHasher,
	tokens AccessTokenIssuer,
	ids IDGenerator,
	clock Clock,
) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		ids:    ids,
		clock:  clock,
	}
}

func (u *AuthUsecase) Register(ctx context.Context, in AuthRegisterInput) (UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if len(in.Password) < 8 {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}
	if len(in.Password) > 72 {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "password too long")
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	now := u.clock.Now()
	user := &model.User{
		ID:           u.ids.NewID(),
		Email:        email,
		PasswordHash: pwHash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         model.RoleUser,
		TokenVersion: 0,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return UserDTO{}, NewHTTPError(http.StatusConflict, "User already exists")
		}
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toUserDTO(user), nil
}

func (u *AuthUsecase) Login(ctx context.Context, in AuthLoginInput) (AuthLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return AuthLoginResponse{}, NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	//ユーザー取得。存在しない場合もパスワード違いと同じ401
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && user == nil) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//パスワード照合（bcrypt）
	if !u.hasher.Verify(in.Password, user.PasswordHash) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	//last_login更新
	now := u.clock.Now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	token, exp, err := u.tokens.Issue(*user, now)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    int(exp.Sub(now).Seconds()),
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID string) (UserDTO, error) {
	if strings.TrimSpace(userID) == "" {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !user.IsActive {
		return UserDTO{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return toUserDTO(user), nil
}

// 自分のプロフィールを更新する
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (UserDTO, error) {
	if strings.TrimSpace(userID) == "" {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil || user == nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !user.IsActive {
		return UserDTO{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if v := trimmed(in.FirstName); v != "" {
		user.FirstName = v
	}
	if v := trimmed(in.LastName); v != "" {
		user.LastName = v
	}
	if in.Address != nil {
		user.Address = strings.TrimSpace(*in.Address)
	}
	if in.City != nil {
		user.City = strings.TrimSpace(*in.City)
	}
	if in.State != nil {
		user.State = strings.TrimSpace(*in.State)
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	user.UpdatedAt = u.clock.Now()

	if err := u.users.Update(ctx, user); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return UserDTO{}, NewHTTPError(http.StatusNotFound, "User not found")
		}
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toUserDTO(user), nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// token_versionを上げて既存のアクセストークンを全て無効にする（管理者）
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID string) (ForceLogoutResponse, error) {
	if strings.TrimSpace(targetUserID) == "" {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	err := u.users.IncrementTokenVersion(ctx, targetUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || user == nil {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Address:      u.Address,
		City:         u.City,
		State:        u.State,
		PhoneNumber:  u.PhoneNumber,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}
