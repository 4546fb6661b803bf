package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/tier"
	"parallax-gateway/pkg/hash"
	"parallax-gateway/pkg/log"
	"parallax-gateway/pkg/token"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken string, err error)
	// Resolve 校验 token 并返回其 subject 对应的用户。
	Resolve(ctx context.Context, tokenString string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	SetTier(ctx context.Context, userID string, t tier.Tier) (*model.User, error)
	Deactivate(ctx context.Context, userID string) error
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	now        func() time.Time
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 3. 创建新用户，默认 free 等级
	newUser := &model.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Tier:         tier.Free,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Infow("[UserService] 用户注册成功", "userId", newUser.ID, "email", newUser.Email)
	return newUser, nil
}

// Authenticate 校验邮箱与密码。邮箱不存在与密码错误返回同一个错误。
func (s *userService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// Login 处理用户登录的业务逻辑，成功时签发 access token。
func (s *userService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	accessToken, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return accessToken, nil
}

// Resolve 供认证中间件使用：token 无效或用户已不存在都视为凭证无效。
func (s *userService) Resolve(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := s.jwtManager.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// GetProfile 根据用户 ID 获取用户详细信息。
func (s *userService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// SetTier 修改用户的订阅等级并记录修改时间。
func (s *userService) SetTier(ctx context.Context, userID string, t tier.Tier) (*model.User, error) {
	if !tier.Validate(t) {
		return nil, fmt.Errorf("unknown tier %q", t)
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user.Tier = t
	user.TierUpdatedAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	log.Infow("[UserService] 用户等级已更新", "userId", userID, "tier", t)
	return user, nil
}

// Deactivate 停用账号。用户记录不做物理删除。
func (s *userService) Deactivate(ctx context.Context, userID string) error {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	log.Infow("[UserService] 用户已停用", "userId", userID)
	return nil
}
