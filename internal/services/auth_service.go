package services

import (
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/miglopesdev98/library-service/internal/models"
	"github.com/miglopesdev98/library-service/internal/repositories"
)

// Token scopes. Access tokens authenticate API calls; refresh tokens may only
// be exchanged for new access tokens.
const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
)

var (
	// ErrEmailTaken is returned when registration reuses an existing email.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned on a failed login. The same error
	// covers unknown email and wrong password so the two cases are
	// indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned for malformed, expired, mis-signed or
	// wrong-scope tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the JWT payload: the user id as subject, the admin capability and
// the token scope.
type Claims struct {
	IsAdmin bool   `json:"is_admin"`
	Scope   string `json:"scope"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a uuid.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// HasCapability reports whether the credential carries the named capability.
func (c *Claims) HasCapability(capability string) bool {
	return capability == "admin" && c.IsAdmin
}

// TokenPair bundles the two credentials issued at registration and login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService registers users, verifies logins and issues/validates JWTs.
type AuthService interface {
	Register(name, email, password string) (*models.User, *TokenPair, error)
	Login(email, password string) (*models.User, *TokenPair, error)
	VerifyToken(token, scope string) (*Claims, error)
	CurrentUser(claims *Claims) (*models.User, error)
	Refresh(claims *Claims) (string, error)
}

type authService struct {
	db         *gorm.DB
	userRepo   repositories.UserRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService returns an AuthService signing HS256 tokens with the given
// secret.
func NewAuthService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	secret string,
	accessTTL, refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:         db,
		userRepo:   userRepo,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user with a bcrypt-hashed password and returns it with a
// fresh token pair. The password never touches the store in plaintext.
func (s *authService) Register(name, email, password string) (*models.User, *TokenPair, error) {
	if name == "" {
		return nil, nil, invalidField("name", "name is required")
	}
	if email == "" {
		return nil, nil, invalidField("email", "email is required")
	}
	if password == "" {
		return nil, nil, invalidField("password", "password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		DateJoined:   s.now(),
	}
	if err := s.userRepo.Create(nil, user); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrEmailTaken
		}
		log.Printf("[ERROR] Register: failed to create user: %v", err)
		return nil, nil, err
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[INFO] Register: user %s registered (id=%s)", user.Email, user.ID)
	return user, tokens, nil
}

// Login verifies the password against the stored bcrypt hash and returns the
// user with a fresh token pair.
func (s *authService) Login(email, password string) (*models.User, *TokenPair, error) {
	if email == "" || password == "" {
		return nil, nil, invalidField("email", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(nil, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		log.Printf("[WARN] Login: bad password for %s", email)
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[INFO] Login: user %s logged in", user.Email)
	return user, tokens, nil
}

// VerifyToken parses and validates a token and checks it carries the expected
// scope. Any failure maps to ErrInvalidToken.
func (s *authService) VerifyToken(tokenString, scope string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != scope {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser loads the user identified by validated claims.
func (s *authService) CurrentUser(claims *Claims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.userRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Refresh exchanges validated refresh-scoped claims for a new access token.
// The admin flag is re-read from the store so a demotion takes effect at the
// next refresh rather than surviving for the refresh token's lifetime.
func (s *authService) Refresh(claims *Claims) (string, error) {
	user, err := s.CurrentUser(claims)
	if err != nil {
		return "", err
	}
	return s.signToken(user, ScopeAccess, s.accessTTL)
}

func (s *authService) issueTokenPair(user *models.User) (*TokenPair, error) {
	access, err := s.signToken(user, ScopeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, ScopeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) signToken(user *models.User, scope string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		IsAdmin: user.IsAdmin,
		Scope:   scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
