package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/model"
)

// ErrInvalidSessionID is returned for anonymous tokens that are not 8-128
// characters of letters, digits, '-' or '_'.
var ErrInvalidSessionID = errors.New("invalid session id")

// anonymousSeenTTL bounds how long a registered token skips the database
// refresh of last_seen_at.
const anonymousSeenTTL = 10 * time.Minute

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// IdentityService resolves the owner of a request: a user from a bearer
// token or an anonymous session token.
type IdentityService struct {
	auth     *AuthService
	sessions AnonymousSessionStore
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewIdentityService creates a new IdentityService. rdb may be nil.
func NewIdentityService(auth *AuthService, sessions AnonymousSessionStore, rdb *redis.Client, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		auth:     auth,
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "identity_service").Logger(),
	}
}

// FromBearer validates a JWT and returns the user identity it carries.
func (s *IdentityService) FromBearer(token string) (model.Identity, *Claims, error) {
	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		return model.Identity{}, nil, err
	}
	return model.UserIdentity(claims.UserID), claims, nil
}

// Anonymous validates the token and registers it on first use. Repeated
// registration of the same token is harmless. The Redis marker is written
// only after the row exists, so a token is never trusted before exams can
// reference it.
func (s *IdentityService) Anonymous(ctx context.Context, token string) (model.Identity, error) {
	if !ValidSessionID(token) {
		return model.Identity{}, ErrInvalidSessionID
	}

	if s.recentlySeen(ctx, token) {
		return model.AnonymousIdentity(token), nil
	}

	created, err := s.sessions.Touch(ctx, token)
	if err != nil {
		return model.Identity{}, fmt.Errorf("register anonymous session: %w", err)
	}
	if created {
		s.log.Debug().Str("session_id", token).Msg("Anonymous session registered")
	}
	s.markSeen(ctx, token)
	return model.AnonymousIdentity(token), nil
}

// NewSessionID generates a fresh anonymous token.
func (s *IdentityService) NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether token is an acceptable anonymous token.
func ValidSessionID(token string) bool {
	return sessionIDPattern.MatchString(token)
}

// recentlySeen reports whether the token was registered within
// anonymousSeenTTL. Without Redis every call goes to the database.
func (s *IdentityService) recentlySeen(ctx context.Context, token string) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, config.CacheKey.AnonymousSessionSeenKey(token)).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Anonymous session cache unavailable")
		return false
	}
	return n > 0
}

func (s *IdentityService) markSeen(ctx context.Context, token string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AnonymousSessionSeenKey(token), 1, anonymousSeenTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache anonymous session")
	}
}
