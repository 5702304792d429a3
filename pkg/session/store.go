package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/observability"
)

// Token key prefixes. Every token of a bundle maps to the same serialized
// user under its own prefix.
const (
	prefixSession     = "SESSION:"
	prefixWallet      = "WALLET:"
	prefixMyPortal    = "MYPORTAL:"
	prefixBPD         = "BPD:"
	prefixZendesk     = "ZENDESK:"
	prefixFIMS        = "FIMS:"
	prefixSessionInfo = "SESSIONINFO:"
	blockedUsersKey   = "BLOCKEDUSERS"
)

var tokenPrefixes = map[identity.TokenType]string{
	identity.TokenSession:  prefixSession,
	identity.TokenWallet:   prefixWallet,
	identity.TokenMyPortal: prefixMyPortal,
	identity.TokenBPD:      prefixBPD,
	identity.TokenZendesk:  prefixZendesk,
	identity.TokenFIMS:     prefixFIMS,
}

func tokenKey(t identity.TokenType, token string) string {
	return tokenPrefixes[t] + token
}

func sessionInfoKey(fiscalCode string) string {
	return prefixSessionInfo + fiscalCode
}

// StoreConfig carries the session policies.
type StoreConfig struct {
	// AllowMultipleSessions appends new sessions to the index instead of
	// evicting the previous one.
	AllowMultipleSessions bool
}

// Store is the redis-backed session store.
type Store struct {
	cfg     StoreConfig
	primary *redis.Client
	replica *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics

	closing  atomic.Bool
	inflight sync.WaitGroup
}

// NewStore creates a Store over the given clients. metrics may be nil.
func NewStore(clients *Clients, cfg StoreConfig, logger *observability.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		cfg:     cfg,
		primary: clients.Primary,
		replica: clients.Replica,
		logger:  logger,
		metrics: metrics,
	}
}

// begin registers an in-flight operation so shutdown can drain it. It fails
// once Close has been called.
func (s *Store) begin() error {
	if s.closing.Load() {
		return ErrStoreClosed
	}
	s.inflight.Add(1)
	if s.closing.Load() {
		s.inflight.Done()
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) end(op string, err error) {
	s.inflight.Done()
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metrics.SessionOperationsTotal.WithLabelValues(op, outcome).Inc()
	}
}

// Set writes the serialized user under every token key with an identical TTL
// and records the session in the fiscal-code index. Under the single-session
// policy any prior session is evicted first; the evict-then-write sequence is
// not one transaction, so two near-simultaneous logins may briefly coexist
// until the next enforcement check. On partial write failure the keys of this
// attempt are rolled back.
func (s *Store) Set(ctx context.Context, user *identity.User, ttl time.Duration) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.end("set", err) }()

	if !s.cfg.AllowMultipleSessions {
		if err := s.evictSessions(ctx, user.FiscalCode); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal user: %v", ErrStore, err)
	}

	pipe := s.primary.TxPipeline()
	for _, t := range identity.TokenTypes {
		pipe.Set(ctx, tokenKey(t, user.Token(t)), payload, ttl)
	}
	infoKey := sessionInfoKey(user.FiscalCode)
	pipe.SAdd(ctx, infoKey, tokenKey(identity.TokenSession, user.SessionToken))
	pipe.Expire(ctx, infoKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.rollback(ctx, user)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// rollback deletes the keys of a failed write attempt so a session is never
// reachable through some tokens but not others.
func (s *Store) rollback(ctx context.Context, user *identity.User) {
	keys := make([]string, 0, len(identity.TokenTypes))
	for _, t := range identity.TokenTypes {
		keys = append(keys, tokenKey(t, user.Token(t)))
	}
	if err := s.primary.Del(ctx, keys...).Err(); err != nil {
		s.logger.WithError(err).WithField("fiscal_code", user.FiscalCode).
			Error("Failed to roll back partial session write")
	}
	if err := s.primary.SRem(ctx, sessionInfoKey(user.FiscalCode), tokenKey(identity.TokenSession, user.SessionToken)).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to roll back session index entry")
	}
}

// GetBySessionToken looks up a user by session token.
func (s *Store) GetBySessionToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenSession, token)
}

// GetByWalletToken looks up a user by wallet token.
func (s *Store) GetByWalletToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenWallet, token)
}

// GetByMyPortalToken looks up a user by myportal token.
func (s *Store) GetByMyPortalToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenMyPortal, token)
}

// GetByBPDToken looks up a user by bpd token.
func (s *Store) GetByBPDToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenBPD, token)
}

// GetByZendeskToken looks up a user by zendesk token.
func (s *Store) GetByZendeskToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenZendesk, token)
}

// GetByFIMSToken looks up a user by fims token.
func (s *Store) GetByFIMSToken(ctx context.Context, token string) (*identity.User, error) {
	return s.getBy(ctx, identity.TokenFIMS, token)
}

func (s *Store) getBy(ctx context.Context, t identity.TokenType, token string) (user *identity.User, err error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer func() { s.end("get", err) }()

	data, err := s.replica.Get(ctx, tokenKey(t, token)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	var u identity.User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		// Corrupt payload: delete it so the next lookup is a clean miss.
		s.primary.Del(ctx, tokenKey(t, token))
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &u, nil
}

// Del removes every token key of the session owning sessionToken and its
// index entry. Deleting an absent session is not an error.
func (s *Store) Del(ctx context.Context, sessionToken string) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.end("del", err) }()
	return s.del(ctx, sessionToken)
}

func (s *Store) del(ctx context.Context, sessionToken string) error {
	key := tokenKey(identity.TokenSession, sessionToken)
	data, err := s.primary.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	var user identity.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		// The record is unreadable, so the sibling keys cannot be
		// resolved. Drop what can be addressed.
		s.primary.Del(ctx, key)
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	pipe := s.primary.TxPipeline()
	for _, t := range identity.TokenTypes {
		pipe.Del(ctx, tokenKey(t, user.Token(t)))
	}
	pipe.SRem(ctx, sessionInfoKey(user.FiscalCode), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// ListSessions returns the active sessions of a fiscal code. Index members
// whose session keys already expired are pruned as they are encountered.
func (s *Store) ListSessions(ctx context.Context, fiscalCode string) (users []identity.User, err error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer func() { s.end("list", err) }()

	members, err := s.replica.SMembers(ctx, sessionInfoKey(fiscalCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	users = make([]identity.User, 0, len(members))
	for _, member := range members {
		data, err := s.replica.Get(ctx, member).Result()
		if err == redis.Nil {
			// Dangling member: the session expired but the index
			// entry survived.
			if err := s.primary.SRem(ctx, sessionInfoKey(fiscalCode), member).Err(); err != nil {
				s.logger.WithError(err).WithField("member", member).
					Warn("Failed to prune dangling session index member")
			}
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}

		var u identity.User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			s.logger.WithField("member", member).Warn("Skipping corrupt session record in listing")
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// DelAllSessions evicts every session of a fiscal code.
func (s *Store) DelAllSessions(ctx context.Context, fiscalCode string) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.end("del_all", err) }()
	return s.evictSessions(ctx, fiscalCode)
}

func (s *Store) evictSessions(ctx context.Context, fiscalCode string) error {
	members, err := s.primary.SMembers(ctx, sessionInfoKey(fiscalCode)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	for _, member := range members {
		token := strings.TrimPrefix(member, prefixSession)
		if err := s.del(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies both redis connections.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.primary.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if s.replica != s.primary {
		if err := s.replica.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return nil
}

// Close rejects new operations, drains in-flight ones, then closes the redis
// clients. The context bounds how long the drain may take.
func (s *Store) Close(ctx context.Context) error {
	s.closing.Store(true)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Session store drain timed out, closing with operations in flight")
	}

	err := s.primary.Close()
	if s.replica != s.primary {
		if rerr := s.replica.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
