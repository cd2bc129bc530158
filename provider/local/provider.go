package local

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the number of failed sign-ins allowed per cool-down
// window before the account is throttled.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window over which failed attempts accumulate.
var CoolDownPeriod = 24 * time.Hour

// Account is a locally stored credential record.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Email          string         `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string         `bun:"password_hash,notnull" json:"-"`
	EmailVerified  bool           `bun:"is_email_verified" json:"is_email_verified"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"-"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Config holds the embedded backend's options.
type Config struct {
	// SigningKey signs the HS256 access tokens the backend issues.
	SigningKey string

	// TokenTTL is the issued session lifetime. Default one hour.
	TokenTTL time.Duration

	// RequireVerification gates sign-in on email verification, matching
	// the hosted backend's behavior. Use VerifyEmail to flip accounts.
	RequireVerification bool

	// ProvisionProfiles mimics the hosted backend's server-side trigger
	// that creates a profile row at signup from the metadata.
	ProvisionProfiles bool

	// DeterministicIDs derives account ids from the email instead of
	// random UUIDs, keeping fixtures and re-seeded databases stable.
	DeterministicIDs bool

	// ProfileTable overrides the profile table name. Informational only;
	// the bun model fixes the table.
	ProfileTable string
}

// DefaultConfig matches the hosted backend: verification required,
// profiles provisioned by trigger.
func DefaultConfig(signingKey string) Config {
	return Config{
		SigningKey:          signingKey,
		TokenTTL:            time.Hour,
		RequireVerification: true,
		ProvisionProfiles:   true,
	}
}

// Provider is an embedded bun/sqlite implementation of both
// authsync.Provider and authsync.ProfileStore, used for local development
// and tests.
type Provider struct {
	db       *bun.DB
	accounts repository.Repository[*Account]
	cfg      Config
	logger   authsync.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *authsync.Session

	events chan authsync.AuthEvent
}

var (
	_ authsync.Provider     = (*Provider)(nil)
	_ authsync.ProfileStore = (*Provider)(nil)
)

// ProviderOption customizes provider construction.
type ProviderOption func(*Provider)

// WithLogger overrides the default logger.
func WithLogger(logger authsync.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ProviderOption {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// New returns a provider over the given database.
func New(db *bun.DB, cfg Config, opts ...ProviderOption) *Provider {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}

	accounts := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	p := &Provider{
		db:       db,
		accounts: accounts,
		cfg:      cfg,
		logger:   authsync.DefaultLogger(),
		now:      time.Now,
		events:   make(chan authsync.AuthEvent, 16),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// CreateTables creates the accounts and profiles tables if missing.
func (p *Provider) CreateTables(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().Model((*Account)(nil)).IfNotExists().Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create accounts table")
	}
	if _, err := p.db.NewCreateTable().Model((*authsync.Profile)(nil)).IfNotExists().Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profiles table")
	}
	return nil
}

// Events implements authsync.Provider.
func (p *Provider) Events() <-chan authsync.AuthEvent {
	return p.events
}

// GetSession returns the current session. An expired session is reissued,
// mimicking the hosted backend's auto-refresh, and a TOKEN_REFRESHED
// event is emitted.
func (p *Provider) GetSession(ctx context.Context) (*authsync.Session, error) {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()

	if session == nil {
		return nil, nil
	}

	if !session.Expired(p.now()) {
		return session, nil
	}

	refreshed, err := p.issueSession(session.Identity)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.session = refreshed
	p.mu.Unlock()

	p.publish(authsync.AuthEvent{Kind: authsync.AuthEventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// SignUp implements authsync.Provider. The created identity is not signed
// in; when verification is required the caller must verify the email
// before SignInWithPassword succeeds.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authsync.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryValidation)
	}

	if existing, err := p.findByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	if p.cfg.DeterministicIDs {
		if hid, err := hashid.NewUUID(email); err == nil {
			id = hid
		}
	}

	account := &Account{
		ID:            id,
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: !p.cfg.RequireVerification,
		Metadata:      metadata,
	}

	if _, err := p.accounts.CreateTx(ctx, p.db, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	identity := authsync.Identity{ID: account.ID, Email: account.Email}

	if p.cfg.ProvisionProfiles {
		if err := p.provisionProfile(ctx, identity, metadata); err != nil {
			p.logger.Warn("profile provisioning for %s failed: %v", identity.ID, err)
		}
	}

	return &identity, nil
}

// SignInWithPassword implements authsync.Provider.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*authsync.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, authsync.ErrInvalidCredentials
	}

	if account.LoginAttemptAt != nil && p.now().Sub(*account.LoginAttemptAt) > CoolDownPeriod {
		account.LoginAttempts = 0
	}
	if account.LoginAttempts >= MaxLoginAttempts {
		return nil, authsync.ErrRateLimited
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err := p.trackAttempt(ctx, account); err != nil {
			p.logger.Warn("failed to track login attempt for %s: %v", account.ID, err)
		}
		return nil, authsync.ErrInvalidCredentials
	}

	if p.cfg.RequireVerification && !account.EmailVerified {
		return nil, authsync.ErrEmailNotVerified
	}

	if account.LoginAttempts > 0 {
		if err := p.resetAttempts(ctx, account); err != nil {
			p.logger.Warn("failed to reset login attempts for %s: %v", account.ID, err)
		}
	}

	session, err := p.issueSession(authsync.Identity{ID: account.ID, Email: account.Email})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	p.publish(authsync.AuthEvent{Kind: authsync.AuthEventSignedIn, Session: session})
	return session, nil
}

// SignOut implements authsync.Provider.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()

	p.publish(authsync.AuthEvent{Kind: authsync.AuthEventSignedOut})
	return nil
}

// VerifyEmail marks an account's email as confirmed, standing in for the
// hosted backend's confirmation link.
func (p *Provider) VerifyEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	res, err := p.db.NewUpdate().
		Model((*Account)(nil)).
		Set("is_email_verified = ?", true).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify email")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return goerrors.New("no account for email", goerrors.CategoryNotFound)
	}
	return nil
}

func (p *Provider) issueSession(identity authsync.Identity) (*authsync.Session, error) {
	now := p.now()
	expires := now.Add(p.cfg.TokenTTL)

	claims := jwt.MapClaims{
		"sub":   identity.ID.String(),
		"email": identity.Email,
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
		"iss":   "go-authsync/local",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(p.cfg.SigningKey))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return &authsync.Session{
		AccessToken:  token,
		TokenType:    "bearer",
		RefreshToken: uuid.NewString(),
		ExpiresAt:    &expires,
		Identity:     identity,
	}, nil
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*Account, error) {
	account := new(Account)
	err := p.db.NewSelect().
		Model(account).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}
	return account, nil
}

func (p *Provider) trackAttempt(ctx context.Context, account *Account) error {
	now := p.now()
	account.LoginAttempts++
	account.LoginAttemptAt = &now

	_, err := p.db.NewUpdate().
		Model(account).
		Column("login_attempts", "login_attempt_at").
		WherePK().
		Exec(ctx)
	return err
}

func (p *Provider) resetAttempts(ctx context.Context, account *Account) error {
	account.LoginAttempts = 0
	account.LoginAttemptAt = nil

	_, err := p.db.NewUpdate().
		Model(account).
		Column("login_attempts", "login_attempt_at").
		WherePK().
		Exec(ctx)
	return err
}

// publish drops events when the single consumer lags far behind; the
// orchestrator re-resolves state from GetSession anyway.
func (p *Provider) publish(event authsync.AuthEvent) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("auth event channel full, dropping %s", event.Kind)
	}
}
