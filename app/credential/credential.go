// Package credential issues and verifies the bearer tokens of service
// accounts.
//
// A token reads <prefix>_<lookup>_<secret>. The lookup part is stored in
// clear as KeyPrefix and selects the account; only the bcrypt hash of the
// whole token is kept, so a token cannot be recovered once handed out.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoflow/app/config"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"golang.org/x/crypto/bcrypt"
)

const (
	lookupBytes = 6
	secretBytes = 32

	// bcrypt only reads the first 72 bytes of its input.
	maxTokenLength = 72
)

// RotationWarning accompanies every newly disclosed token.
const RotationWarning = "This credential is shown only once and cannot be recovered. " +
	"Store it now; the previous credential no longer works."

type Authenticator struct {
	prefix        string
	cost          int
	defaultLimit  int
	defaultWindow int
	now           func() time.Time
}

func New(cfg config.AuthConfig) (*Authenticator, error) {
	prefix := strings.TrimSpace(cfg.TokenPrefix)
	if prefix == "" || strings.Contains(prefix, "_") {
		return nil, fmt.Errorf("invalid token prefix %q", cfg.TokenPrefix)
	}
	if len(prefix)+2+lookupBytes*2+base64.RawURLEncoding.EncodedLen(secretBytes) > maxTokenLength {
		return nil, fmt.Errorf("token prefix %q is too long", prefix)
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	window := cfg.RateWindowSeconds
	if window <= 0 {
		window = 3600
	}
	return &Authenticator{
		prefix:        prefix,
		cost:          cost,
		defaultLimit:  cfg.DefaultRateLimit,
		defaultWindow: window,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// generate returns a fresh token and its lookup handle.
func (a *Authenticator) generate() (token, keyPrefix string, err error) {
	lookup := make([]byte, lookupBytes)
	if _, err := rand.Read(lookup); err != nil {
		return "", "", err
	}
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	keyPrefix = a.prefix + "_" + hex.EncodeToString(lookup)
	return keyPrefix + "_" + base64.RawURLEncoding.EncodeToString(secret), keyPrefix, nil
}

// split extracts the lookup handle of raw, or "" when raw is not shaped like
// one of our tokens.
func (a *Authenticator) split(raw string) string {
	head := a.prefix + "_"
	if !strings.HasPrefix(raw, head) || len(raw) > maxTokenLength {
		return ""
	}
	rest := raw[len(head):]
	if len(rest) < lookupBytes*2+2 || rest[lookupBytes*2] != '_' {
		return ""
	}
	if _, err := hex.DecodeString(rest[:lookupBytes*2]); err != nil {
		return ""
	}
	return head + rest[:lookupBytes*2]
}

func (a *Authenticator) hash(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), a.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

type IssueInput struct {
	Name        string   `json:"name"`
	CreatedBy   string   `json:"createdBy"`
	TenantID    *string  `json:"tenantId"`
	Permissions []string `json:"permissions"`
	// RateLimit is the number of calls per window; nil takes the configured
	// default and a value <= 0 disables limiting.
	RateLimit         *int `json:"rateLimit"`
	RateWindowSeconds int  `json:"rateWindowSeconds"`
}

// Credential is a service account with its plaintext token. Token is only
// ever populated on issue and rotation.
type Credential struct {
	Account *objects.ServiceAccount `json:"account"`
	Token   string                  `json:"token"`
	Warning string                  `json:"warning"`
}

func (a *Authenticator) Issue(ctx *contextx.Context, in IssueInput) (*Credential, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if len(in.Permissions) == 0 {
		fields["permissions"] = "at least one permission is required"
	}
	if in.TenantID != nil && *in.TenantID == "" {
		fields["tenantId"] = "must not be empty when set"
	}
	if len(fields) > 0 {
		return nil, objects.NewValidationError("invalid service account", fields)
	}
	if in.TenantID != nil {
		if _, err := objects.QueryUserByID(ctx, *in.TenantID); err != nil {
			return nil, err
		}
	}

	token, keyPrefix, err := a.generate()
	if err != nil {
		return nil, fmt.Errorf("generate credential: %w", err)
	}
	h, err := a.hash(token)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	sa := objects.NewServiceAccount()
	sa.Name = strings.TrimSpace(in.Name)
	sa.CreatedBy = in.CreatedBy
	sa.TenantID = in.TenantID
	sa.KeyPrefix = keyPrefix
	sa.KeyHash = h
	sa.SetPermissions(in.Permissions)
	sa.RateLimit = a.defaultLimit
	if in.RateLimit != nil {
		sa.RateLimit = *in.RateLimit
	}
	sa.RateWindowSeconds = a.defaultWindow
	if in.RateWindowSeconds > 0 {
		sa.RateWindowSeconds = in.RateWindowSeconds
	}
	if err := sa.Save(ctx); err != nil {
		return nil, err
	}
	log.Infof(ctx, "service account %s (%s) issued, key %s", sa.ID, sa.Name, sa.KeyPrefix)
	return &Credential{Account: sa, Token: token, Warning: RotationWarning}, nil
}

// Rotate replaces the account's token. The previous token stops working as
// soon as the new hash is stored, and the usage counters start over.
func (a *Authenticator) Rotate(ctx *contextx.Context, id string) (*Credential, error) {
	sa, err := objects.QueryServiceAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	token, keyPrefix, err := a.generate()
	if err != nil {
		return nil, fmt.Errorf("generate credential: %w", err)
	}
	h, err := a.hash(token)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	now := a.now()
	sa.KeyPrefix = keyPrefix
	sa.KeyHash = h
	sa.UsageCount = 0
	sa.WindowCount = 0
	sa.WindowResetAt = nil
	sa.LastUsedAt = nil
	sa.RotatedAt = &now
	err = sa.Update(ctx, "KeyPrefix", "KeyHash", "UsageCount", "WindowCount", "WindowResetAt", "LastUsedAt", "RotatedAt")
	if err != nil {
		return nil, err
	}
	log.Warnf(ctx, "service account %s credential rotated, new key %s disclosed once", sa.ID, sa.KeyPrefix)
	return &Credential{Account: sa, Token: token, Warning: RotationWarning}, nil
}

func (a *Authenticator) SetActive(ctx *contextx.Context, id string, active bool) (*objects.ServiceAccount, error) {
	sa, err := objects.QueryServiceAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sa.Active = active
	if err := sa.Update(ctx, "Active"); err != nil {
		return nil, err
	}
	log.Infof(ctx, "service account %s active=%t", sa.ID, active)
	return sa, nil
}

// Authenticate verifies raw and charges one call to the account. Every
// successful call moves the usage counters.
func (a *Authenticator) Authenticate(ctx *contextx.Context, raw string) (*objects.Principal, error) {
	raw = strings.TrimSpace(raw)
	keyPrefix := a.split(raw)
	if keyPrefix == "" {
		return nil, &objects.UnauthorizedError{Reason: "malformed credential"}
	}
	sa, err := objects.QueryServiceAccountByPrefix(ctx, keyPrefix)
	if err != nil {
		if objects.IsNotFoundError(err) {
			return nil, &objects.UnauthorizedError{Reason: "unknown credential"}
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sa.KeyHash), []byte(raw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, &objects.UnauthorizedError{Reason: "unknown credential"}
		}
		return nil, err
	}
	if !sa.Active {
		return nil, &objects.ForbiddenError{Reason: "service account is inactive"}
	}

	now := a.now()
	window := sa.RateWindowSeconds
	if window <= 0 {
		window = a.defaultWindow
	}
	ok, err := objects.ConsumeServiceAccountCall(ctx, sa.ID, now, now.Add(time.Duration(window)*time.Second))
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := objects.QueryServiceAccountByID(ctx, sa.ID)
		if err != nil {
			return nil, err
		}
		if !current.Active {
			return nil, &objects.ForbiddenError{Reason: "service account is inactive"}
		}
		resetAt := now
		if current.WindowResetAt != nil {
			resetAt = *current.WindowResetAt
		}
		log.Warnf(ctx, "service account %s exceeded %d calls per window", sa.ID, current.RateLimit)
		return nil, &objects.RateLimitedError{Limit: current.RateLimit, ResetAt: resetAt}
	}

	return &objects.Principal{
		ServiceAccountID:   sa.ID,
		ServiceAccountName: sa.Name,
		BoundTenantID:      sa.BoundTenantID(),
		Permissions:        sa.GetPermissions(),
	}, nil
}
