package auth

import (
	"context"
	"log/slog"

	"github.com/outreachhq/outreach-backend/internal/config"
	"github.com/outreachhq/outreach-backend/internal/store"
)

// Identity is a verified caller: the token claims plus the roles granted by
// the accounts table.
type Identity struct {
	Claims
	Roles RoleSet `json:"roles"`
}

// AccountFinder is the slice of the store the resolver needs.
type AccountFinder interface {
	FindAccount(ctx context.Context, key store.AccountKey, value string) (store.Account, error)
}

// ResolverConfig is the role policy.
type ResolverConfig struct {
	// KnownRoles is the closed set of role tags. Anything else read from the
	// database is dropped.
	KnownRoles []string
	// DevDefaultRoles are granted when a lookup yields nothing. Never applied
	// in production.
	DevDefaultRoles []string
}

// Resolver turns verified claims into an Identity.
type Resolver struct {
	accounts    AccountFinder
	known       RoleSet
	devDefaults RoleSet
	env         func() config.Environment
	log         *slog.Logger
}

func NewResolver(accounts AccountFinder, cfg ResolverConfig, env func() config.Environment, log *slog.Logger) *Resolver {
	r := &Resolver{
		accounts: accounts,
		known:    NewRoleSet(cfg.KnownRoles...),
		env:      env,
		log:      log,
	}
	r.devDefaults = NewRoleSet(cfg.DevDefaultRoles...).filter(r.known)

	if len(r.devDefaults) > 0 && env() == config.Production {
		log.Warn("development default roles are configured but ignored in production",
			"roles", r.devDefaults.Slice(),
		)
	}
	return r
}

// Resolve looks up the caller's roles. It never fails: a missing account,
// a store error, or an unreadable roles column all yield an empty role set.
func (r *Resolver) Resolve(ctx context.Context, c *Claims) *Identity {
	id := &Identity{Roles: RoleSet{}}
	if c == nil {
		return id
	}
	id.Claims = *c
	id.Roles = r.lookup(ctx, c)

	if len(id.Roles) == 0 && len(r.devDefaults) > 0 && r.envFor(ctx) != config.Production {
		r.log.Warn("granting development default roles",
			"subject", c.Subject,
			"email", c.Email,
			"roles", r.devDefaults.Slice(),
		)
		id.Roles = NewRoleSet(r.devDefaults.Slice()...)
	}
	return id
}

// envFor prefers the environment pinned on the request.
func (r *Resolver) envFor(ctx context.Context) config.Environment {
	if env, ok := config.EnvironmentFrom(ctx); ok {
		return env
	}
	return r.env()
}

func (r *Resolver) lookup(ctx context.Context, c *Claims) RoleSet {
	var key store.AccountKey
	var value string
	switch {
	case c.Subject != "":
		key, value = store.AccountByUserID, c.Subject
	case c.Email != "":
		key, value = store.AccountByEmail, c.Email
	default:
		return RoleSet{}
	}

	acct, err := r.accounts.FindAccount(ctx, key, value)
	if err != nil {
		r.log.Warn("role lookup failed",
			"key", string(key),
			"value", value,
			"error", err,
		)
		return RoleSet{}
	}

	roles, err := parseRoles(acct.Roles)
	if err != nil {
		r.log.Warn("unreadable roles column",
			"account_id", acct.ID,
			"error", err,
		)
		return RoleSet{}
	}
	return NewRoleSet(roles...).filter(r.known)
}
