// Package acl implements the access-control engine: it maps a caller email
// to a staff record, then to an allow/deny decision per tool, with a
// bounded-TTL cache in front of the staff lookup.
package acl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agentsql/bridge/pkg/models"
)

// StaffLookup resolves a staff record by lowercase email. Implementations
// back onto the relational pool or document store; ErrStaffNotFound
// distinguishes "no such staff" from a backend failure.
type StaffLookup interface {
	LookupStaff(ctx context.Context, email string) (*models.StaffRecord, error)
}

// Decision is the outcome of checkToolAccess.
type Decision struct {
	Allowed bool
	Reason  string
	ACLs    []string
}

// Engine evaluates tool access per §4.C. It is safe for concurrent use.
type Engine struct {
	config      models.ACLConfig
	lookup      StaffLookup
	cache       *staffCache
	envFallback string
}

// New constructs an Engine. cfg.DefaultPolicy must already be lowercase
// ("open" or "deny"); loading normalizes nothing, per the spec's mandate
// that a non-lowercase value is a config error caught at load time.
func New(cfg models.ACLConfig, lookup StaffLookup, ttlSeconds int, negativeTTLSeconds int) (*Engine, error) {
	if cfg.DefaultPolicy != models.PolicyOpen && cfg.DefaultPolicy != models.PolicyDeny {
		return nil, fmt.Errorf("acl: default_policy must be lowercase %q or %q, got %q", models.PolicyOpen, models.PolicyDeny, cfg.DefaultPolicy)
	}
	return &Engine{
		config:      cfg,
		lookup:      lookup,
		cache:       newStaffCache(ttlSeconds, negativeTTLSeconds),
		envFallback: strings.TrimSpace(os.Getenv("AGENTSQL_FALLBACK_USER_EMAIL")),
	}, nil
}

// ResolveEmail implements the priority chain: explicit meta override, then
// a transport-session-attached email, then the process-wide fallback.
func (e *Engine) ResolveEmail(metaEmail, sessionEmail string) string {
	if email := models.NormalizeEmail(metaEmail); email != "" {
		return email
	}
	if email := models.NormalizeEmail(sessionEmail); email != "" {
		return email
	}
	return models.NormalizeEmail(e.envFallback)
}

// staffResult is a cached positive (or, when negativeTTL > 0, negative)
// staff lookup outcome.
type staffResult struct {
	record *models.StaffRecord
	found  bool
}

// ResolveACLs looks up the ACLs held by email, consulting the cache first.
// found is false when the staff record does not exist; err is non-nil only
// for a genuine backend failure, which is never cached.
func (e *Engine) ResolveACLs(ctx context.Context, email string) (acls []string, active bool, found bool, err error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, false, false, nil
	}

	if cached, ok := e.cache.get(email); ok {
		if !cached.found {
			return nil, false, false, nil
		}
		return cached.record.ACLs, cached.record.Active, true, nil
	}

	record, err := e.lookup.LookupStaff(ctx, email)
	if err != nil {
		return nil, false, false, err
	}
	if record == nil {
		e.cache.putNegative(email)
		return nil, false, false, nil
	}

	e.cache.put(email, record)
	return record.ACLs, record.Active, true, nil
}

// CheckToolAccess implements the §4.C decision algorithm in order.
func (e *Engine) CheckToolAccess(ctx context.Context, toolName, email string) (Decision, error) {
	if e.isPublic(toolName) {
		return Decision{Allowed: true, Reason: "public tool"}, nil
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return Decision{Allowed: false, Reason: "authentication required"}, nil
	}

	acls, active, found, err := e.ResolveACLs(ctx, email)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return Decision{Allowed: false, Reason: "user not found"}, nil
	}
	if !active {
		return Decision{Allowed: false, Reason: "user inactive"}, nil
	}

	if hasAny(acls, e.config.SuperuserACLs) {
		return Decision{Allowed: true, Reason: "superuser", ACLs: acls}, nil
	}

	if required, ok := e.config.ToolACLs[toolName]; ok {
		if hasAny(acls, required) {
			return Decision{Allowed: true, Reason: "acl match", ACLs: acls}, nil
		}
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("requires one of %v, held %v", required, acls),
			ACLs:    acls,
		}, nil
	}

	if e.config.DefaultPolicy == models.PolicyOpen {
		return Decision{Allowed: true, Reason: "default policy open", ACLs: acls}, nil
	}
	return Decision{Allowed: false, Reason: "default policy deny", ACLs: acls}, nil
}

// FilterTools returns only the descriptors email may call, so list_tools
// never advertises a tool the caller cannot invoke.
func (e *Engine) FilterTools(ctx context.Context, tools []models.ToolDescriptor, email string) ([]models.ToolDescriptor, error) {
	visible := make([]models.ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		decision, err := e.CheckToolAccess(ctx, tool.Name, email)
		if err != nil {
			return nil, err
		}
		if decision.Allowed {
			visible = append(visible, tool)
		}
	}
	return visible, nil
}

// InvalidateCache drops every cached staff lookup, forcing the next
// ResolveACLs call to hit the backing store. Required by §5's explicit
// invalidation primitive.
func (e *Engine) InvalidateCache() {
	e.cache.clear()
}

func (e *Engine) isPublic(toolName string) bool {
	for _, name := range e.config.PublicTools {
		if name == toolName {
			return true
		}
	}
	return false
}

func hasAny(held, required []string) bool {
	set := make(map[string]struct{}, len(held))
	for _, acl := range held {
		set[acl] = struct{}{}
	}
	for _, acl := range required {
		if _, ok := set[acl]; ok {
			return true
		}
	}
	return false
}
