// Package authz decides whether a user may see or change resources
// belonging to an organization or team. All access checks in the API go
// through the single Evaluator so the rules live in one place.
package authz

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

// TenancyChecker is the subset of the tenancy service the evaluator needs.
type TenancyChecker interface {
	IsMemberOfTeam(ctx context.Context, teamID, email string) (bool, error)
	IsCreator(ctx context.Context, orgID, userID string) (bool, error)
	TeamBelongsToOrg(ctx context.Context, orgID, teamID string) (bool, error)
}

// Access is the outcome of an authorization evaluation.
type Access struct {
	IsTeamMember bool `json:"is_team_member"`
	IsOrgCreator bool `json:"is_org_creator"`
}

// Granted reports whether either relation holds.
func (a Access) Granted() bool {
	return a.IsTeamMember || a.IsOrgCreator
}

type cacheKey struct {
	userID string
	email  string
	orgID  string
	teamID string
}

// Evaluator answers access questions, caching positive and negative
// results for a short TTL. The cache keeps a hot path (every protected
// request) off the database; the TTL bounds how long a revoked membership
// keeps working.
type Evaluator struct {
	tenancy TenancyChecker
	cache   *expirable.LRU[cacheKey, Access]
}

const cacheSize = 4096

// NewEvaluator creates an evaluator. ttl <= 0 disables caching.
func NewEvaluator(tenancy TenancyChecker, ttl time.Duration) *Evaluator {
	e := &Evaluator{tenancy: tenancy}
	if ttl > 0 {
		e.cache = expirable.NewLRU[cacheKey, Access](cacheSize, nil, ttl)
	}
	return e
}

// Evaluate resolves the caller's relations to the organization and team.
// The lookups are independent and run in parallel. teamID may be empty
// for organization-level routes. When a team is named, it must belong to
// the organization in the same request: a creator's rights stop at their
// own organization's teams, so a mismatched org/team pair grants nothing
// no matter who asks.
func (e *Evaluator) Evaluate(ctx context.Context, userID, email, orgID, teamID string) (Access, error) {
	key := cacheKey{userID: userID, email: email, orgID: orgID, teamID: teamID}
	if e.cache != nil {
		if access, ok := e.cache.Get(key); ok {
			return access, nil
		}
	}

	var access Access
	var teamInOrg bool
	g, gctx := errgroup.WithContext(ctx)

	if teamID != "" {
		g.Go(func() error {
			ok, err := e.tenancy.TeamBelongsToOrg(gctx, orgID, teamID)
			if err != nil {
				return err
			}
			teamInOrg = ok
			return nil
		})
		g.Go(func() error {
			ok, err := e.tenancy.IsMemberOfTeam(gctx, teamID, email)
			if err != nil {
				return err
			}
			access.IsTeamMember = ok
			return nil
		})
	}

	g.Go(func() error {
		ok, err := e.tenancy.IsCreator(gctx, orgID, userID)
		if err != nil {
			return err
		}
		access.IsOrgCreator = ok
		return nil
	})

	if err := g.Wait(); err != nil {
		return Access{}, err
	}

	if teamID != "" && !teamInOrg {
		access = Access{}
	}

	if e.cache != nil {
		e.cache.Add(key, access)
	}
	return access, nil
}

// Invalidate drops all cached decisions. Called after membership or
// organization mutations so revocations take effect immediately.
func (e *Evaluator) Invalidate() {
	if e.cache != nil {
		e.cache.Purge()
	}
}
