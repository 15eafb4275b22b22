package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/grants"
)

const grantColumns = `id, title, agency, description, objectives, who_can_apply, funding_info,
	amount_min, amount_max, deadline, status, applicable_to, tags, url, created_at`

// eligibleClause is the hard gate in SQL. $1 status, $2 applicant type, $3 now,
// $4 whether open-ended grants are admitted.
const eligibleClause = `lower(status) = lower($1)
	AND EXISTS (SELECT 1 FROM unnest(applicable_to) AS a WHERE lower(trim(a)) = lower($2))
	AND (deadline >= $3 OR ($4 AND deadline IS NULL))`

const (
	selectEligibleGrants = `SELECT ` + grantColumns + ` FROM grants WHERE ` + eligibleClause
	countGrantsAfter     = `SELECT count(*) FROM grants WHERE ` + eligibleClause + ` AND created_at > $5`
	selectGrantsByID     = `SELECT ` + grantColumns + ` FROM grants WHERE id = ANY($1)`
)

// Grants is the Postgres grant repository.
type Grants struct {
	q db.Querier
}

func NewGrants(q db.Querier) *Grants {
	return &Grants{q: q}
}

func (s *Grants) FindEligibleGrants(ctx context.Context, now time.Time, policy grants.EligibilityPolicy) (*grants.Grants, error) {
	policy = normalizePolicy(policy)
	rows, err := s.q.Query(ctx, selectEligibleGrants, policy.OpenStatus, policy.ApplicableTo, now, policy.IncludeOpenEnded)
	if err != nil {
		return nil, fmt.Errorf("query eligible grants: %w", err)
	}
	return collectGrants(rows)
}

func (s *Grants) CountGrantsCreatedAfter(ctx context.Context, after, now time.Time, policy grants.EligibilityPolicy) (int, error) {
	policy = normalizePolicy(policy)
	var count int
	err := s.q.QueryRow(ctx, countGrantsAfter, policy.OpenStatus, policy.ApplicableTo, now, policy.IncludeOpenEnded, after).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count new grants: %w", err)
	}
	return count, nil
}

func (s *Grants) GetGrants(ctx context.Context, ids []string) (*grants.Grants, error) {
	if len(ids) == 0 {
		return &grants.Grants{}, nil
	}
	rows, err := s.q.Query(ctx, selectGrantsByID, ids)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	return collectGrants(rows)
}

func normalizePolicy(p grants.EligibilityPolicy) grants.EligibilityPolicy {
	d := grants.DefaultEligibilityPolicy()
	if p.OpenStatus == "" {
		p.OpenStatus = d.OpenStatus
	}
	if p.ApplicableTo == "" {
		p.ApplicableTo = d.ApplicableTo
	}
	return p
}

func collectGrants(rows pgx.Rows) (*grants.Grants, error) {
	defer rows.Close()

	out := &grants.Grants{}
	for rows.Next() {
		var (
			g                                    grants.Grant
			objectives, eligibility, fundingInfo *string
			url                                  *string
		)
		err := rows.Scan(
			&g.ID, &g.Title, &g.Agency, &g.Description, &objectives, &eligibility, &fundingInfo,
			&g.AmountMin, &g.AmountMax, &g.Deadline, &g.Status, &g.ApplicableTo, &g.Tags, &url, &g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Objectives = deref(objectives)
		g.Eligibility = deref(eligibility)
		g.FundingInfo = deref(fundingInfo)
		g.URL = deref(url)
		out.Items = append(out.Items, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
