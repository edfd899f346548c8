// Package billing maps Stripe subscription state onto organization plans and
// describes what each plan allows.
package billing

import "tenantkit/internal/types"

// PlanLimits are the entitlements of a plan. Zero means unlimited.
type PlanLimits struct {
	MaxMembers         int  `json:"maxMembers"`
	AuditRetentionDays int  `json:"auditRetentionDays"`
	AuditLog           bool `json:"auditLog"`
}

// PlanRegistry resolves a tier to its limits.
type PlanRegistry interface {
	// GetLimits returns the Free limits for unknown tiers.
	GetLimits(tier types.PlanTier) PlanLimits
}

type staticPlanRegistry struct {
	limits map[types.PlanTier]PlanLimits
}

// planDefaults:
//
//	| Plan       | Members   | Audit retention |
//	|------------|-----------|-----------------|
//	| Free       | 5         | none            |
//	| Starter    | 25        | 30 days         |
//	| Pro        | 100       | 365 days        |
//	| Enterprise | unlimited | unlimited       |
var planDefaults = map[types.PlanTier]PlanLimits{
	types.PlanFree:       {MaxMembers: 5},
	types.PlanStarter:    {MaxMembers: 25, AuditRetentionDays: 30, AuditLog: true},
	types.PlanPro:        {MaxMembers: 100, AuditRetentionDays: 365, AuditLog: true},
	types.PlanEnterprise: {AuditLog: true},
}

var freeLimits = planDefaults[types.PlanFree]

// NewStaticPlanRegistry returns the built-in plan table.
func NewStaticPlanRegistry() PlanRegistry {
	m := make(map[types.PlanTier]PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return freeLimits
}
