package model

// All lists every table migrated at start-up.
func All() []any {
	return []any{
		&Recruiter{},
		&Profile{},
		&StudentCV{},
		&StudentSummary{},
		&HRNeed{},
		&OrphanedIdentity{},
	}
}
