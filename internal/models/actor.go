package models

// SystemActor is recorded in audit stamps when no caller is known.
const SystemActor = "System"

// Actor identifies the authenticated caller of a management operation.
type Actor struct {
	ID        string
	FullName  string
	Role      UserRole
	IP        string
	UserAgent string
}

// ActorFromClaims builds an Actor from verified token claims.
func ActorFromClaims(claims *JWTClaims, ip, userAgent string) Actor {
	if claims == nil {
		return Actor{IP: ip, UserAgent: userAgent}
	}
	return Actor{
		ID:        claims.UserID,
		FullName:  claims.FullName,
		Role:      claims.Role,
		IP:        ip,
		UserAgent: userAgent,
	}
}

// Stamp is the name written to created_by/updated_by columns.
func (a Actor) Stamp() string {
	if a.FullName != "" {
		return a.FullName
	}
	return SystemActor
}

// IsTopTier reports whether the caller holds the top privilege tier.
func (a Actor) IsTopTier() bool {
	return a.Role.IsTopTier()
}
