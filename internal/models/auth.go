package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID     string     `json:"user_id"`
	Capability Capability `json:"capability"`
	Name       string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the mutation actor.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{Capability: CapabilityOther}
	}
	return Actor{ID: c.UserID, Capability: ParseCapability(string(c.Capability))}
}
