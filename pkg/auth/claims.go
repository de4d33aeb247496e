package auth

import "github.com/golang-jwt/jwt/v5"

type RoleSet struct {
	Roles []string `json:"roles"`
}

// Claims is the subset of a Keycloak access token the service reads.
type Claims struct {
	PreferredUsername string             `json:"preferred_username"`
	RealmAccess       RoleSet            `json:"realm_access"`
	ResourceAccess    map[string]RoleSet `json:"resource_access"`
	jwt.RegisteredClaims
}

// Roles merges realm roles with the roles granted on clientID.
func (c *Claims) Roles(clientID string) []string {
	roles := append([]string(nil), c.RealmAccess.Roles...)
	if clientID != "" {
		if rs, ok := c.ResourceAccess[clientID]; ok {
			roles = append(roles, rs.Roles...)
		}
	}
	return roles
}
