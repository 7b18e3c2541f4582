package models

import "github.com/golang-jwt/jwt/v5"

// AuthUser is the identity attached to an authenticated request.
type AuthUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name,omitempty"`
	Role     UserRole `json:"role,omitempty"`
	IsTest   bool     `json:"is_test,omitempty"`
}

// SupabaseClaims mirrors the access token payload issued by Supabase Auth.
type SupabaseClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// FullName reads the display name from user metadata when present.
func (c *SupabaseClaims) FullName() string {
	if c == nil || c.UserMetadata == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if v, ok := c.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
