package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role claim issued by the identity provider.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims is the access token payload. Token issuance and policy live outside
// this service; only the caller identity is consumed here.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
