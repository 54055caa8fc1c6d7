package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role allowed on the operator endpoints
const RoleAdmin = "admin"

// TokenClaims are the claims carried by an operator bearer token.
// Subject names the operator and is recorded as the unlock actor.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
