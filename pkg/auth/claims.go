package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// ScopeAdmin is the scope operator tokens carry for the admin surface.
const ScopeAdmin = "gallery:admin"

// OperatorClaims represents the typed JWT issued to gallery operators.
type OperatorClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
