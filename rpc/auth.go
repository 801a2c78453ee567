package rpc

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// AdminScope is the JWT scope granting access to administrative methods.
const AdminScope = "rfq:admin"

const jwtLeeway = 2 * time.Minute

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" && len(s.jwtSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1 {
		return nil
	}
	if len(s.jwtSecret) > 0 && strings.Count(token, ".") == 2 {
		if err := s.verifyJWT(token); err != nil {
			return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
		}
		return nil
	}
	return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
}

func (s *Server) verifyJWT(tokenString string) error {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(jwtLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwtIssuer))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token invalid")
	}
	if !hasScope(claims["scope"], AdminScope) {
		return errors.New("insufficient scope")
	}
	return nil
}

// hasScope accepts a space separated string or a list of strings.
func hasScope(raw interface{}, want string) bool {
	switch v := raw.(type) {
	case string:
		for _, scope := range strings.Fields(v) {
			if scope == want {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if scope, ok := item.(string); ok && scope == want {
				return true
			}
		}
	}
	return false
}
