package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/session"
	"crypto/subtle"
	"fmt"
)

const apiKeyUser = "api-key"

// Login exchanges the admin password for a signed session token.
func (c *Core) Login(username, password string) (*entity.Session, error) {
	if c.admin.password == "" || c.admin.secret == "" {
		return nil, fmt.Errorf("%w: admin login is disabled", ErrUnauthorized)
	}
	userOk := subtle.ConstantTimeCompare([]byte(username), []byte(c.admin.username)) == 1
	passOk := subtle.ConstantTimeCompare([]byte(password), []byte(c.admin.password)) == 1
	if !userOk || !passOk {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	token, expires, err := session.Issue(username, c.admin.secret, c.admin.ttl)
	if err != nil {
		return nil, err
	}
	return &entity.Session{
		Username:  username,
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

// AuthenticateByToken accepts a session token or the static API key.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if c.authKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.authKey)) == 1 {
		return &entity.UserAuth{Username: apiKeyUser, Token: token}, nil
	}
	username, err := c.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken verifies a session token and returns its username.
func (c *Core) ValidateToken(token string) (string, error) {
	if c.admin.secret == "" {
		return "", fmt.Errorf("%w: sessions are disabled", ErrUnauthorized)
	}
	username, err := session.Verify(token, c.admin.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return username, nil
}
