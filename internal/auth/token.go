package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
)

// EncodeToken serializes a token to the compact base64(JSON) form printed
// by 'get token' and consumed via MENDELEY_OAUTH2_TOKEN_BASE64.
func EncodeToken(tok *oauth2.Token) (string, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("encoding token: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeToken is the inverse of EncodeToken. Expiry is not checked here:
// a stale token surfaces as an authentication failure on first API use,
// after the refresh attempt.
func DecodeToken(encoded string) (*oauth2.Token, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no access or refresh token present", apperrors.ErrInvalidToken)
	}

	return &tok, nil
}
