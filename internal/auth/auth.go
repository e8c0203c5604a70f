// Package auth resolves request credentials to an optional principal
// identity before a request reaches the retrieval core. The provider set
// is closed: none, Active Directory bind, or Google ID token.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"google.golang.org/api/idtoken"

	"github.com/docuchat/docuchat/internal/config"
)

var (
	// ErrUnauthorized means the credential was present but invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMisconfigured means the selected provider is missing required
	// settings; requests fail closed.
	ErrMisconfigured = errors.New("authentication provider misconfigured")
)

// Provider is the closed set of authentication backends.
type Provider int

const (
	ProviderNone Provider = iota
	ProviderActiveDirectory
	ProviderGoogle
)

func ParseProvider(s string) (Provider, error) {
	switch s {
	case "", "none":
		return ProviderNone, nil
	case "active_directory":
		return ProviderActiveDirectory, nil
	case "google":
		return ProviderGoogle, nil
	default:
		return ProviderNone, fmt.Errorf("unknown auth provider %q", s)
	}
}

// Authenticator resolves one credential string to a principal identity.
// An empty principal with a nil error means authorized but anonymous
// (the "none" provider). The credential is the provider's native token:
// base64 "user:password" for Active Directory, a raw ID token for Google.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

// New builds the authenticator for the configured provider.
func New(cfg *config.AuthConfig) (Authenticator, error) {
	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	switch provider {
	case ProviderNone:
		return noneAuthenticator{}, nil
	case ProviderActiveDirectory:
		return &adAuthenticator{
			serverURI:      cfg.ADServerURI,
			userDNTemplate: cfg.ADUserDNTemplate,
		}, nil
	case ProviderGoogle:
		return &googleAuthenticator{clientID: cfg.GoogleClientID}, nil
	default:
		return nil, fmt.Errorf("unhandled auth provider %v", provider)
	}
}

// CredentialFromHeader extracts the bare credential from an
// Authorization header value, accepting Basic and Bearer schemes.
func CredentialFromHeader(header string) string {
	for _, scheme := range []string{"Basic ", "Bearer "} {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return strings.TrimSpace(header)
}

type noneAuthenticator struct{}

func (noneAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	return "", nil
}

type adAuthenticator struct {
	serverURI      string
	userDNTemplate string
}

func (a *adAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	if a.serverURI == "" || a.userDNTemplate == "" {
		return "", fmt.Errorf("%w: active directory server or dn template missing", ErrMisconfigured)
	}

	username, password, err := decodeBasic(credential)
	if err != nil {
		return "", err
	}

	conn, err := ldap.DialURL(a.serverURI)
	if err != nil {
		return "", fmt.Errorf("dial directory: %w", err)
	}
	defer conn.Close()

	userDN := strings.ReplaceAll(a.userDNTemplate, "{username}", username)
	if err := conn.Bind(userDN, password); err != nil {
		return "", fmt.Errorf("%w: invalid active directory credentials", ErrUnauthorized)
	}
	return username, nil
}

// decodeBasic unpacks a base64 "user:password" payload.
func decodeBasic(credential string) (username, password string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid credential payload", ErrUnauthorized)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || password == "" {
		return "", "", fmt.Errorf("%w: invalid credential payload", ErrUnauthorized)
	}
	return username, password, nil
}

type googleAuthenticator struct {
	clientID string
}

func (g *googleAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	if g.clientID == "" {
		return "", fmt.Errorf("%w: google client id missing", ErrMisconfigured)
	}
	if credential == "" {
		return "", fmt.Errorf("%w: missing google token", ErrUnauthorized)
	}

	payload, err := idtoken.Validate(ctx, credential, g.clientID)
	if err != nil {
		return "", fmt.Errorf("%w: invalid google token", ErrUnauthorized)
	}
	if email, ok := payload.Claims["email"].(string); ok && email != "" {
		return email, nil
	}
	return payload.Subject, nil
}
