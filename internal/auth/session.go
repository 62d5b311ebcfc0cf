// Package auth implements the credential lifecycle: the connection document
// persisted between CLI invocations, the identity-provider flows that mint
// tokens, and the orchestrator that decides when a cached token is usable,
// when to refresh silently, and when the user has to sign in again.
package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CloudType selects the national-cloud endpoint set a connection talks to.
type CloudType int

// Cloud identifiers, serialized as integers in the connection document.
const (
	CloudPublic CloudType = iota
	CloudUSGov
	CloudUSGovHigh
	CloudUSGovDoD
	CloudChina
)

func (c CloudType) String() string {
	switch c {
	case CloudPublic:
		return "Public"
	case CloudUSGov:
		return "USGov"
	case CloudUSGovHigh:
		return "USGovHigh"
	case CloudUSGovDoD:
		return "USGovDoD"
	case CloudChina:
		return "China"
	default:
		return fmt.Sprintf("CloudType(%d)", int(c))
	}
}

// ParseCloudType maps a user-supplied cloud name to its CloudType.
func ParseCloudType(s string) (CloudType, error) {
	switch strings.ToLower(s) {
	case "", "public":
		return CloudPublic, nil
	case "usgov":
		return CloudUSGov, nil
	case "usgovhigh":
		return CloudUSGovHigh, nil
	case "usgovdod":
		return CloudUSGovDoD, nil
	case "china":
		return CloudChina, nil
	default:
		return CloudPublic, fmt.Errorf("auth: unknown cloud %q (public, usgov, usgovhigh, usgovdod, china)", s)
	}
}

// AuthType selects which provider flow a connection uses to mint tokens.
type AuthType int

// Credential types, serialized as integers in the connection document.
const (
	AuthDeviceCode AuthType = iota
	AuthPassword
	AuthCertificate
	AuthIdentity
	AuthBrowser
	AuthSecret
)

func (a AuthType) String() string {
	switch a {
	case AuthDeviceCode:
		return "DeviceCode"
	case AuthPassword:
		return "Password"
	case AuthCertificate:
		return "Certificate"
	case AuthIdentity:
		return "Identity"
	case AuthBrowser:
		return "Browser"
	case AuthSecret:
		return "Secret"
	default:
		return fmt.Sprintf("AuthType(%d)", int(a))
	}
}

// ParseAuthType maps a user-supplied auth type name to its AuthType.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(s) {
	case "", "devicecode":
		return AuthDeviceCode, nil
	case "password":
		return AuthPassword, nil
	case "certificate":
		return AuthCertificate, nil
	case "identity":
		return AuthIdentity, nil
	case "browser":
		return AuthBrowser, nil
	case "secret":
		return AuthSecret, nil
	default:
		return AuthDeviceCode, fmt.Errorf("auth: unknown auth type %q (devicecode, password, certificate, identity, browser, secret)", s)
	}
}

// CertificateType describes the encoding of certificate credential material.
// Only meaningful when the auth type is Certificate.
type CertificateType int

// Certificate encodings, serialized as integers in the connection document.
const (
	CertificateUnknown CertificateType = iota
	CertificateBase64
	CertificateBinary
)

func (c CertificateType) String() string {
	switch c {
	case CertificateBase64:
		return "Base64"
	case CertificateBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// expirySkew is subtracted from a token's lifetime when deciding usability.
// The provider can reject a token slightly before its stated expiry, and
// a request issued at the boundary would fail mid-flight.
const expirySkew = 30 * time.Second

// AccessToken is one cached token scoped to a single resource.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresOn   string `json:"expiresOn"`
}

// Session is the in-memory state of the active connection. It is created
// empty (connected=false) on first run, populated by a successful provider
// flow, and persisted through the token store after every state transition.
// There are no package-level instances: one Session belongs to one
// Orchestrator, constructed explicitly at startup.
type Session struct {
	AppID           string                 `json:"appId,omitempty"`
	Tenant          string                 `json:"tenant,omitempty"`
	CloudType       CloudType              `json:"cloudType"`
	AuthType        AuthType               `json:"authType"`
	CertificateType CertificateType        `json:"certificateType,omitempty"`
	AccessTokens    map[string]AccessToken `json:"accessTokens"`
	RefreshToken    string                 `json:"refreshToken,omitempty"`
	Connected       bool                   `json:"connected"`
	SpoURL          string                 `json:"spoUrl,omitempty"`
}

// NewSession returns an empty, logged-out session.
func NewSession() *Session {
	return &Session{AccessTokens: map[string]AccessToken{}}
}

// Key returns the discriminator under which this connection is stored in
// the shared token file.
func (s *Session) Key() string {
	tenant := s.Tenant
	if tenant == "" {
		tenant = "common"
	}

	return strings.ToLower(s.CloudType.String()) + "|" + tenant + "|" + s.AppID
}

// Token returns the cached token for resource. A disconnected session never
// yields a token, even if stale entries are still present in the map.
func (s *Session) Token(resource string) (AccessToken, bool) {
	if !s.Connected {
		return AccessToken{}, false
	}

	tok, ok := s.AccessTokens[resource]

	return tok, ok
}

// Expired reports whether the cached token for resource is unusable at the
// given wall-clock time. The comparison uses the stored serialized timestamp,
// not a process-local cached value. Missing and unparseable entries count as
// expired.
func (s *Session) Expired(resource string, now time.Time) bool {
	tok, ok := s.Token(resource)
	if !ok || tok.AccessToken == "" {
		return true
	}

	expiresOn, err := time.Parse(time.RFC3339, tok.ExpiresOn)
	if err != nil {
		return true
	}

	return !now.Add(expirySkew).Before(expiresOn)
}

// SetToken replaces the entry for resource in one assignment: a refresh
// either installs the complete new entry or, on failure, never reaches this
// call and the previous entry stays untouched.
func (s *Session) SetToken(resource, accessToken string, expiresOn time.Time) {
	if s.AccessTokens == nil {
		s.AccessTokens = map[string]AccessToken{}
	}

	s.AccessTokens[resource] = AccessToken{
		AccessToken: accessToken,
		ExpiresOn:   expiresOn.UTC().Format(time.RFC3339),
	}
}

// Logout clears the session back to the empty, logged-out state.
func (s *Session) Logout() {
	*s = Session{AccessTokens: map[string]AccessToken{}}
}

// Clone returns a deep copy for read-only inspection (status display).
func (s *Session) Clone() Session {
	out := *s
	out.AccessTokens = make(map[string]AccessToken, len(s.AccessTokens))

	for k, v := range s.AccessTokens {
		out.AccessTokens[k] = v
	}

	return out
}

// Marshal serializes the session into the connection document format.
func (s *Session) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("auth: encoding session: %w", err)
	}

	return string(data), nil
}

// ParseSession deserializes a connection document.
func ParseSession(serialized string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(serialized), &s); err != nil {
		return nil, fmt.Errorf("auth: decoding session: %w", err)
	}

	if s.AccessTokens == nil {
		s.AccessTokens = map[string]AccessToken{}
	}

	return &s, nil
}
