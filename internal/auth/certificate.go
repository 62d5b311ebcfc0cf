package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/pkcs12"
	"golang.org/x/oauth2"
)

// clientAssertionType is the fixed assertion type for JWT client credentials.
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// assertionLifetime bounds the validity of a signed client assertion.
const assertionLifetime = 10 * time.Minute

// CertificateFlow authenticates as the application with a signed JWT client
// assertion (certificate credential). No refresh token exists; silent
// renewal re-asserts.
type CertificateFlow struct {
	clientID   string
	endpoint   oauth2.Endpoint
	key        *rsa.PrivateKey
	thumbprint string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewCertificateFlow parses the certificate material according to the
// session's certificate type and returns a ready flow. Base64 means PEM
// (certificate plus private key blocks), Binary means PKCS#12 unlocked with
// the certificate password. Unknown tries PEM first, then PKCS#12.
func NewCertificateFlow(sess *Session, fc FlowConfig, endpoint oauth2.Endpoint, logger *slog.Logger) (*CertificateFlow, error) {
	if len(fc.CertificateData) == 0 {
		return nil, fmt.Errorf("auth: certificate credential not configured")
	}

	var (
		key  *rsa.PrivateKey
		cert *x509.Certificate
		err  error
	)

	switch sess.CertificateType {
	case CertificateBase64:
		key, cert, err = parsePEMCredential(fc.CertificateData)
	case CertificateBinary:
		key, cert, err = parsePKCS12Credential(fc.CertificateData, fc.CertificatePassword)
	default:
		key, cert, err = parsePEMCredential(fc.CertificateData)
		if err != nil {
			key, cert, err = parsePKCS12Credential(fc.CertificateData, fc.CertificatePassword)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading certificate credential: %w", err)
	}

	sum := sha1.Sum(cert.Raw)

	client := fc.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &CertificateFlow{
		clientID:   sess.AppID,
		endpoint:   endpoint,
		key:        key,
		thumbprint: base64.RawURLEncoding.EncodeToString(sum[:]),
		client:     client,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (f *CertificateFlow) Name() string { return "certificate" }

func (f *CertificateFlow) Acquire(ctx context.Context, resource string) (Grant, error) {
	assertion, err := f.signAssertion()
	if err != nil {
		return Grant{}, fmt.Errorf("auth: signing client assertion: %w", err)
	}

	f.logger.Info("acquiring app-only token with certificate assertion",
		slog.String("resource", resource),
	)

	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {f.clientID},
		"scope":                 {resource + "/.default"},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Grant{}, fmt.Errorf("auth: building token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("client-request-id", uuid.NewString())

	resp, err := f.client.Do(req)
	if err != nil {
		return Grant{}, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Grant{}, fmt.Errorf("auth: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Grant{}, providerError(body, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Grant{}, fmt.Errorf("auth: decoding token response: %w", err)
	}

	return Grant{
		AccessToken: parsed.AccessToken,
		ExpiresOn:   f.now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}

func (f *CertificateFlow) Refresh(ctx context.Context, resource, _ string) (Grant, error) {
	return f.Acquire(ctx, resource)
}

// signAssertion builds the RS256 client assertion with the x5t header the
// token endpoint uses to locate the registered certificate.
func (f *CertificateFlow) signAssertion() (string, error) {
	now := f.now()

	claims := jwt.MapClaims{
		"aud": f.endpoint.TokenURL,
		"iss": f.clientID,
		"sub": f.clientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["x5t"] = f.thumbprint

	return token.SignedString(f.key)
}

// parsePEMCredential extracts the RSA private key and certificate from PEM
// blocks in any order.
func parsePEMCredential(data []byte) (*rsa.PrivateKey, *x509.Certificate, error) {
	var (
		key  *rsa.PrivateKey
		cert *x509.Certificate
	)

	rest := data
	for {
		var block *pem.Block

		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			parsed, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, nil, err
			}

			cert = parsed
		case "RSA PRIVATE KEY":
			parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, nil, err
			}

			key = parsed
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, nil, err
			}

			rsaKey, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, nil, fmt.Errorf("private key is not RSA")
			}

			key = rsaKey
		}
	}

	if key == nil {
		return nil, nil, fmt.Errorf("no private key found in PEM data")
	}

	if cert == nil {
		return nil, nil, fmt.Errorf("no certificate found in PEM data")
	}

	return key, cert, nil
}

// parsePKCS12Credential unlocks a PFX bundle.
func parsePKCS12Credential(data []byte, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, err
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("PKCS#12 private key is not RSA")
	}

	return key, cert, nil
}

// providerError surfaces the identity provider's own error text undecorated
// when the response carries one, falling back to the HTTP status.
func providerError(body []byte, status int) error {
	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.ErrorDescription != "" {
			return fmt.Errorf("%s", parsed.ErrorDescription)
		}

		if parsed.Error != "" {
			return fmt.Errorf("%s", parsed.Error)
		}
	}

	return fmt.Errorf("token endpoint returned HTTP %d", status)
}
