package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCloudType(t *testing.T) {
	tests := []struct {
		in      string
		want    CloudType
		wantErr bool
	}{
		{"", CloudPublic, false},
		{"public", CloudPublic, false},
		{"Public", CloudPublic, false},
		{"usgov", CloudUSGov, false},
		{"usgovhigh", CloudUSGovHigh, false},
		{"usgovdod", CloudUSGovDoD, false},
		{"china", CloudChina, false},
		{"mars", CloudPublic, true},
	}

	for _, tt := range tests {
		got, err := ParseCloudType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAuthType(t *testing.T) {
	tests := []struct {
		in      string
		want    AuthType
		wantErr bool
	}{
		{"", AuthDeviceCode, false},
		{"devicecode", AuthDeviceCode, false},
		{"password", AuthPassword, false},
		{"certificate", AuthCertificate, false},
		{"identity", AuthIdentity, false},
		{"browser", AuthBrowser, false},
		{"secret", AuthSecret, false},
		{"magic", AuthDeviceCode, true},
	}

	for _, tt := range tests {
		got, err := ParseAuthType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestEnumValues_MatchDocumentFormat(t *testing.T) {
	// The integer values are part of the persisted document format and
	// must never be reordered.
	assert.Equal(t, 0, int(AuthDeviceCode))
	assert.Equal(t, 1, int(AuthPassword))
	assert.Equal(t, 2, int(AuthCertificate))
	assert.Equal(t, 3, int(AuthIdentity))
	assert.Equal(t, 4, int(AuthBrowser))
	assert.Equal(t, 5, int(AuthSecret))

	assert.Equal(t, 0, int(CloudPublic))
	assert.Equal(t, 4, int(CloudChina))

	assert.Equal(t, 0, int(CertificateUnknown))
	assert.Equal(t, 1, int(CertificateBase64))
	assert.Equal(t, 2, int(CertificateBinary))
}

func TestSessionKey(t *testing.T) {
	s := &Session{AppID: "app-1", Tenant: "contoso", CloudType: CloudUSGov}
	assert.Equal(t, "usgov|contoso|app-1", s.Key())
}

func TestSessionKey_EmptyTenantDefaultsToCommon(t *testing.T) {
	s := &Session{AppID: "app-1"}
	assert.Equal(t, "public|common|app-1", s.Key())
}

func TestToken_DisconnectedSessionYieldsNothing(t *testing.T) {
	s := NewSession()
	s.SetToken("https://graph.microsoft.com", "stale", time.Now().Add(time.Hour))
	s.Connected = false

	_, ok := s.Token("https://graph.microsoft.com")
	assert.False(t, ok, "disconnected session must not serve tokens, even stale ones")
}

func TestExpired_FutureToken(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.SetToken("r", "tok", time.Now().Add(time.Hour))

	assert.False(t, s.Expired("r", time.Now()))
}

func TestExpired_PastToken(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.SetToken("r", "tok", time.Now().Add(-time.Minute))

	assert.True(t, s.Expired("r", time.Now()))
}

func TestExpired_WithinSkewWindow(t *testing.T) {
	now := time.Now()

	s := NewSession()
	s.Connected = true

	// Expires in 10 seconds, inside the 30s skew buffer, so unusable.
	s.SetToken("r", "tok", now.Add(10*time.Second))
	assert.True(t, s.Expired("r", now))

	// Expires in 5 minutes, comfortably usable.
	s.SetToken("r", "tok", now.Add(5*time.Minute))
	assert.False(t, s.Expired("r", now))
}

func TestExpired_MissingEntry(t *testing.T) {
	s := NewSession()
	s.Connected = true

	assert.True(t, s.Expired("r", time.Now()))
}

func TestExpired_UnparseableTimestamp(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.AccessTokens["r"] = AccessToken{AccessToken: "tok", ExpiresOn: "0"}

	assert.True(t, s.Expired("r", time.Now()))
}

func TestExpired_UsesStoredTimestamp(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.SetToken("r", "tok", time.Now().Add(time.Hour))

	// The same stored entry flips to expired purely by advancing the
	// wall clock passed in. No process-local caching of the verdict.
	assert.False(t, s.Expired("r", time.Now()))
	assert.True(t, s.Expired("r", time.Now().Add(2*time.Hour)))
}

func TestSetToken_ReplacesOnlyThatResource(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.SetToken("a", "tok-a", time.Now().Add(time.Hour))
	s.SetToken("b", "tok-b", time.Now().Add(time.Hour))

	s.SetToken("a", "tok-a2", time.Now().Add(2*time.Hour))

	tokA, _ := s.Token("a")
	tokB, _ := s.Token("b")
	assert.Equal(t, "tok-a2", tokA.AccessToken)
	assert.Equal(t, "tok-b", tokB.AccessToken)
}

func TestLogout_ClearsEverything(t *testing.T) {
	s := &Session{
		AppID:        "app",
		Tenant:       "contoso",
		CloudType:    CloudChina,
		AuthType:     AuthSecret,
		RefreshToken: "rt",
		Connected:    true,
		SpoURL:       "https://contoso.sharepoint.cn",
		AccessTokens: map[string]AccessToken{"r": {AccessToken: "tok"}},
	}

	s.Logout()

	assert.False(t, s.Connected)
	assert.Empty(t, s.RefreshToken)
	assert.Empty(t, s.SpoURL)
	assert.Empty(t, s.AccessTokens)
	assert.NotNil(t, s.AccessTokens)
	assert.Equal(t, CloudPublic, s.CloudType)
}

func TestClone_IsDeep(t *testing.T) {
	s := NewSession()
	s.Connected = true
	s.SetToken("r", "tok", time.Now().Add(time.Hour))

	snapshot := s.Clone()
	s.SetToken("r", "changed", time.Now().Add(time.Hour))

	assert.Equal(t, "tok", snapshot.AccessTokens["r"].AccessToken)
}

func TestMarshalParse_RoundTrip(t *testing.T) {
	s := &Session{
		AppID:           "11111111-2222-3333-4444-555555555555",
		Tenant:          "contoso.onmicrosoft.com",
		CloudType:       CloudUSGovHigh,
		AuthType:        AuthCertificate,
		CertificateType: CertificateBase64,
		RefreshToken:    "rt",
		Connected:       true,
		SpoURL:          "https://contoso.sharepoint.us",
		AccessTokens: map[string]AccessToken{
			"https://graph.microsoft.us": {
				AccessToken: "tok",
				ExpiresOn:   "2099-01-01T00:00:00Z",
			},
		},
	}

	serialized, err := s.Marshal()
	require.NoError(t, err)

	restored, err := ParseSession(serialized)
	require.NoError(t, err)
	assert.Equal(t, s, restored)
}

func TestParseSession_EmptyDocument(t *testing.T) {
	s, err := ParseSession(`{"accessTokens":{},"authType":0,"connected":false}`)
	require.NoError(t, err)
	assert.False(t, s.Connected)
	assert.Equal(t, AuthDeviceCode, s.AuthType)
	assert.Equal(t, CloudPublic, s.CloudType)
	assert.Empty(t, s.AccessTokens)
}

func TestParseSession_NilTokenMap(t *testing.T) {
	s, err := ParseSession(`{"connected":false}`)
	require.NoError(t, err)
	assert.NotNil(t, s.AccessTokens)
}

func TestParseSession_Invalid(t *testing.T) {
	_, err := ParseSession(`{broken`)
	assert.Error(t, err)
}
