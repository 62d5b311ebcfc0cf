package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// AuthorityBase returns the AAD login host for the cloud.
func (c CloudType) AuthorityBase() string {
	switch c {
	case CloudUSGovHigh, CloudUSGovDoD:
		return "https://login.microsoftonline.us"
	case CloudChina:
		return "https://login.chinacloudapi.cn"
	default:
		return "https://login.microsoftonline.com"
	}
}

// GraphBase returns the Microsoft Graph host for the cloud.
func (c CloudType) GraphBase() string {
	switch c {
	case CloudUSGov, CloudUSGovHigh:
		return "https://graph.microsoft.us"
	case CloudUSGovDoD:
		return "https://dod-graph.microsoft.us"
	case CloudChina:
		return "https://microsoftgraph.chinacloudapi.cn"
	default:
		return "https://graph.microsoft.com"
	}
}

// Endpoint returns the OAuth2 endpoint set for the cloud and tenant.
// The public cloud goes through the oauth2/microsoft helper; national clouds
// use the same v2.0 URL shape on their own login hosts.
func (c CloudType) Endpoint(tenant string) oauth2.Endpoint {
	if tenant == "" {
		tenant = "common"
	}

	if c == CloudPublic {
		return microsoft.AzureADEndpoint(tenant)
	}

	base := c.AuthorityBase() + "/" + tenant

	return oauth2.Endpoint{
		AuthURL:       base + "/oauth2/v2.0/authorize",
		DeviceAuthURL: base + "/oauth2/v2.0/devicecode",
		TokenURL:      base + "/oauth2/v2.0/token",
	}
}
