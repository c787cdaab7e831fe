package minerwatch

import (
	"errors"
	"testing"
)

func TestProviderDomain(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"bare domain", "https://clopool.pro", "clopool.pro", false},
		{"subdomain", "https://eu1.clopool.pro", "clopool.pro", false},
		{"port", "https://eu1.2miners.com:8443/", "2miners.com", false},
		{"upper case", "https://ETH.Nanopool.ORG", "nanopool.org", false},
		{"trailing dot", "https://clopool.pro.", "clopool.pro", false},
		{"single label", "http://localhost:9999", "localhost", false},
		{"ipv4", "http://127.0.0.1:8080", "127.0.0.1", false},
		{"no scheme", "clopool.pro", "", true},
		{"garbage", "://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProviderDomain(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ProviderDomain(%q) = %q, want error", tt.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProviderDomain(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ProviderDomain(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		pool     string
		wallet   string
		wantURL  string
		provider string
	}{
		{
			name:     "clopool",
			pool:     "https://clopool.pro",
			wallet:   "0xabc",
			wantURL:  "https://clopool.pro/api/accounts/0xabc",
			provider: "clopool",
		},
		{
			name:     "trailing slash",
			pool:     "https://clopool.pro/",
			wallet:   "0xabc",
			wantURL:  "https://clopool.pro/api/accounts/0xabc",
			provider: "clopool",
		},
		{
			name:     "subdomain and port kept",
			pool:     "https://eu1.2miners.com:8443",
			wallet:   "0xabc",
			wantURL:  "https://eu1.2miners.com:8443/api/accounts/0xabc",
			provider: "2miners",
		},
		{
			name:     "nanopool path",
			pool:     "https://api.nanopool.org/v1/eth",
			wallet:   "0xabc",
			wantURL:  "https://api.nanopool.org/v1/eth/user/0xabc",
			provider: "nanopool",
		},
		{
			name:     "wallet escaped",
			pool:     "https://clopool.pro",
			wallet:   "a/b c",
			wantURL:  "https://clopool.pro/api/accounts/a%2Fb%20c",
			provider: "clopool",
		},
		{
			name:     "query kept after path",
			pool:     "https://clopool.pro/?x=1",
			wallet:   "0xabc",
			wantURL:  "https://clopool.pro/api/accounts/0xabc?x=1",
			provider: "clopool",
		},
		{
			name:     "fragment dropped",
			pool:     "https://api.nanopool.org/v1/eth#top",
			wallet:   "0xabc",
			wantURL:  "https://api.nanopool.org/v1/eth/user/0xabc",
			provider: "nanopool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, p, err := ResolveEndpoint(tt.pool, tt.wallet)
			if err != nil {
				t.Fatalf("ResolveEndpoint() error = %v", err)
			}
			if url != tt.wantURL {
				t.Errorf("url = %q, want %q", url, tt.wantURL)
			}
			if p.Name != tt.provider {
				t.Errorf("provider = %q, want %q", p.Name, tt.provider)
			}
		})
	}
}

func TestResolveEndpoint_UnsupportedProvider(t *testing.T) {
	tests := []struct {
		name       string
		pool       string
		wantDomain string
		wantCause  bool
	}{
		{"unknown domain", "https://unknown-pool.io", "unknown-pool.io", false},
		{"unknown subdomain", "https://eth.unknown-pool.io:4000", "unknown-pool.io", false},
		{"malformed url", "not a url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ResolveEndpoint(tt.pool, "0xabc")
			var unsupported *UnsupportedProviderError
			if !errors.As(err, &unsupported) {
				t.Fatalf("error = %v, want *UnsupportedProviderError", err)
			}
			if unsupported.Domain != tt.wantDomain {
				t.Errorf("Domain = %q, want %q", unsupported.Domain, tt.wantDomain)
			}
			if (unsupported.Cause != nil) != tt.wantCause {
				t.Errorf("Cause = %v, wantCause %v", unsupported.Cause, tt.wantCause)
			}
		})
	}
}

func TestRegisterProvider(t *testing.T) {
	p := Provider{
		Name:         "test",
		PathTemplate: "/miner/{wallet}/stats",
		Schema:       Schema{HashratePath: "hashrate"},
	}
	if err := RegisterProvider("Register-Test.Example", p); err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}

	got, ok := LookupProvider("register-test.example")
	if !ok || got.Name != "test" {
		t.Fatalf("LookupProvider() = %+v, %v", got, ok)
	}

	url, _, err := ResolveEndpoint("https://pool.register-test.example", "w1")
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if url != "https://pool.register-test.example/miner/w1/stats" {
		t.Errorf("url = %q", url)
	}
}

func TestRegisterProvider_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		p      Provider
	}{
		{"empty domain", " ", Provider{PathTemplate: "/{wallet}"}},
		{"no placeholder", "x.example", Provider{PathTemplate: "/api/accounts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RegisterProvider(tt.domain, tt.p); err == nil {
				t.Error("RegisterProvider() expected error, got nil")
			}
		})
	}
}
