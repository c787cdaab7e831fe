package minerwatch

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
)

// walletPlaceholder is substituted with the path-escaped wallet address.
const walletPlaceholder = "{wallet}"

// Schema describes where a provider keeps hashrate data in its response.
//
// Paths use dot notation relative to the document root. The aggregate
// worker-count fields are always read from the document root.
type Schema struct {
	// HashratePath locates the global hashrate, e.g. "data.hashrate".
	HashratePath string

	// WorkersPath locates the worker list. The list may be a JSON array of
	// objects or an object keyed by worker id.
	WorkersPath string

	// WorkerIDKey is the id field inside each worker object. Ignored when
	// the worker list is keyed by id.
	WorkerIDKey string

	// WorkerHashrateKey is the hashrate field inside each worker object.
	WorkerHashrateKey string
}

// Provider is a mining-pool API shape, selected by domain.
type Provider struct {
	// Name is a human-readable provider name used in logs.
	Name string

	// PathTemplate is appended to the pool base URL. It must contain the
	// {wallet} placeholder.
	PathTemplate string

	// Schema describes the response layout.
	Schema Schema
}

// openEthereumPool is the schema served by open-ethereum-pool derivatives.
var openEthereumPool = Schema{
	HashratePath:      "currentHashrate",
	WorkersPath:       "workers",
	WorkerHashrateKey: "hr",
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Provider{
		"clopool.pro": {
			Name:         "clopool",
			PathTemplate: "/api/accounts/" + walletPlaceholder,
			Schema:       openEthereumPool,
		},
		"2miners.com": {
			Name:         "2miners",
			PathTemplate: "/api/accounts/" + walletPlaceholder,
			Schema:       openEthereumPool,
		},
		"nanopool.org": {
			Name:         "nanopool",
			PathTemplate: "/user/" + walletPlaceholder,
			Schema: Schema{
				HashratePath:      "data.hashrate",
				WorkersPath:       "data.workers",
				WorkerIDKey:       "id",
				WorkerHashrateKey: "hashrate",
			},
		},
	}
)

// RegisterProvider adds or replaces the provider used for domain.
//
// domain is the last two labels of the pool host, e.g. "clopool.pro".
// Returns an error if the domain is empty or the template lacks the
// {wallet} placeholder.
func RegisterProvider(domain string, p Provider) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return errors.New("provider domain cannot be empty")
	}
	if !strings.Contains(p.PathTemplate, walletPlaceholder) {
		return errors.New("provider path template must contain " + walletPlaceholder)
	}
	providersMu.Lock()
	providers[domain] = p
	providersMu.Unlock()
	return nil
}

// LookupProvider returns the provider registered for domain.
func LookupProvider(domain string) (Provider, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	p, ok := providers[strings.ToLower(domain)]
	return p, ok
}

// ProviderDomain returns the last two dot-separated labels of the URL host,
// e.g. "eu.clopool.pro:8080" yields "clopool.pro".
//
// An IP-literal host is returned whole, so "http://127.0.0.1:9000" yields
// "127.0.0.1"; register a provider under that address to poll a local pool.
func ProviderDomain(poolURL string) (string, error) {
	u, err := url.Parse(poolURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("url must have a scheme and host")
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.ToLower(strings.Join(labels, ".")), nil
}

// ResolveEndpoint builds the request URL for wallet on the pool at
// poolBaseURL, together with the provider describing the response.
//
// The scheme, host, port, any path prefix and any query of poolBaseURL are
// kept. A fragment is dropped.
// Returns an [*UnsupportedProviderError] for malformed URLs and for
// domains without a provider table entry.
func ResolveEndpoint(poolBaseURL, wallet string) (string, Provider, error) {
	domain, err := ProviderDomain(poolBaseURL)
	if err != nil {
		return "", Provider{}, &UnsupportedProviderError{URL: poolBaseURL, Cause: err}
	}
	p, ok := LookupProvider(domain)
	if !ok {
		return "", Provider{}, &UnsupportedProviderError{URL: poolBaseURL, Domain: domain}
	}
	base, err := url.Parse(poolBaseURL)
	if err != nil {
		return "", Provider{}, &UnsupportedProviderError{URL: poolBaseURL, Cause: err}
	}
	base.Fragment, base.RawFragment = "", ""
	path := strings.ReplaceAll(p.PathTemplate, walletPlaceholder, url.PathEscape(wallet))
	return base.JoinPath(path).String(), p, nil
}
