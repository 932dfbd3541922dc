package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultMissRefetchInterval is how often a token signed with an unknown
	// kid may trigger a refetch of the key set
	DefaultMissRefetchInterval = time.Minute

	fetchTimeout = 15 * time.Second
	maxJWKSSize  = 1 << 20
	minRSABits   = 2048
)

// ErrUnknownKey is returned when no published key matches a token's kid
var ErrUnknownKey = errors.New("signing key not found")

// KeySet verifies access tokens against the provider's published JWKS. Keys
// are cached for the configured TTL; concurrent callers share one download.
type KeySet struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	misses     *rate.Limiter
	fetches    singleflight.Group

	mu        sync.RWMutex
	keys      map[string]any // kid to *rsa.PublicKey or *ecdsa.PublicKey; replaced, never mutated
	fetchedAt time.Time
}

// KeySetOption configures a KeySet
type KeySetOption func(*KeySet)

// WithMissRefetchInterval limits refetches caused by unknown kids
func WithMissRefetchInterval(d time.Duration) KeySetOption {
	return func(k *KeySet) { k.misses = rate.NewLimiter(rate.Every(d), 1) }
}

// NewKeySet creates a key set backed by the JWKS document at url
func NewKeySet(url string, ttl time.Duration, httpClient *http.Client, opts ...KeySetOption) *KeySet {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	k := &KeySet{
		url:        url,
		ttl:        ttl,
		httpClient: httpClient,
		misses:     rate.NewLimiter(rate.Every(DefaultMissRefetchInterval), 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Keyfunc returns a jwt.Keyfunc that accepts RSA and ECDSA signatures and
// resolves the token's kid against the set
func (k *KeySet) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
		default:
			return nil, fmt.Errorf("signing method %v not allowed", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		return k.GetKey(ctx, kid)
	}
}

// GetKey returns the public key for kid. An unknown kid refetches the set
// at most once per miss interval, in case the provider rotated its keys.
func (k *KeySet) GetKey(ctx context.Context, kid string) (any, error) {
	keys, fresh := k.cached()
	fetched := false
	if !fresh {
		var err error
		if keys, err = k.fetch(ctx); err != nil {
			return nil, err
		}
		fetched = true
	}

	if key, ok := keys[kid]; ok {
		return key, nil
	}
	if fetched || !k.misses.Allow() {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}

	keys, err := k.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
}

func (k *KeySet) cached() (map[string]any, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys, len(k.keys) > 0 && time.Since(k.fetchedAt) < k.ttl
}

// fetch joins or starts the shared download. No lock is held while it runs.
func (k *KeySet) fetch(ctx context.Context) (map[string]any, error) {
	ch := k.fetches.DoChan(k.url, func() (interface{}, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return k.download(dctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]any), nil
	}
}

func (k *KeySet) download(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	// entries are decoded one by one so a single unsupported key does not
	// discard the whole set
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse jwks: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, raw := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(raw, &jwk); err != nil {
			continue
		}
		if key := signingKey(jwk); key != nil {
			keys[jwk.KeyID] = key
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks contains no usable signing keys")
	}

	k.mu.Lock()
	k.keys = keys
	k.fetchedAt = time.Now()
	k.mu.Unlock()
	return keys, nil
}

// signingKey returns the public key of jwk when it may verify signatures
func signingKey(jwk jose.JSONWebKey) any {
	if !jwk.Valid() || !jwk.IsPublic() || (jwk.Use != "" && jwk.Use != "sig") {
		return nil
	}
	switch pub := jwk.Key.(type) {
	case *rsa.PublicKey:
		if pub.N.BitLen() < minRSABits || pub.E < 3 || pub.E > math.MaxInt32 {
			return nil
		}
		return pub
	case *ecdsa.PublicKey:
		return pub
	}
	return nil
}
