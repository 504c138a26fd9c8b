package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/scorpius/internal/logger"
)

// APIKeyHeader is accepted as an alternative to "Authorization: Bearer".
const APIKeyHeader = "X-API-Key"

// publicPaths are probes that stay reachable without a key.
var publicPaths = []string{"/health", "/metrics"}

// apiKeySet compares presented keys against digests in constant time.
type apiKeySet [][sha256.Size]byte

func newAPIKeySet(keys []string) apiKeySet {
	set := make(apiKeySet, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			set = append(set, sha256.Sum256([]byte(k)))
		}
	}
	return set
}

func (s apiKeySet) contains(key string) bool {
	sum := sha256.Sum256([]byte(key))
	found := 0
	for i := range s {
		found |= subtle.ConstantTimeCompare(s[i][:], sum[:])
	}
	return found == 1
}

// presentedKey extracts the caller's key. ok is false when a header is
// present but malformed.
func presentedKey(r *http.Request) (key string, ok bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader)), true
}

// APIKeyMiddleware guards every route except the public probes.
// With no configured keys it is a pass-through.
func APIKeyMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := newAPIKeySet(apiKeys)

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range publicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			key, ok := presentedKey(r)
			switch {
			case !ok:
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
			case key == "":
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
			case !keys.contains(key):
				logpkg.FromContext(r.Context()).Warn("rejected api key", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
