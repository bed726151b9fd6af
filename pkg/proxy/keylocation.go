package proxy

import (
	"net/http"
	"strings"
)

// KeyLocation is the transport slot a caller used for its credential.
// The upstream credential is placed back into the same slot.
type KeyLocation int

const (
	// NoKey means the caller presented no credential.
	NoKey KeyLocation = iota
	// BearerHeader is "Authorization: Bearer <key>".
	BearerHeader
	// ProviderHeader is the upstream's own API key header.
	ProviderHeader
	// GenericHeader is the conventional X-API-Key header.
	GenericHeader
	// QueryParam is the "key" query parameter.
	QueryParam
)

// Header and parameter names for each location.
const (
	AuthorizationHeader = "Authorization"
	ProviderKeyHeader   = "X-Goog-Api-Key"
	GenericKeyHeader    = "X-API-Key"
	KeyQueryParam       = "key"
)

// extractionOrder is the priority in which inbound slots are checked.
var extractionOrder = []KeyLocation{BearerHeader, ProviderHeader, GenericHeader, QueryParam}

// credentialHeaders are removed from every outbound request.
var credentialHeaders = []string{AuthorizationHeader, ProviderKeyHeader, GenericKeyHeader}

// String returns the label used in logs and metrics.
func (l KeyLocation) String() string {
	switch l {
	case NoKey:
		return "none"
	case BearerHeader:
		return "bearer"
	case ProviderHeader:
		return "provider_header"
	case GenericHeader:
		return "generic_header"
	case QueryParam:
		return "query"
	default:
		return "unknown"
	}
}

// HeaderName returns the inbound header for header locations, or "".
func (l KeyLocation) HeaderName() string {
	switch l {
	case BearerHeader:
		return AuthorizationHeader
	case ProviderHeader:
		return ProviderKeyHeader
	case GenericHeader:
		return GenericKeyHeader
	default:
		return ""
	}
}

// OutboundHeader returns the header that carries the credential upstream,
// or "" when it travels in the query string. The upstream does not accept
// bearer API keys, so BearerHeader credentials go out as the key parameter.
func (l KeyLocation) OutboundHeader() string {
	switch l {
	case ProviderHeader, GenericHeader:
		return l.HeaderName()
	default:
		return ""
	}
}

// ExtractKey finds the caller's credential. The first non-empty slot in
// priority order wins: bearer header, provider header, generic header,
// then the key query parameter.
func ExtractKey(r *http.Request) (string, KeyLocation) {
	var query map[string][]string
	for _, loc := range extractionOrder {
		var value string
		switch loc {
		case BearerHeader:
			value = bearerToken(r.Header.Get(AuthorizationHeader))
		case ProviderHeader, GenericHeader:
			value = strings.TrimSpace(r.Header.Get(loc.HeaderName()))
		case QueryParam:
			if query == nil {
				query = r.URL.Query()
			}
			if v := query[KeyQueryParam]; len(v) > 0 {
				value = strings.TrimSpace(v[0])
			}
		}
		if value != "" {
			return value, loc
		}
	}
	return "", NoKey
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
