package tenant

import (
	"net"
	"net/http"
	"strings"

	"github.com/dujiao-next/donate/internal/constants"
)

// 标识来源
const (
	SourceHeader    = "header"
	SourceSubdomain = "subdomain"
	SourceQuery     = "query"
	SourcePath      = "path"
)

// Identifier 请求中携带的租户标识
type Identifier struct {
	Value  string
	Source string
}

// ResolveOptions 标识提取配置
type ResolveOptions struct {
	BaseDomain     string
	DevHosts       []string
	ExemptPrefixes []string
}

var reservedSubdomains = map[string]struct{}{
	"www": {},
	"api": {},
	"app": {},
}

// IsExempt 路径是否无需租户
func IsExempt(path string, prefixes []string) bool {
	path = strings.TrimSpace(path)
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// ExtractIdentifier 依次从 header、子域名、query、路径中提取租户标识，命中即返回
func ExtractIdentifier(r *http.Request, opts ResolveOptions) (Identifier, bool) {
	if r == nil {
		return Identifier{}, false
	}
	if value := strings.TrimSpace(r.Header.Get(constants.TenantHeader)); value != "" {
		return Identifier{Value: value, Source: SourceHeader}, true
	}
	if value := subdomainFromHost(r.Host, opts); value != "" {
		return Identifier{Value: value, Source: SourceSubdomain}, true
	}
	if r.URL != nil {
		if value := strings.TrimSpace(r.URL.Query().Get(constants.TenantQueryParam)); value != "" {
			return Identifier{Value: value, Source: SourceQuery}, true
		}
		if value := tenantFromPath(r.URL.Path); value != "" {
			return Identifier{Value: value, Source: SourcePath}, true
		}
	}
	return Identifier{}, false
}

func subdomainFromHost(rawHost string, opts ResolveOptions) string {
	host := strings.ToLower(strings.TrimSpace(rawHost))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if net.ParseIP(host) != nil {
		return ""
	}
	for _, dev := range opts.DevHosts {
		dev = strings.ToLower(strings.TrimSpace(dev))
		if dev == "" {
			continue
		}
		if host == dev || strings.HasSuffix(host, "."+dev) {
			return ""
		}
	}

	var label string
	base := strings.ToLower(strings.Trim(strings.TrimSpace(opts.BaseDomain), "."))
	if base != "" {
		if !strings.HasSuffix(host, "."+base) {
			return ""
		}
		sub := strings.TrimSuffix(host, "."+base)
		if strings.Contains(sub, ".") {
			return ""
		}
		label = sub
	} else {
		parts := strings.Split(host, ".")
		if len(parts) < 3 {
			return ""
		}
		label = parts[0]
	}
	if _, reserved := reservedSubdomains[label]; reserved {
		return ""
	}
	return label
}

func tenantFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == constants.TenantPathSegment {
			return strings.TrimSpace(segments[i+1])
		}
	}
	return ""
}
