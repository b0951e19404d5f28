package tenant

import "strings"

// HostWithoutPort strips an optional :port suffix from a request host.
// IPv6 literals keep their brackets removed as well, matching what the
// resolver stores in the tenants table.
func HostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") {
		// [::1]:8080 -> ::1
		if end := strings.Index(host, "]"); end > 0 {
			return host[1:end]
		}
		return host
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i+1:], ":") {
		return host[:i]
	}
	return host
}
