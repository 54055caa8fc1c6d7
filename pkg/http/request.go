package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unknown is reported when a client attribute cannot be determined
const Unknown = "unknown"

// maxAgentLength caps stored User-Agent strings
const maxAgentLength = 512

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ClientInfo is the best-effort origin of a request
type ClientInfo struct {
	IP    string
	Agent string
}

// ExtractClientInfo returns the client IP and User-Agent, each defaulting to "unknown"
func ExtractClientInfo(r *http.Request, config *IPConfig) ClientInfo {
	return ClientInfo{
		IP:    ExtractClientIP(r, config),
		Agent: ExtractClientAgent(r),
	}
}

// ExtractClientAgent returns the trimmed, length-capped User-Agent header
func ExtractClientAgent(r *http.Request) string {
	agent := strings.TrimSpace(r.Header.Get("User-Agent"))
	if agent == "" {
		return Unknown
	}
	if len(agent) > maxAgentLength {
		agent = agent[:maxAgentLength]
	}
	return agent
}

// ExtractClientIP extracts the real client IP address from the request.
// X-Forwarded-For and X-Real-IP are honoured only when the direct peer is a
// trusted proxy; otherwise RemoteAddr is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		// X-Forwarded-For may list several hops; the first valid one is the client
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return Unknown
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, cidr := range trustedProxies {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

func isValidIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}
