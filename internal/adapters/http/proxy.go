package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
)

// ProxyHandler manages reverse proxying for subdomains.
type ProxyHandler struct {
	cache  ContainerLookup
	domain string
	logger *zap.Logger
}

// NewProxyHandler creates a new proxy handler for hosts below domain.
func NewProxyHandler(cache ContainerLookup, domain string, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{cache: cache, domain: strings.ToLower(domain), logger: logger}
}

// subdomain returns the app name for hosts like web.<domain>.
func (h *ProxyHandler) subdomain(host string) (string, bool) {
	if h.domain == "" {
		return "", false
	}
	host = strings.ToLower(host)
	name, ok := strings.CutSuffix(host, "."+h.domain)
	if !ok || name == "" || name == "www" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the corresponding container's internal IP.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	subdomain, ok := h.subdomain(c.Hostname())
	if !ok {
		return c.Next()
	}

	container, found := h.cache.Lookup(subdomain)
	if !found || !container.Running() || container.IPAddress() == "" {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", subdomain))
	}
	targetIP := container.IPAddress()

	remote, err := url.Parse("http://" + targetIP)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// The app inside sees its own address as Host.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.logger.Warn("proxy failed", zap.String("app", subdomain), zap.String("target", targetIP), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy Info: target=%s error=%v", targetIP, err)
	}

	return adaptor.HTTPHandler(proxy)(c)
}
