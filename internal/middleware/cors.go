package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"mongoflow/internal/config"

	"github.com/gin-gonic/gin"
)

const wildcard = "*"

var allMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// corsPolicy is the compiled form of config.CORSConfig.
type corsPolicy struct {
	allowAllOrigins bool
	allowAllMethods bool
	allowAllHeaders bool
	origins         map[string]struct{}
	methods         []string
	headers         map[string]struct{}
	credentials     bool
	allowMethods    string
	allowHeaders    string
	exposeHeaders   string
	maxAge          string
}

func newCORSPolicy(cfg config.CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     make(map[string]struct{}),
		headers:     make(map[string]struct{}),
		credentials: cfg.AllowCredentials,
		maxAge:      strconv.Itoa(cfg.MaxAge),
	}

	for _, o := range cfg.AllowOrigins {
		if o == wildcard {
			p.allowAllOrigins = true
			continue
		}
		p.origins[o] = struct{}{}
	}

	for _, m := range cfg.AllowMethods {
		if m == wildcard {
			p.allowAllMethods = true
			continue
		}
		p.methods = append(p.methods, strings.ToUpper(m))
	}
	if p.allowAllMethods {
		p.methods = allMethods
	}
	p.allowMethods = strings.Join(p.methods, ", ")

	var listed []string
	for _, h := range cfg.AllowHeaders {
		if h == wildcard {
			p.allowAllHeaders = true
			continue
		}
		p.headers[strings.ToLower(h)] = struct{}{}
		listed = append(listed, h)
	}
	p.allowHeaders = strings.Join(listed, ", ")
	p.exposeHeaders = strings.Join(cfg.ExposeHeaders, ", ")

	return p
}

func (p *corsPolicy) originAllowed(origin string) bool {
	if p.allowAllOrigins {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p *corsPolicy) methodAllowed(method string) bool {
	if p.allowAllMethods {
		return true
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, m := range p.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (p *corsPolicy) headersAllowed(requested string) bool {
	if p.allowAllHeaders || requested == "" {
		return true
	}
	for _, h := range strings.Split(requested, ",") {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, ok := p.headers[h]; !ok {
			return false
		}
	}
	return true
}

// CORS applies the cross-origin policy to every request before it reaches a
// route. Preflight requests are answered here and never dispatched.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	p := newCORSPolicy(cfg)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if c.Request.Method == http.MethodOptions && origin != "" && c.GetHeader("Access-Control-Request-Method") != "" {
			p.preflight(c, origin)
			return
		}

		p.simple(c, origin)
		c.Next()
	}
}

func (p *corsPolicy) simple(c *gin.Context, origin string) {
	if origin != "" && !p.originAllowed(origin) {
		return
	}

	h := c.Writer.Header()
	switch {
	case origin != "" && !p.allowAllOrigins:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	case origin != "" && p.credentials && c.GetHeader("Cookie") != "":
		// Browsers reject "*" on credentialed requests.
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	case p.allowAllOrigins:
		h.Set("Access-Control-Allow-Origin", wildcard)
	}

	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.exposeHeaders != "" {
		h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
	}
}

func (p *corsPolicy) preflight(c *gin.Context, origin string) {
	requestMethod := c.GetHeader("Access-Control-Request-Method")
	requestHeaders := c.GetHeader("Access-Control-Request-Headers")

	var failures []string
	if !p.originAllowed(origin) {
		failures = append(failures, "origin")
	}
	if !p.methodAllowed(requestMethod) {
		failures = append(failures, "method")
	}
	if !p.headersAllowed(requestHeaders) {
		failures = append(failures, "headers")
	}

	h := c.Writer.Header()
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", p.allowMethods)
	h.Set("Access-Control-Max-Age", p.maxAge)

	if p.allowAllHeaders && requestHeaders != "" {
		h.Set("Access-Control-Allow-Headers", requestHeaders)
	} else if p.allowHeaders != "" {
		h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	}

	if len(failures) > 0 {
		c.Data(http.StatusBadRequest, "text/plain; charset=utf-8", []byte("Disallowed CORS "+strings.Join(failures, ", ")))
		c.Abort()
		return
	}

	if p.allowAllOrigins && !p.credentials {
		h.Set("Access-Control-Allow-Origin", wildcard)
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte("OK"))
	c.Abort()
}
