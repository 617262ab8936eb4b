package middleware

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bluebutton/server/internal/platform/mdc"
)

// Diagnostic context keys written for every request.
const (
	MDCRequestMethod = "req.requestMethod"
	MDCRequestURI    = "req.requestURI"
	MDCRequestURL    = "req.requestURL"
	MDCQueryString   = "req.queryString"
	MDCClientDN      = "req.clientSSL.DN"
)

const (
	// ClientDNAttribute is the echo context key holding the client DN
	// (*string) for the access log.
	ClientDNAttribute = "req-clientSSL-DN"

	// ClientCertificatesAttribute is the echo context key holding the
	// client certificate chain ([]*x509.Certificate), client cert last.
	ClientCertificatesAttribute = "javax.servlet.request.X509Certificate"

	// ClientSSLNameHeader is the synthetic request header carrying the
	// client DN.
	ClientSSLNameHeader = "BlueButton-ClientSSLName"

	wrappedRequestKey = "wrapped_request"
)

var (
	ErrNumberFormat    = errors.New("number format error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// DNExtractor yields the subject DN of the client certificate, or nil.
type DNExtractor interface {
	ClientDN(c echo.Context) (*string, error)
}

// CertificateDNExtractor reads the chain stored under
// ClientCertificatesAttribute and returns the last certificate's subject.
type CertificateDNExtractor struct{}

func (CertificateDNExtractor) ClientDN(c echo.Context) (*string, error) {
	v := c.Get(ClientCertificatesAttribute)
	if v == nil {
		return nil, nil
	}
	certs, ok := v.([]*x509.Certificate)
	if !ok {
		return nil, fmt.Errorf("client certificates attribute has type %T", v)
	}
	if len(certs) == 0 {
		return nil, nil
	}
	last := certs[len(certs)-1]
	if last == nil {
		return nil, nil
	}
	dn := last.Subject.String()
	if dn == "" {
		return nil, nil
	}
	return &dn, nil
}

// LoggingContext populates the request's diagnostic context, exposes the
// client DN as ClientDNAttribute and as the ClientSSLNameHeader request
// header, and clears the diagnostic context when the request is done,
// whether the rest of the chain returned an error or panicked.
func LoggingContext(extractor DNExtractor) echo.MiddlewareFunc {
	if extractor == nil {
		extractor = CertificateDNExtractor{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			m := mdc.New()
			defer m.Clear()
			ctx = mdc.WithContext(ctx, m)

			dn, err := extractor.ClientDN(c)
			if err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("unable to extract client DN")
				dn = nil
			}

			m.PutString(MDCRequestMethod, req.Method)
			m.PutString(MDCRequestURI, req.URL.EscapedPath())
			m.Put(MDCRequestURL, requestURL(c))
			m.Put(MDCQueryString, optional(req.URL.RawQuery))
			m.Put(MDCClientDN, dn)

			c.Set(ClientDNAttribute, dn)

			wrapped := req.Clone(ctx)
			wrapped.Header.Del(ClientSSLNameHeader)
			if dn != nil {
				wrapped.Header.Set(ClientSSLNameHeader, *dn)
			}
			c.SetRequest(wrapped)
			c.Set(wrappedRequestKey, &ClientDNRequest{req: wrapped, clientDN: dn})

			return next(c)
		}
	}
}

// ClientDNFrom returns the client DN stored by LoggingContext, or "".
func ClientDNFrom(c echo.Context) string {
	if dn, ok := c.Get(ClientDNAttribute).(*string); ok && dn != nil {
		return *dn
	}
	return ""
}

func requestURL(c echo.Context) *string {
	req := c.Request()
	if req.Host == "" {
		return nil
	}
	u := c.Scheme() + "://" + req.Host + req.URL.EscapedPath()
	return &u
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ClientDNRequest is the request as seen by handlers once LoggingContext
// has run. Lookups of ClientSSLNameHeader are answered from the client DN;
// every other header is delegated to the underlying request.
type ClientDNRequest struct {
	req      *http.Request
	clientDN *string
}

// WrappedRequest returns the ClientDNRequest installed by LoggingContext,
// or nil when the middleware did not run.
func WrappedRequest(c echo.Context) *ClientDNRequest {
	w, _ := c.Get(wrappedRequestKey).(*ClientDNRequest)
	return w
}

// NewClientDNRequest wraps req with the given client DN.
func NewClientDNRequest(req *http.Request, clientDN *string) *ClientDNRequest {
	return &ClientDNRequest{req: req, clientDN: clientDN}
}

func isClientSSLName(name string) bool {
	return strings.EqualFold(name, ClientSSLNameHeader)
}

// Request returns the underlying request.
func (w *ClientDNRequest) Request() *http.Request { return w.req }

// Header returns the first value of the named header, matched
// case-insensitively, or "".
func (w *ClientDNRequest) Header(name string) string {
	if isClientSSLName(name) {
		if w.clientDN == nil {
			return ""
		}
		return *w.clientDN
	}
	return w.req.Header.Get(name)
}

// Headers returns every value of the named header.
func (w *ClientDNRequest) Headers(name string) []string {
	if isClientSSLName(name) {
		if w.clientDN == nil {
			return nil
		}
		return []string{*w.clientDN}
	}
	return w.req.Header.Values(name)
}

// HeaderNames returns the underlying header names plus ClientSSLNameHeader.
func (w *ClientDNRequest) HeaderNames() []string {
	names := make([]string, 0, len(w.req.Header)+1)
	for k := range w.req.Header {
		if isClientSSLName(k) {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return append(names, ClientSSLNameHeader)
}

// IntHeader parses the named header as an integer. It returns -1 when the
// header is absent. ClientSSLNameHeader never parses.
func (w *ClientDNRequest) IntHeader(name string) (int, error) {
	if isClientSSLName(name) {
		return 0, fmt.Errorf("header %s: %w", ClientSSLNameHeader, ErrNumberFormat)
	}
	v := w.req.Header.Get(name)
	if v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("header %s: %w: %v", name, ErrNumberFormat, err)
	}
	return n, nil
}

// DateHeader parses the named header as an HTTP date. It returns the zero
// time when the header is absent. ClientSSLNameHeader never parses.
func (w *ClientDNRequest) DateHeader(name string) (time.Time, error) {
	if isClientSSLName(name) {
		return time.Time{}, fmt.Errorf("header %s: %w", ClientSSLNameHeader, ErrInvalidArgument)
	}
	v := w.req.Header.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("header %s: %w: %v", name, ErrInvalidArgument, err)
	}
	return t, nil
}

// ClientCertificates copies the verified TLS peer chain onto the echo
// context under ClientCertificatesAttribute. crypto/tls lists the client's
// own certificate first; the copy is reversed so it comes last.
func ClientCertificates() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if state := c.Request().TLS; state != nil && len(state.PeerCertificates) > 0 {
				peers := state.PeerCertificates
				chain := make([]*x509.Certificate, len(peers))
				for i, cert := range peers {
					chain[len(peers)-1-i] = cert
				}
				c.Set(ClientCertificatesAttribute, chain)
			}
			return next(c)
		}
	}
}
