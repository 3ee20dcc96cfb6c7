package traefik

// RedirectSchemeMw creates a middleware that redirects requests to the given scheme.
// Example:
//
//	RedirectSchemeMw("https", true)
//	Answers "http://a.example.com/x" with a 301 to "https://a.example.com/x"
func RedirectSchemeMw(scheme string, permanent bool) Middleware {
	return Middleware{
		RedirectScheme: &RedirectScheme{
			Scheme:    scheme,
			Permanent: permanent,
		},
	}
}

// SSLRedirectMw is the HTTP to HTTPS redirect attached to plain HTTP routers.
func SSLRedirectMw() Middleware {
	return RedirectSchemeMw("https", true)
}
