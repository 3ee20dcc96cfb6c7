package traefik

// StaticConfig represents Traefik's static configuration
type StaticConfig struct {
	EntryPoints           map[string]EntryPoint          `json:"entryPoints"`
	Ping                  *Ping                          `json:"ping,omitempty"`
	Providers             Providers                      `json:"providers"`
	CertificatesResolvers map[string]CertificateResolver `json:"certificatesResolvers,omitempty"`
	AccessLog             *AccessLog                     `json:"accessLog,omitempty"`
}

type EntryPoint struct {
	Address string `json:"address"`
}

type Ping struct {
	EntryPoint string `json:"entryPoint"`
}

type Providers struct {
	File *FileProvider `json:"file,omitempty"`
	HTTP *HTTPProvider `json:"http,omitempty"`
}

type FileProvider struct {
	Watch    bool   `json:"watch"`
	Filename string `json:"filename"`
}

// HTTPProvider polls the dynamic configuration from a config server
type HTTPProvider struct {
	Endpoint     string `json:"endpoint"`
	PollInterval string `json:"pollInterval,omitempty"`
}

type CertificateResolver struct {
	ACME *ACME `json:"acme"`
}

type ACME struct {
	Email        string        `json:"email"`
	Storage      string        `json:"storage"`
	TLSChallenge *TLSChallenge `json:"tlsChallenge,omitempty"`
	DNSChallenge *DNSChallenge `json:"dnsChallenge,omitempty"`
}

type TLSChallenge struct{}

type DNSChallenge struct {
	Provider string `json:"provider"`
}

type AccessLog struct {
	Format string           `json:"format"`
	Fields *AccessLogFields `json:"fields,omitempty"`
}

type AccessLogFields struct {
	DefaultMode string `json:"defaultMode"`
}

// DynamicConfig represents Traefik's dynamic configuration
type DynamicConfig struct {
	HTTP struct {
		Routers     map[string]Router     `json:"routers"`
		Services    map[string]Service    `json:"services"`
		Middlewares map[string]Middleware `json:"middlewares"`
	} `json:"http"`
}

type Router struct {
	EntryPoints []string `json:"entryPoints"`
	Service     string   `json:"service"`
	Rule        string   `json:"rule"`
	Middlewares []string `json:"middlewares,omitempty"`
	TLS         *TLS     `json:"tls,omitempty"`
}

type Service struct {
	LoadBalancer *LoadBalancer `json:"loadBalancer"`
}

type LoadBalancer struct {
	Servers []Server `json:"servers"`
}

type Server struct {
	URL string `json:"url"`
}

type TLS struct {
	CertResolver string   `json:"certResolver,omitempty"`
	Domains      []Domain `json:"domains,omitempty"`
}

type Domain struct {
	Main string   `json:"main"`
	SANs []string `json:"sans,omitempty"`
}

type Middleware struct {
	RedirectScheme *RedirectScheme `json:"redirectScheme,omitempty"`
}

type RedirectScheme struct {
	Scheme    string `json:"scheme"`
	Permanent bool   `json:"permanent"`
}
