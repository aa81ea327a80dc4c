package constants

// Route paths
const (
	HealthRoute   = "/health"
	APIInfoRoute  = "/api"
	DocsPrefix    = "/docs/"
	WebhookRoute  = "/webhooks/payment"
	APIV1Route    = "/api/v1"
	AdminPrefix   = "/api/v1/admin/"
	MetricsRoute  = "/metrics"
	OpenAPIDocURL = "./public/docs/v1/openapi.yml"
)

// PublicRoute is a route the API key gate lets through. Prefix routes match
// every path below Path.
type PublicRoute struct {
	Method string
	Path   string
	Prefix bool
}

// PublicRoutes is the complete list of routes reachable without an API key.
// Anything not listed here requires X-API-Key, including unknown paths.
// The webhook authenticates by signature and admin routes by the admin key.
var PublicRoutes = []PublicRoute{
	{Method: "GET", Path: HealthRoute},
	{Method: "HEAD", Path: HealthRoute},
	{Method: "GET", Path: APIInfoRoute},
	{Method: "GET", Path: DocsPrefix, Prefix: true},
	{Method: "POST", Path: WebhookRoute},
	{Method: "GET", Path: AdminPrefix, Prefix: true},
	{Method: "POST", Path: AdminPrefix, Prefix: true},
}
