package core

// Security is the authentication level an endpoint requires.
type Security int

const (
	// SecurityNone marks public endpoints.
	SecurityNone Security = iota
	// SecurityAPIKey marks endpoints that need the X-MBX-APIKEY header only.
	SecurityAPIKey
	// SecuritySigned marks endpoints that need the header plus a signed query.
	SecuritySigned
)

// String returns the string representation of the security level.
func (s Security) String() string {
	return [...]string{"NONE", "API_KEY", "SIGNED"}[s]
}

// HeaderAPIKey is the header carrying the API key.
const HeaderAPIKey = "X-MBX-APIKEY"

// Request describes one outbound HTTP call. Query is the already serialized
// (and, for signed calls, signed) query string; it is sent verbatim.
type Request struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Query    string            `json:"query,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Weight   int               `json:"weight"`
	Security Security          `json:"security"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
		Weight:  1,
	}
}

// URL returns the path joined with the query string.
func (r *Request) URL() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

func (r *Request) SetQuery(query string) *Request {
	r.Query = query
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

func (r *Request) SetSecurity(sec Security) *Request {
	r.Security = sec
	return r
}
