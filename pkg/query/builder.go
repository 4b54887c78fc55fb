// Package query serializes call data into unsigned and signed query strings.
//
// A Builder is a plain value capturing the URL path, the parameters and the
// credentials; the free functions below read it and never mutate it:
//
//	b := query.Builder{URLPath: "depth", Data: core.NewValues("symbol", "GASBTC"), Credentials: creds}
//	query.Build(b)       // depth?symbol=GASBTC
//	query.BuildSigned(b) // depth?symbol=GASBTC&timestamp=...&signature=...
package query

import (
	"net/url"
	"strconv"
	"time"

	"mbxkit/pkg/auth"
	"mbxkit/pkg/core"
)

// Reserved parameter names added by signing.
const (
	ParamTimestamp  = "timestamp"
	ParamSignature  = "signature"
	ParamRecvWindow = "recvWindow"
)

// Builder captures everything needed to serialize one call.
type Builder struct {
	URLPath     string
	Data        *core.Values
	Credentials core.Credentials
	// RecvWindow is appended to signed queries when positive.
	RecvWindow time.Duration
	// Clock supplies the signing time; nil means time.Now.
	Clock func() time.Time
}

// Query is Build(b).
func (b Builder) Query() string {
	return Build(b)
}

// SignedQuery is BuildSigned(b).
func (b Builder) SignedQuery() (string, error) {
	return BuildSigned(b)
}

// Encode serializes the parameters in insertion order, without the reserved
// timestamp and signature parameters.
func Encode(b Builder) string {
	return b.Data.Encode(ParamTimestamp, ParamSignature)
}

// Build returns urlPath?<Encode(b)>, or just urlPath with no parameters.
func Build(b Builder) string {
	return join(b.URLPath, Encode(b))
}

// EncodeSigned serializes the parameters followed by recvWindow (when
// configured and not supplied), timestamp and signature. A caller-supplied
// timestamp is kept; otherwise the clock is read now. A value of an
// unsupported kind is an InvalidArgument error, never silently dropped.
func EncodeSigned(b Builder) (string, error) {
	if !b.Credentials.HasAPIKey() {
		return "", core.APIKeyRequired()
	}
	if !b.Credentials.HasSecretKey() {
		return "", core.SecretKeyRequired()
	}
	if err := b.Data.Validate(); err != nil {
		return "", err
	}

	ts := timestamp(b)
	payload := b.Data.Encode(ParamTimestamp, ParamSignature)
	if b.RecvWindow > 0 && !b.Data.Has(ParamRecvWindow) {
		payload = appendParam(payload, ParamRecvWindow, strconv.FormatInt(b.RecvWindow.Milliseconds(), 10))
	}
	payload = appendParam(payload, ParamTimestamp, ts)

	signature := auth.Sign(b.Credentials.SecretKey, payload)
	return appendParam(payload, ParamSignature, signature), nil
}

// BuildSigned returns urlPath?<EncodeSigned(b)>.
func BuildSigned(b Builder) (string, error) {
	qs, err := EncodeSigned(b)
	if err != nil {
		return "", err
	}
	return join(b.URLPath, qs), nil
}

func timestamp(b Builder) string {
	if v, ok := b.Data.Get(ParamTimestamp); ok && v != nil {
		if s, ok := core.FormatValue(v); ok {
			return url.QueryEscape(s)
		}
	}
	now := time.Now
	if b.Clock != nil {
		now = b.Clock
	}
	return strconv.FormatInt(now().UnixMilli(), 10)
}

func appendParam(qs, key, value string) string {
	if qs == "" {
		return key + "=" + value
	}
	return qs + "&" + key + "=" + value
}

func join(path, qs string) string {
	if qs == "" {
		return path
	}
	return path + "?" + qs
}
