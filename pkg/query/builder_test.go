package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbxkit/pkg/auth"
	"mbxkit/pkg/core"
)

const (
	testAPIKey    = "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A"
	testSecretKey = "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	testMillis    = int64(1508279351690)
)

func testCreds() core.Credentials {
	return core.Credentials{APIKey: testAPIKey, SecretKey: testSecretKey}
}

func fixedClock() time.Time {
	return time.UnixMilli(testMillis)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		path string
		data *core.Values
		want string
	}{
		{"single", "depth", core.NewValues("symbol", "GASBTC"), "depth?symbol=GASBTC"},
		{"nil_value_omitted", "depth", core.NewValues("symbol", "GASBTC", "timestamp", nil), "depth?symbol=GASBTC"},
		{"caller_timestamp_omitted", "depth", core.NewValues("symbol", "GASBTC", "timestamp", 1515165), "depth?symbol=GASBTC"},
		{"order_kept", "/api/v3/klines", core.NewValues("symbol", "BNBBTC", "interval", "1m", "limit", 5), "/api/v3/klines?symbol=BNBBTC&interval=1m&limit=5"},
		{"no_params", "/api/v3/ping", nil, "/api/v3/ping"},
		{"only_nil_params", "/api/v3/ping", core.NewValues("x", nil), "/api/v3/ping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Builder{URLPath: tt.path, Data: tt.data}
			assert.Equal(t, tt.want, Build(b))
			assert.Equal(t, tt.want, b.Query())
		})
	}
}

func TestBuild_NoCredentialsNeeded(t *testing.T) {
	b := Builder{URLPath: "depth", Data: core.NewValues("symbol", "GASBTC")}
	assert.Equal(t, "symbol=GASBTC", Encode(b))
}

func TestBuild_Idempotent(t *testing.T) {
	b := Builder{URLPath: "depth", Data: core.NewValues("symbol", "GASBTC", "limit", 10)}

	first := b.Query()
	for range 5 {
		assert.Equal(t, first, b.Query())
	}
	assert.Equal(t, 2, b.Data.Len())
}

func TestBuildSigned(t *testing.T) {
	b := Builder{
		URLPath:     "depth",
		Data:        core.NewValues("symbol", "GASBTC"),
		Credentials: testCreds(),
		Clock:       fixedClock,
	}

	got, err := b.SignedQuery()
	require.NoError(t, err)
	assert.Equal(t, "depth?symbol=GASBTC&timestamp=1508279351690&signature=10737f0f87e01e7b4d085ff19ed4549b291fee038c4209ff55e72ae28e4f9b1d", got)
	assert.Equal(t, "depth?symbol=GASBTC", b.Query())
}

func TestBuildSigned_SignatureReproducible(t *testing.T) {
	b := Builder{
		URLPath:     "/api/v3/allOrders",
		Data:        core.NewValues("symbol", "GASNEO", "limit", 10),
		Credentials: testCreds(),
		Clock:       fixedClock,
	}

	qs, err := EncodeSigned(b)
	require.NoError(t, err)

	payload, sig, found := strings.Cut(qs, "&signature=")
	require.True(t, found)
	assert.Equal(t, "symbol=GASNEO&limit=10&timestamp=1508279351690", payload)
	assert.Equal(t, auth.Sign(testSecretKey, payload), sig)
	assert.True(t, auth.NewHMACSigner(testSecretKey).Verify(payload, sig))
}

func TestBuildSigned_CallerTimestampWins(t *testing.T) {
	b := Builder{
		URLPath:     "depth",
		Data:        core.NewValues("timestamp", 1515165, "symbol", "GASBTC"),
		Credentials: testCreds(),
		Clock: func() time.Time {
			t.Fatal("clock must not be read when a timestamp is supplied")
			return time.Time{}
		},
	}

	qs, err := EncodeSigned(b)
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(qs, "&signature=")
	assert.Equal(t, "symbol=GASBTC&timestamp=1515165", payload)
	assert.Equal(t, auth.Sign(testSecretKey, payload), sig)
}

func TestBuildSigned_ClockReadAtCallTime(t *testing.T) {
	now := time.UnixMilli(1000)
	b := Builder{
		URLPath:     "depth",
		Data:        core.NewValues("symbol", "GASBTC"),
		Credentials: testCreds(),
		Clock:       func() time.Time { return now },
	}

	first, err := EncodeSigned(b)
	require.NoError(t, err)
	assert.Contains(t, first, "timestamp=1000&")

	now = time.UnixMilli(2000)
	second, err := EncodeSigned(b)
	require.NoError(t, err)
	assert.Contains(t, second, "timestamp=2000&")
}

func TestBuildSigned_DefaultClock(t *testing.T) {
	b := Builder{URLPath: "depth", Credentials: testCreds()}

	before := time.Now().UnixMilli()
	qs, err := EncodeSigned(b)
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	payload, _, _ := strings.Cut(qs, "&signature=")
	require.True(t, strings.HasPrefix(payload, "timestamp="))

	var ts int64
	for _, c := range strings.TrimPrefix(payload, "timestamp=") {
		ts = ts*10 + int64(c-'0')
	}
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
}

func TestBuildSigned_RecvWindow(t *testing.T) {
	b := Builder{
		URLPath:     "/api/v3/order",
		Data:        core.NewValues("symbol", "GASBTC"),
		Credentials: testCreds(),
		RecvWindow:  5 * time.Second,
		Clock:       fixedClock,
	}

	qs, err := EncodeSigned(b)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qs, "symbol=GASBTC&recvWindow=5000&timestamp=1508279351690&signature="))

	b.Data = core.NewValues("symbol", "GASBTC", "recvWindow", 1000)
	qs, err = EncodeSigned(b)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qs, "symbol=GASBTC&recvWindow=1000&timestamp=1508279351690&signature="))
}

func TestBuildSigned_CallerSignatureDropped(t *testing.T) {
	b := Builder{
		URLPath:     "depth",
		Data:        core.NewValues("symbol", "GASBTC", "signature", "forged"),
		Credentials: testCreds(),
		Clock:       fixedClock,
	}

	got, err := BuildSigned(b)
	require.NoError(t, err)
	assert.NotContains(t, got, "forged")
	assert.Equal(t, 1, strings.Count(got, "signature="))
}

func TestBuildSigned_Credentials(t *testing.T) {
	tests := []struct {
		name  string
		creds core.Credentials
		want  error
	}{
		{"none", core.Credentials{}, core.ErrAPIKeyRequired},
		{"secret_only", core.Credentials{SecretKey: testSecretKey}, core.ErrAPIKeyRequired},
		{"api_only", core.Credentials{APIKey: testAPIKey}, core.ErrSecretKeyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Builder{URLPath: "depth", Data: core.NewValues("symbol", "GASBTC"), Credentials: tt.creds}

			_, err := BuildSigned(b)
			assert.ErrorIs(t, err, tt.want)

			_, err = b.SignedQuery()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildSigned_UnsupportedValue(t *testing.T) {
	b := Builder{
		URLPath:     "/api/v3/order",
		Data:        core.NewValues("symbol", "GASBTC", "orderIds", []int{1, 2}),
		Credentials: testCreds(),
		Clock:       fixedClock,
	}

	_, err := b.SignedQuery()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "orderIds")
}
