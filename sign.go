package signway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SignDateFormat is the basic ISO-8601 UTC form used by X-Sw-Date.
const SignDateFormat = "20060102T150405Z"

// FormatSignDate formats t in the X-Sw-Date wire format (UTC, seconds
// precision).
func FormatSignDate(t time.Time) string {
	return t.UTC().Format(SignDateFormat)
}

// ParseSignDate parses the X-Sw-Date wire format.
func ParseSignDate(s string) (time.Time, error) {
	return time.Parse(SignDateFormat, s)
}

// SignInput describes a single request to sign, mirroring the
// primitives CanonicalRequest needs plus the signing metadata carried
// by the X-Sw-* query parameters.
type SignInput struct {
	Method        string
	Host          string // upstream host under HostShapeInSignature; not added to the returned values
	Path          string
	Query         []QueryParam // non-signing query parameters only
	SignedHeaders []Header
	BodyHash      string // optional; empty uses the empty-body sentinel
	Credential    string
	Date          time.Time
	Expires       time.Duration
	HostShape     HostShape
	UpstreamHost  string // required when HostShape == HostShapeInParameter
	Scheme        string // upstream scheme; empty defaults to "https"
}

// Sign computes the signature for input under secret and returns the
// complete signed query string (all X-Sw-* parameters plus the caller's
// own non-signing query, ready to append to a URL). It does not itself
// build the full URL, since the scheme/host the caller reaches Signway
// at (HostShapeInParameter) may differ from the signed upstream host.
func Sign(input SignInput, secret []byte) (url.Values, error) {
	signedHeaderNames := make([]string, len(input.SignedHeaders))
	for i, h := range input.SignedHeaders {
		signedHeaderNames[i] = strings.ToLower(h.Name)
	}

	values := url.Values{}
	for _, q := range input.Query {
		values.Add(q.Name, q.Value)
	}
	values.Set("X-Sw-Algorithm", string(AlgorithmSW1HMACSHA256))
	values.Set("X-Sw-Credential", input.Credential)
	values.Set("X-Sw-Date", FormatSignDate(input.Date))
	values.Set("X-Sw-Expires", strconv.FormatInt(int64(input.Expires/time.Second), 10))
	values.Set("X-Sw-SignedHeaders", strings.Join(signedHeaderNames, ";"))
	if input.BodyHash != "" {
		values.Set("X-Sw-Body", input.BodyHash)
	}
	if input.HostShape == HostShapeInParameter {
		values.Set("X-Sw-Host", input.UpstreamHost)
	}
	if input.Scheme != "" && input.Scheme != "https" {
		values.Set("X-Sw-Scheme", input.Scheme)
	}

	host := input.Host
	if input.HostShape == HostShapeInParameter {
		host = input.UpstreamHost
	}

	canonical := CanonicalRequest{
		Method:        strings.ToUpper(input.Method),
		Host:          strings.ToLower(host),
		Path:          input.Path,
		Query:         queryParamsFromValues(values),
		SignedHeaders: input.SignedHeaders,
		BodyHash:      input.BodyHash,
	}
	canonicalStr, err := canonical.Canonicalize()
	if err != nil {
		return nil, err
	}

	sts := StringToSign(AlgorithmSW1HMACSHA256, FormatSignDate(input.Date), canonicalStr)
	signature := computeSignature(secret, sts)
	values.Set("X-Sw-Signature", signature)

	return values, nil
}

// computeSignature is HEX(HMAC-SHA256(secret, stringToSign)).
func computeSignature(secret []byte, stringToSign string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

func queryParamsFromValues(values url.Values) []QueryParam {
	params := make([]QueryParam, 0, len(values))
	for name, vs := range values {
		for _, v := range vs {
			params = append(params, QueryParam{Name: name, Value: v})
		}
	}
	return params
}
