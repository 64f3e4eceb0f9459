package signway

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// requiredParams lists the X-Sw-* parameters that must be present
// exactly once in every signed URL.
var requiredParams = []string{
	"X-Sw-Algorithm",
	"X-Sw-Credential",
	"X-Sw-Date",
	"X-Sw-Expires",
	"X-Sw-SignedHeaders",
	"X-Sw-Signature",
}

// ParseParams extracts and validates the X-Sw-* signing parameters from
// a request's query values. It returns FailureMalformed for any missing,
// duplicated, or unparseable required parameter.
func ParseParams(query url.Values, shape HostShape) (*SignedURLParams, *VerifyError) {
	for _, name := range requiredParams {
		if len(query[name]) != 1 {
			return nil, newVerifyError(FailureMalformed, "malformed signed URL",
				"parameter %q missing or duplicated", name)
		}
	}

	date, err := ParseSignDate(query.Get("X-Sw-Date"))
	if err != nil {
		return nil, newVerifyError(FailureMalformed, "malformed signed URL",
			"X-Sw-Date %q does not parse: %v", query.Get("X-Sw-Date"), err)
	}

	expiresSeconds, err := strconv.ParseInt(query.Get("X-Sw-Expires"), 10, 64)
	if err != nil || expiresSeconds < 1 {
		return nil, newVerifyError(FailureMalformed, "malformed signed URL",
			"X-Sw-Expires %q must be a positive integer", query.Get("X-Sw-Expires"))
	}

	signedHeaders := splitSignedHeaders(query.Get("X-Sw-SignedHeaders"))

	bodyHash := ""
	if vs, ok := query["X-Sw-Body"]; ok {
		if len(vs) != 1 {
			return nil, newVerifyError(FailureMalformed, "malformed signed URL",
				"parameter %q duplicated", "X-Sw-Body")
		}
		if !isHex(vs[0]) {
			return nil, newVerifyError(FailureMalformed, "malformed signed URL",
				"X-Sw-Body is not hex: %q", vs[0])
		}
		bodyHash = strings.ToLower(vs[0])
	}

	signature := query.Get("X-Sw-Signature")
	if !isHex(signature) {
		return nil, newVerifyError(FailureMalformed, "malformed signed URL",
			"X-Sw-Signature is not hex: %q", signature)
	}

	params := &SignedURLParams{
		Algorithm:     Algorithm(query.Get("X-Sw-Algorithm")),
		Credential:    query.Get("X-Sw-Credential"),
		Date:          date,
		Expires:       time.Duration(expiresSeconds) * time.Second,
		SignedHeaders: signedHeaders,
		Body:          bodyHash,
		Signature:     strings.ToLower(signature),
	}

	if shape == HostShapeInParameter {
		if len(query["X-Sw-Host"]) != 1 || query.Get("X-Sw-Host") == "" {
			return nil, newVerifyError(FailureMalformed, "malformed signed URL",
				"X-Sw-Host is required under the host-in-parameter deployment shape")
		}
		params.Host = query.Get("X-Sw-Host")
	}

	params.Scheme = "https"
	if vs, ok := query["X-Sw-Scheme"]; ok {
		if len(vs) != 1 || (vs[0] != "http" && vs[0] != "https") {
			return nil, newVerifyError(FailureMalformed, "malformed signed URL",
				"X-Sw-Scheme must be exactly one of \"http\" or \"https\"")
		}
		params.Scheme = vs[0]
	}

	return params, nil
}

// splitSignedHeaders accepts either ';' or ':' as the delimiter between
// header names, per spec §3 ("semicolon- or colon-delimited"), and
// lowercases each name.
func splitSignedHeaders(raw string) []string {
	if raw == "" {
		return nil
	}
	sep := ";"
	if strings.Contains(raw, ":") && !strings.Contains(raw, ";") {
		sep = ":"
	}
	parts := strings.Split(raw, sep)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if _, ok := hexVal(s[i]); !ok {
			return false
		}
	}
	return true
}
