// File: internal/analysis/detect/hardcoded_jwt.go
package detect

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

// RuleHardcodedJWT flags JWT literals embedded in source. Unlike the taint
// rules it needs no source vocabulary: the token itself is the evidence.
const RuleHardcodedJWT = "hardcoded-jwt"

// jwtShape is fixed and known-safe, so the stdlib engine is fine here; the
// regexp2 timeout machinery is reserved for user-supplied patterns. No
// trailing boundary: alg=none tokens end with an empty signature segment.
var jwtShape = regexp.MustCompile(`\b([A-Za-z0-9\-_]{10,})\.([A-Za-z0-9\-_]{10,})\.([A-Za-z0-9\-_]*)`)

// weakSecrets is the short list tried against HMAC-signed tokens. A match
// means anyone can mint valid tokens.
var weakSecrets = []string{
	"secret", "password", "123456", "changeme", "admin",
	"key", "jwt_secret", "your-256-bit-secret",
}

// sensitiveClaimKeys mark payloads that leak credentials or PII.
var sensitiveClaimKeys = []string{
	"password", "secret", "apikey", "api_key", "authorization",
	"credential", "ssn", "credit",
}

type hardcodedJWTDetector struct {
	*BaseDetector
	cats core.Catalogues
	opts settings
}

func newHardcodedJWT(s settings, o Overlay, logger *zap.Logger) Detector {
	base := NewBaseDetector(
		RuleHardcodedJWT,
		"JSON Web Token committed to source code.",
		"Remove the token, rotate the signing key, and load credentials from the environment or a secret store.",
		[]string{"CWE-798", "CWE-321"},
		logger,
	)
	// Only the annotation vocabulary matters here; taint catalogues stay
	// empty.
	v := vocab{}.apply(o)
	return &hardcodedJWTDetector{
		BaseDetector: base,
		cats:         v.compile(s.timeout, base.Logger),
		opts:         s,
	}
}

func (d *hardcodedJWTDetector) Analyze(ctx context.Context, file *File) ([]schemas.Finding, error) {
	actx := d.opts.newContext(file, d.cats, core.Policy{}, d.Logger)

	var findings []schemas.Finding
	syntax.Walk(file.Tree.Root(), func(n *sitter.Node) bool {
		text, ok := syntax.StringLiteralValue(n, file.Tree.Source)
		if !ok || len(text) < 20 {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		for _, raw := range jwtShape.FindAllString(text, -1) {
			severity, reasons, parsed := d.inspectToken(raw)
			if !parsed {
				continue
			}
			if suppressed, _ := core.ShouldSuppress(n, actx); suppressed {
				file.RecordSuppression()
				continue
			}
			decision := core.SafetyDecision{
				Report:     true,
				Severity:   severity,
				Confidence: schemas.ConfidenceHigh,
				Reasons:    reasons,
				Taint: core.TaintVerdict{
					Tainted:    true,
					Source:     "hardcoded token literal",
					Role:       "credential",
					Confidence: schemas.ConfidenceHigh,
				},
			}
			desc := fmt.Sprintf(
				"A JWT is embedded in this file (%s). Committed tokens outlive deploys and leak through VCS history.",
				strings.Join(reasons, "; "),
			)
			findings = append(findings, d.emit(file, n, decision, "Hardcoded JWT", desc))
		}
		return true
	})
	return findings, ctx.Err()
}

// inspectToken decodes the candidate without verifying it and grades how
// bad the exposure is. Strings that merely look like tokens but do not
// decode are dropped.
func (d *hardcodedJWTDetector) inspectToken(raw string) (schemas.Severity, []string, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", nil, false
	}

	severity := schemas.SeverityHigh
	reasons := []string{"token literal in source"}

	alg, _ := token.Header["alg"].(string)
	switch {
	case strings.EqualFold(alg, "none"):
		severity = schemas.SeverityCritical
		reasons = append(reasons, "alg=none, signature not required")
	case strings.HasPrefix(strings.ToUpper(alg), "HS"):
		if secret, ok := d.crackHMAC(raw); ok {
			severity = schemas.SeverityCritical
			reasons = append(reasons, fmt.Sprintf("signed with guessable secret %q", secret))
		}
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		for key := range claims {
			if isSensitiveClaim(key) {
				reasons = append(reasons, fmt.Sprintf("payload carries sensitive claim %q", key))
				break
			}
		}
		if _, hasExp := claims["exp"]; !hasExp {
			reasons = append(reasons, "no expiry claim")
		}
	}
	return severity, reasons, true
}

// crackHMAC tries the weak-secret list against an HMAC-signed token.
func (d *hardcodedJWTDetector) crackHMAC(raw string) (string, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	for _, secret := range weakSecrets {
		token, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err == nil && token.Valid {
			return secret, true
		}
	}
	return "", false
}

func isSensitiveClaim(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveClaimKeys {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
