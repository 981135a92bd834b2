package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Rule is one named pattern. Replacement defaults to [REDACTED:<ID>].
type Rule struct {
	ID          string
	Regex       string
	Replacement string
}

type compiled struct {
	name string
	re   *regexp.Regexp
	repl string
}

var builtin = []compiled{
	{"github_token", regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{10,}\b|\bgithub_pat_[A-Za-z0-9_]{20,}\b`), "[REDACTED:GITHUB_TOKEN]"},
	{"bearer_token", regexp.MustCompile(`(?i)(Authorization:\s*Bearer\s+)[A-Za-z0-9._~+/=-]{16,}`), "${1}[REDACTED:BEARER_TOKEN]"},
	{"aws_access_key_id", regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`), "[REDACTED:AWS_ACCESS_KEY_ID]"},
	{"url_query_secret", regexp.MustCompile(`(?i)([?&](?:token|access_token|key|api_key|signature|sig|x-amz-signature|auth)=)[^&\s#]+`), "${1}REDACTED"},
	{"private_key", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED:PRIVATE_KEY]"},
}

// sensitiveQuery lists query keys whose values are replaced in URLs.
var sensitiveQuery = []string{"token", "access_token", "key", "api_key", "signature", "sig", "x-amz-signature", "auth"}

type Redactor struct {
	rules []compiled
}

// New builds a redactor from the built-in rules plus extra. Extra rules must
// already be validated; invalid regexes are skipped.
func New(extra ...Rule) *Redactor {
	r := &Redactor{rules: append([]compiled(nil), builtin...)}
	for _, e := range extra {
		re, err := regexp.Compile(e.Regex)
		if err != nil {
			continue
		}
		repl := e.Replacement
		if repl == "" {
			repl = "[REDACTED:" + strings.ToUpper(e.ID) + "]"
		}
		r.rules = append(r.rules, compiled{name: e.ID, re: re, repl: repl})
	}
	return r
}

var defaultRedactor = New()

// Text applies the built-in rules.
func Text(s string) string { return defaultRedactor.Text(s) }

// URL redacts credentials in a URL string using the built-in rules.
func URL(raw string) string { return defaultRedactor.URL(raw) }

// Text applies every rule in order.
func (r *Redactor) Text(s string) string {
	for _, c := range r.rules {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	return s
}

// URL strips userinfo passwords and sensitive query values, then applies the
// text rules. Unparseable input is treated as plain text.
func (r *Redactor) URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return r.Text(raw)
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for k := range q {
			for _, s := range sensitiveQuery {
				if strings.EqualFold(k, s) {
					q.Set(k, "REDACTED")
					changed = true
				}
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	return r.Text(u.String())
}
