// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"net/url"
	"strings"
)

// SignalKind classifies what an inbound link asks the flow to do.
type SignalKind int

// Signal kinds, in classification priority order after SignalNone.
const (
	SignalNone SignalKind = iota
	SignalError
	SignalRecoveryCode
	SignalRecoveryToken
)

// String returns the wire-style name of the kind.
func (k SignalKind) String() string {
	switch k {
	case SignalError:
		return "ERROR"
	case SignalRecoveryCode:
		return "RECOVERY_CODE"
	case SignalRecoveryToken:
		return "RECOVERY_TOKEN"
	default:
		return "NONE"
	}
}

// IsRecovery reports whether the kind carries a credential to establish.
func (k SignalKind) IsRecovery() bool {
	return k == SignalRecoveryCode || k == SignalRecoveryToken
}

// URL parameters the identity service uses on redirect links.
const (
	ParamCode             = "code"
	ParamAccessToken      = "access_token"
	ParamRefreshToken     = "refresh_token"
	ParamType             = "type"
	ParamError            = "error"
	ParamErrorCode        = "error_code"
	ParamErrorDescription = "error_description"

	recoveryType = "recovery"
)

// signalParams is every parameter removed from the visible address once a
// link has been classified. ParamType is generic: it is only removed when the
// link carries an access token or when it names a recovery.
var signalParams = []string{
	ParamCode,
	ParamAccessToken,
	ParamRefreshToken,
	ParamError,
	ParamErrorCode,
	ParamErrorDescription,
	"expires_in",
	"expires_at",
	"token_type",
}

// Signal is the classification of a redirect URL. It is a value type: once
// returned by Classify it never changes.
type Signal struct {
	Kind             SignalKind
	Code             string
	Token            string
	RefreshToken     string
	Error            string
	ErrorCode        string
	ErrorDescription string

	// HadCredential is set on an ERROR signal whose link also carried a code
	// or an access token. The credential itself is dropped.
	HadCredential bool
}

// HasCredential reports whether the signal carries a code or a token.
func (s Signal) HasCredential() bool {
	return s.Code != "" || s.Token != ""
}

// linkParams is the two physical sources of a link's parameters. Lookups fall
// back from query to fragment per key; the sources are never merged.
type linkParams struct {
	query    url.Values
	fragment url.Values
}

func (p linkParams) get(key string) string {
	if v := strings.TrimSpace(p.query.Get(key)); v != "" {
		return v
	}
	return strings.TrimSpace(p.fragment.Get(key))
}

func parseLinkParams(rawURL string) (linkParams, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return linkParams{}, false
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		query = url.Values{}
	}
	fragment := url.Values{}
	if frag := u.EscapedFragment(); frag != "" {
		if parsed, fragErr := url.ParseQuery(strings.TrimPrefix(frag, "?")); fragErr == nil {
			fragment = parsed
		}
	}
	return linkParams{query: query, fragment: fragment}, true
}

// Classify inspects the query string and the fragment of rawURL and returns
// the signal it carries. Error parameters win over a code, and a code wins
// over a legacy recovery token. Classification never fails; anything
// unrecognised or unparseable is SignalNone.
func Classify(rawURL string) Signal {
	params, ok := parseLinkParams(rawURL)
	if !ok {
		return Signal{Kind: SignalNone}
	}

	errName := params.get(ParamError)
	errCode := params.get(ParamErrorCode)
	errDesc := params.get(ParamErrorDescription)
	if errName != "" || errCode != "" || errDesc != "" {
		return Signal{
			Kind:             SignalError,
			Error:            errName,
			ErrorCode:        errCode,
			ErrorDescription: errDesc,
			HadCredential:    params.get(ParamCode) != "" || params.get(ParamAccessToken) != "",
		}
	}

	if code := params.get(ParamCode); code != "" {
		return Signal{Kind: SignalRecoveryCode, Code: code}
	}

	token := params.get(ParamAccessToken)
	if token != "" && strings.EqualFold(params.get(ParamType), recoveryType) {
		return Signal{
			Kind:         SignalRecoveryToken,
			Token:        token,
			RefreshToken: params.get(ParamRefreshToken),
		}
	}

	return Signal{Kind: SignalNone}
}

// HasSignalParams reports whether rawURL carries any parameter StripSignalParams
// would remove.
func HasSignalParams(rawURL string) bool {
	return StripSignalParams(rawURL) != strings.TrimSpace(rawURL)
}

// StripSignalParams removes the link signal vocabulary from both the query
// string and the fragment so that a reload or a shared address cannot replay
// the flow. Unrelated parameters are kept. Unparseable input is returned as is.
func StripSignalParams(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	var query, fragValues url.Values
	if u.RawQuery != "" {
		if parsed, qErr := url.ParseQuery(u.RawQuery); qErr == nil {
			query = parsed
		}
	}
	fragment := u.EscapedFragment()
	if fragment != "" {
		if parsed, fErr := url.ParseQuery(strings.TrimPrefix(fragment, "?")); fErr == nil {
			fragValues = parsed
		}
	}
	withType := query.Has(ParamAccessToken) || fragValues.Has(ParamAccessToken)

	changed := false
	if query != nil && removeSignalParams(query, withType) {
		u.RawQuery = query.Encode()
		changed = true
	}
	if fragValues != nil && removeSignalParams(fragValues, withType) {
		fragment = fragValues.Encode()
		changed = true
	}
	if !changed {
		return trimmed
	}

	u.Fragment = ""
	u.RawFragment = ""
	out := u.String()
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

// removeSignalParams deletes the signal keys from values. The type key goes
// too when withType is set or when it is a recovery type.
func removeSignalParams(values url.Values, withType bool) bool {
	removed := false
	for _, key := range signalParams {
		if _, ok := values[key]; ok {
			values.Del(key)
			removed = true
		}
	}
	if _, ok := values[ParamType]; ok && (withType || strings.EqualFold(strings.TrimSpace(values.Get(ParamType)), recoveryType)) {
		values.Del(ParamType)
		removed = true
	}
	return removed
}
