// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"net/http"
	"strings"

	"github.com/taibuivan/storageup/internal/platform/constants"
)

// # Token Carriers

// Carrier identifies the channel a session token arrived on.
type Carrier string

const (
	CarrierNone        Carrier = ""
	CarrierAdminCookie Carrier = "adminCookie"
	CarrierUserCookie  Carrier = "userCookie"
	CarrierBearer      Carrier = "authorizationHeader"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID  string
	Email   string
	Roles   RoleSet
	Carrier Carrier
}

// # Extraction

// Extractor pulls a candidate token from one carrier. Extract returns "" when absent.
type Extractor struct {
	Carrier Carrier
	Extract func(request *http.Request) string
}

// CookieExtractor reads the named cookie.
func CookieExtractor(carrier Carrier, name string) Extractor {
	return Extractor{
		Carrier: carrier,
		Extract: func(request *http.Request) string {
			cookie, err := request.Cookie(name)
			if err != nil {
				return ""
			}
			return cookie.Value
		},
	}
}

// BearerExtractor reads an "Authorization: Bearer <token>" header.
func BearerExtractor() Extractor {
	return Extractor{
		Carrier: CarrierBearer,
		Extract: func(request *http.Request) string {
			header := request.Header.Get(constants.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return ""
			}
			return strings.TrimSpace(token)
		},
	}
}

// DefaultExtractors lists the carriers in precedence order. The admin cookie
// comes first because it signals an elevated session.
func DefaultExtractors() []Extractor {
	return []Extractor{
		CookieExtractor(CarrierAdminCookie, constants.AdminTokenCookieName),
		CookieExtractor(CarrierUserCookie, constants.UserTokenCookieName),
		BearerExtractor(),
	}
}

// Resolver tries its extractors in order; the first non-empty candidate wins.
type Resolver struct {
	extractors []Extractor
}

// NewResolver builds a [Resolver]. With no extractors it uses [DefaultExtractors].
func NewResolver(extractors ...Extractor) *Resolver {
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	return &Resolver{extractors: extractors}
}

// Extract returns the first candidate token and its carrier, or ("", CarrierNone).
func (resolver *Resolver) Extract(request *http.Request) (string, Carrier) {
	for _, extractor := range resolver.extractors {
		if token := extractor.Extract(request); token != "" {
			return token, extractor.Carrier
		}
	}
	return "", CarrierNone
}
