// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/readiness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, LatestVersion, seen)
	assert.Equal(t, LatestVersion, rec.Header().Get(Header))

	req := httptest.NewRequest("GET", "/api/v1/readiness", nil)
	req.Header.Set(Header, "1999-01-01")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported API version")
}

func TestFromContext_Default(t *testing.T) {
	assert.Equal(t, LatestVersion, FromContext(context.Background()))
	assert.Equal(t, "x", FromContext(WithContext(context.Background(), "x")))
}
