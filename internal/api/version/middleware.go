// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/json"
	"net/http"
)

// Middleware resolves the requested API version, stores it in the request
// context and echoes it in the response. Unknown versions get a 400.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.Header.Get(Header)
		if v == "" {
			v = LatestVersion
		}
		if !IsSupported(v) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "BAD_REQUEST",
					"message": "unsupported API version " + v,
					"details": map[string]interface{}{"supported": Supported},
				},
			})
			return
		}

		w.Header().Set(Header, v)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), v)))
	})
}
