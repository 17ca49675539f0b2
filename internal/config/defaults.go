// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

// DefaultServices returns the local model stack: the inference runtime,
// the model-serving stack and the application API server.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{
			Name:    "ollama",
			Command: []interface{}{"ollama", "serve"},
			Launch:  LaunchAmbient,
			Health:  HealthConfig{URL: "http://localhost:11434/api/tags"},
		},
		{
			Name: "llama-stack",
			Command: []interface{}{
				"llama", "stack", "build",
				"--template", "ollama",
				"--image-type", "venv",
				"--image-name", "llama-app-server",
				"--run",
			},
			Launch: LaunchAlways,
			Env: map[string]string{
				"INFERENCE_MODEL":              "llama3.2:3b",
				"SSL_CERT_FILE":                "/etc/ssl/cert.pem",
				"NODE_TLS_REJECT_UNAUTHORIZED": "1",
			},
			Health: HealthConfig{URL: "http://localhost:8321/v1/models"},
		},
		{
			Name: "backend",
			Command: []interface{}{
				"uvicorn", "backend.api.fastapi_server:app",
				"--host", "127.0.0.1",
				"--port", "8000",
			},
			Launch: LaunchAlways,
			Health: HealthConfig{URL: "http://localhost:8000/healthz"},
		},
	}
}

// SampleHJSON is the commented configuration written by "papertalk init".
const SampleHJSON = `{
  version: "1.0"
  project: {
    name: "papertalk"
    description: "Summarize a PDF or URL and chat about it"
  }

  // Control API used by papertalk-ctl and the UI.
  server: {
    host: "127.0.0.1"
    port: 8765
    // Browser origins allowed to call the API, e.g. a UI dev server.
    // allowed_origins: ["http://localhost:3000"]
  }

  readiness: {
    // How often each service's health endpoint is polled.
    interval: "1s"
    // Log a warning if a service is still not ready after this long.
    // warn_after: "2m"
  }

  logging: {
    level: "info"
    format: "text"
  }

  // Edits to this file are reported while papertalk runs; restart to apply.
  // watch: { disabled: true }

  services: [
    {
      // Reuse a runtime that is already serving; start one otherwise.
      name: "ollama"
      command: ["ollama", "serve"]
      launch: "ambient"
      health: { url: "http://localhost:11434/api/tags" }
      // Also count a running "ollama" process as already serving.
      // detect: { process: "ollama" }
    }
    {
      name: "llama-stack"
      command: ["llama", "stack", "build", "--template", "ollama", "--image-type", "venv", "--image-name", "llama-app-server", "--run"]
      env: {
        INFERENCE_MODEL: "llama3.2:3b"
        SSL_CERT_FILE: "/etc/ssl/cert.pem"
        NODE_TLS_REJECT_UNAUTHORIZED: "1"
      }
      health: { url: "http://localhost:8321/v1/models" }
    }
    {
      name: "backend"
      command: ["uvicorn", "backend.api.fastapi_server:app", "--host", "127.0.0.1", "--port", "8000"]
      work_dir: "{{.ConfigDir}}"
      health: { url: "http://localhost:8000/healthz" }
    }
  ]
}
`
