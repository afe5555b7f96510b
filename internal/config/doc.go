// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Missing fields take the defaults in defaults.go; the result is checked with
// validator struct tags plus cross-field rules before use.
//
//	transport:
//	  url: https://tracking.example.com
//	  transports: [websocket, polling]
//	  dialect: legacy
//	subscriptions: [DXB-CX-36357, DXB-DX-36359]
//	server:
//	  addr: 127.0.0.1:8080
package config
