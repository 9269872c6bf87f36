// Package transport builds the HTTP client used to talk to the archive.
//
// The client applies a request timeout, a redirect limit, a User-Agent and
// optional extra headers, and can route all connections through a SOCKS5
// proxy:
//
//	hc, err := transport.NewHTTPClient(transport.Options{
//		Timeout:      time.Minute,
//		ProxyAddress: "127.0.0.1:1080",
//		UserAgent:    "digestfetch/1.0",
//	})
//
// CheckProxy can be called beforehand to fail fast when the proxy is down.
package transport
