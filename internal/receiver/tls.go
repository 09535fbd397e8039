package receiver

import "crypto/tls"

// tlsConfig builds the client TLS settings. Legacy mode re-enables TLS 1.0
// and the CBC/RSA suites some campus mail servers still require.
func tlsConfig(host string, legacy bool) *tls.Config {
	cfg := &tls.Config{ServerName: host}
	if !legacy {
		return cfg
	}
	cfg.MinVersion = tls.VersionTLS10
	for _, s := range tls.CipherSuites() {
		cfg.CipherSuites = append(cfg.CipherSuites, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		cfg.CipherSuites = append(cfg.CipherSuites, s.ID)
	}
	return cfg
}
