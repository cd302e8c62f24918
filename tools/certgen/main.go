// Package main generates the key material a PicTag server runs with: the
// bearer credential signing key, and a development CA with a server
// certificate for HTTPS, all written under the given directories.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/atinyakov/PicTag/internal/certgen"
)

func main() {
	keysDir := flag.String("keys", "keys", "directory for the signing key")
	certsDir := flag.String("certs", "certs", "directory for TLS certificates")
	host := flag.String("host", "localhost", "server host name or IP")
	flag.Parse()

	if err := run(*keysDir, *certsDir, *host); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✅ Keys generated into ./%s and ./%s\n", *keysDir, *certsDir)
}

// run writes keys/signing.pem, certs/ca.{crt,key} and certs/server.{crt,key}.
// An existing signing key or CA is reused so issued credentials and trusted
// client CA files stay valid.
func run(keysDir, certsDir, host string) error {
	if _, err := certgen.LoadOrCreateSigningKey(filepath.Join(keysDir, "signing.pem")); err != nil {
		return err
	}
	if err := os.MkdirAll(certsDir, 0o755); err != nil {
		return err
	}

	caCertPath := filepath.Join(certsDir, "ca.crt")
	caKeyPath := filepath.Join(certsDir, "ca.key")
	if _, err := os.Stat(caCertPath); os.IsNotExist(err) {
		caPEM, caKeyPEM, err := certgen.GenerateCA("PicTag CA")
		if err != nil {
			return err
		}
		if err := writePair(caCertPath, caKeyPath, caPEM, caKeyPEM); err != nil {
			return err
		}
	}

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(host, caCert, caKey)
	if err != nil {
		return err
	}
	return writePair(filepath.Join(certsDir, "server.crt"), filepath.Join(certsDir, "server.key"), certPEM, keyPEM)
}

// writePair writes a certificate (0644) and its private key (0600).
func writePair(certPath, keyPath string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	return nil
}
