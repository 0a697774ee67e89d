package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

const sshKeyType = "ed25519"

// GenerateKeypair writes a fresh ed25519 private key in OpenSSH format to dir.
// Returns the private key path and the public key in authorized_keys format.
func GenerateKeypair(dir string) (privateKeyPath, publicKey string, err error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate %s key: %w", sshKeyType, err)
	}

	block, err := ssh.MarshalPrivateKey(privateKey, "ec2bastion ephemeral key")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	privateKeyPath = filepath.Join(dir, "id_"+sshKeyType)
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive public key: %w", err)
	}

	return privateKeyPath, authorizedKey(signer.PublicKey()), nil
}

// GetPublicKey returns the public key for an existing private key file.
// Passphrase-protected keys are not decrypted; their .pub companion is read instead.
func GetPublicKey(privateKeyPath string) (string, error) {
	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return authorizedKey(signer.PublicKey()), nil
	}

	var passphraseErr *ssh.PassphraseMissingError
	if !errors.As(err, &passphraseErr) {
		return "", fmt.Errorf("failed to parse private key %s: %w", privateKeyPath, err)
	}

	if passphraseErr.PublicKey != nil {
		return authorizedKey(passphraseErr.PublicKey), nil
	}

	pub, err := os.ReadFile(privateKeyPath + ".pub")
	if err != nil {
		return "", fmt.Errorf("key %s is encrypted and has no public key file: %w", privateKeyPath, err)
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key %s.pub: %w", privateKeyPath, err)
	}

	return authorizedKey(key), nil
}

func authorizedKey(key ssh.PublicKey) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
}
