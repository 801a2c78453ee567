package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"

	"rfqsettle/core/types"
)

const keystoreVersion = 3

// encryptedKey is the on-disk envelope. The crypto section follows the
// Ethereum v3 keystore format and holds the encrypted Ed25519 seed.
type encryptedKey struct {
	Address types.Address       `json:"address"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
	Version int                 `json:"version"`
}

// SaveToKeystore writes the provided private key to a passphrase protected
// keystore file at the given path. If the parent directory does not exist it
// will be created with 0700 permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return saveToKeystore(path, key, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
}

func saveToKeystore(path string, key *PrivateKey, passphrase string, scryptN, scryptP int) error {
	if key == nil || len(key.PrivateKey) != ed25519.PrivateKeySize {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	sealed, err := keystore.EncryptDataV3(key.Seed(), []byte(passphrase), scryptN, scryptP)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(encryptedKey{
		Address: key.PubKey().Address(),
		Crypto:  sealed,
		Version: keystoreVersion,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts a keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var envelope encryptedKey
	if err := json.Unmarshal(keyJSON, &envelope); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	if envelope.Version != keystoreVersion {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d", envelope.Version)
	}

	seed, err := keystore.DecryptDataV3(envelope.Crypto, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if key.PubKey().Address() != envelope.Address {
		return nil, errors.New("crypto: keystore address does not match key")
	}
	return key, nil
}
