package evm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/keystore"
	"github.com/umbracle/ethgo/wallet"

	"github.com/consensus-shipyard/ipc-checkpointer/helper/hex"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const privateKeyLength = 32

var ErrKeyNotFound = errors.New("no private key for account")

// KeyStore holds the signing keys of the local accounts of an EVM subnet
type KeyStore struct {
	lock sync.RWMutex
	keys map[ethgo.Address]*wallet.Key
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: map[ethgo.Address]*wallet.Key{}}
}

// LoadKeyStore decrypts every v3 keystore file in dir. The password is read
// from passwordFile, an empty path means an empty password.
func LoadKeyStore(dir, passwordFile string) (*KeyStore, error) {
	ks := NewKeyStore()

	if dir == "" {
		return ks, nil
	}

	password := ""

	if passwordFile != "" {
		raw, err := os.ReadFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore password: %w", err)
		}

		password = string(bytes.TrimSpace(raw))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		key, err := readKeyFile(path, password)
		if err != nil {
			return nil, fmt.Errorf("keystore file %s: %w", path, err)
		}

		ks.Add(key)
	}

	return ks, nil
}

func readKeyFile(path, password string) (*wallet.Key, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dst, err := keystore.DecryptV3(content, password)
	if err != nil {
		return nil, err
	}

	// the encrypted payload is either the raw key or its hex form
	raw := dst
	if len(dst) != privateKeyLength {
		if raw, err = hex.DecodeHex(string(bytes.TrimSpace(dst))); err != nil {
			return nil, fmt.Errorf("failed to decode private key: %w", err)
		}
	}

	return wallet.NewWalletFromPrivKey(raw)
}

func (k *KeyStore) Add(key *wallet.Key) {
	k.lock.Lock()
	defer k.lock.Unlock()

	k.keys[key.Address()] = key
}

// Get returns the key of the account. Both the 0x and the f410 form are accepted.
func (k *KeyStore) Get(addr types.Address) (*wallet.Key, error) {
	eth, err := toEthAddress(addr)
	if err != nil {
		return nil, err
	}

	k.lock.RLock()
	defer k.lock.RUnlock()

	key, ok := k.keys[eth]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrKeyNotFound, addr)
	}

	return key, nil
}

// Accounts returns the accounts the store can sign for, in 0x form
func (k *KeyStore) Accounts() []types.Address {
	k.lock.RLock()
	defer k.lock.RUnlock()

	out := make([]types.Address, 0, len(k.keys))
	for addr := range k.keys {
		out = append(out, fromEthAddress(addr))
	}

	return out
}
