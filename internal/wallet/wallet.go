package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is the session account used as the sender of contract reads.
// Without a key it is read-only and reports the zero address.
type Wallet struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// New loads a wallet from a hex private key. An empty key yields a read-only wallet.
func New(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return &Wallet{}, nil
	}

	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return &Wallet{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}, nil
}

func (w *Wallet) Address() common.Address {
	return w.addr
}

func (w *Wallet) ReadOnly() bool {
	return w.priv == nil
}
