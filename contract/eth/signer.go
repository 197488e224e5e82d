/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package eth

import (
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/icon-project/btp2/common/errors"

	"github.com/icon-project/contract-binder/contract"
)

// Signer signs transaction hashes returned with contract.ErrorCodeRequireSignature.
type Signer struct {
	key *ecdsa.PrivateKey
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner decrypts a keystore file with the passphrase stored in secret.
func LoadSigner(keystoreFile, secretFile string) (*Signer, error) {
	ks, err := os.ReadFile(keystoreFile)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to ReadFile err:%s", err.Error())
	}
	pw, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to ReadFile err:%s", err.Error())
	}
	key, err := keystore.DecryptKey(ks, strings.TrimSpace(string(pw)))
	if err != nil {
		return nil, errors.Wrapf(err, "fail to DecryptKey err:%s", err.Error())
	}
	return NewSigner(key.PrivateKey), nil
}

func (s *Signer) Address() contract.Address {
	return contract.Address(crypto.PubkeyToAddress(s.key.PublicKey).Hex())
}

func (s *Signer) Sign(data []byte) ([]byte, error) {
	sig, err := crypto.Sign(data, s.key)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to Sign err:%s", err.Error())
	}
	return sig, nil
}
