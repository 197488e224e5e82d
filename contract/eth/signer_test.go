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
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"

	"github.com/icon-project/contract-binder/contract"
)

func Test_LoadSigner(t *testing.T) {
	pk, err := crypto.GenerateKey()
	assert.NoError(t, err)
	key := &keystore.Key{
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}
	ks, err := keystore.EncryptKey(key, "secret", keystore.LightScryptN, keystore.LightScryptP)
	assert.NoError(t, err)

	dir := t.TempDir()
	ksFile := filepath.Join(dir, "keystore.json")
	secretFile := filepath.Join(dir, "keysecret")
	assert.NoError(t, os.WriteFile(ksFile, ks, 0600))
	assert.NoError(t, os.WriteFile(secretFile, []byte("secret\n"), 0600))

	s, err := LoadSigner(ksFile, secretFile)
	assert.NoError(t, err)
	assert.Equal(t, contract.Address(key.Address.Hex()), s.Address())

	hash := crypto.Keccak256([]byte("data"))
	sig, err := s.Sign(hash)
	assert.NoError(t, err)
	pub, err := crypto.SigToPub(hash, sig)
	assert.NoError(t, err)
	assert.Equal(t, key.Address, crypto.PubkeyToAddress(*pub))

	assert.NoError(t, os.WriteFile(secretFile, []byte("wrong"), 0600))
	_, err = LoadSigner(ksFile, secretFile)
	assert.Error(t, err)
}
