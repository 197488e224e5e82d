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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/contract/eth"
)

const combinedArtifact = `{
  "contracts": {
    "contracts/Token.sol:Token": {
      "abi": [{"type":"constructor","inputs":[{"name":"supply","type":"uint256"}]},
        {"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}],
      "bin": "6080"
    },
    "contracts/Token.sol:Holder": {"abi": [], "bin": "6060"}
  },
  "version": "0.8.17"
}`

func Test_LoadBinding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.json")
	assert.NoError(t, os.WriteFile(path, []byte(combinedArtifact), 0644))

	_, err := LoadBinding(path, "", eth.NetworkTypeEth)
	assert.True(t, contract.ErrorCodeNotFoundBinding.Equals(err), "%+v", err)

	b, err := LoadBinding(path, "Token", eth.NetworkTypeEth)
	assert.NoError(t, err)
	assert.Equal(t, "Token", b.Name())
	assert.Contains(t, b.Doc(), "totalSupply")

	data, err := b.DeployData("0x1")
	assert.NoError(t, err)
	assert.Equal(t, "0x6080"+"0000000000000000000000000000000000000000000000000000000000000001", string(data))

	_, err = LoadBinding(path, "Token", "unknown")
	assert.Error(t, err)
}
