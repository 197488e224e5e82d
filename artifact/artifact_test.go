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

package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/contract/eth"
)

const (
	counterABI = `[{"type":"constructor","inputs":[{"name":"start","type":"uint256"}]},` +
		`{"type":"event","name":"Incremented","inputs":[{"name":"value","type":"uint256","indexed":false}]},` +
		`{"type":"function","name":"increment","inputs":[],"outputs":[],"stateMutability":"nonpayable"},` +
		`{"type":"function","name":"value","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`
	metaArtifact = `{
  "code": "0x6080",
  "info": {"source": "contract Counter {}", "abiDefinition": ` + counterABI + `}
}`
	combinedArtifact = `{
  "contracts": {
    "contracts/Counter.sol:Counter": {"abi": ` + counterABI + `, "bin": "6080"},
    "contracts/Counter.sol:Empty": {"abi": [], "bin": "6060"}
  },
  "version": "0.8.17"
}`
	legacyCombinedArtifact = `{
  "contracts": {
    "Counter.sol:Counter": {"abi": "[{\"type\":\"function\",\"name\":\"value\",\"inputs\":[],\"outputs\":[{\"name\":\"\",\"type\":\"uint256\"}],\"constant\":true}]", "bin": "6080"}
  },
  "version": "0.4.24"
}`
	hardhatArtifactJSON = `{
  "_format": "hh-sol-artifact-1",
  "contractName": "Counter",
  "sourceName": "contracts/Counter.sol",
  "abi": ` + counterABI + `,
  "bytecode": "0x6080",
  "deployedBytecode": "0x6080"
}`
)

func Test_ParseMeta(t *testing.T) {
	as, err := Parse([]byte(metaArtifact), "")
	assert.NoError(t, err)
	if !assert.Len(t, as, 1) {
		return
	}
	a := as[0]
	assert.Equal(t, []byte("0x6080"), a.Code)
	assert.Equal(t, []byte("contract Counter {}"), a.Source)
	assert.Len(t, a.ABI, 4)

	b, err := a.Binding(&eth.Codec{})
	assert.NoError(t, err)
	assert.Equal(t, contract.FallbackName([]byte("0x6080")), b.Name())

	as, err = Parse([]byte(metaArtifact), "Counter")
	assert.NoError(t, err)
	b, err = as[0].Binding(&eth.Codec{})
	assert.NoError(t, err)
	assert.Equal(t, "Counter", b.Name())
	data, err := b.DeployData(1)
	assert.NoError(t, err)
	assert.Equal(t, "0x6080"+"0000000000000000000000000000000000000000000000000000000000000001", string(data))
}

func Test_ParseCombinedJSON(t *testing.T) {
	as, err := Parse([]byte(combinedArtifact), "ignored")
	assert.NoError(t, err)
	if !assert.Len(t, as, 2) {
		return
	}
	assert.Equal(t, "Counter", as[0].Name)
	assert.Equal(t, []byte("0x6080"), as[0].Code)
	assert.Empty(t, as[0].Source)
	assert.Len(t, as[0].ABI, 4)
	assert.Equal(t, "Empty", as[1].Name)
	assert.Empty(t, as[1].ABI)

	as, err = Parse([]byte(legacyCombinedArtifact), "")
	assert.NoError(t, err)
	if assert.Len(t, as, 1) {
		assert.Equal(t, "Counter", as[0].Name)
		assert.True(t, as[0].ABI[0].Constant)
	}
}

func Test_ParseHardhat(t *testing.T) {
	as, err := Parse([]byte(hardhatArtifactJSON), "")
	assert.NoError(t, err)
	if !assert.Len(t, as, 1) {
		return
	}
	b, err := as[0].Binding(&eth.Codec{})
	assert.NoError(t, err)
	assert.Equal(t, "Counter", b.Name())
	assert.Empty(t, b.Config().Source())
	assert.Len(t, b.Config().Functions(), 2)
	assert.Len(t, b.Config().Events(), 1)
}

func Test_ParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`[]`), "")
	assert.Error(t, err)
	_, err = Parse([]byte(`{"abi":[]}`), "")
	assert.Error(t, err)
	_, err = Parse([]byte(`{"code":"","info":{"abiDefinition":[]}}`), "")
	assert.Error(t, err)
}

func Test_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Counter.json")
	assert.NoError(t, os.WriteFile(path, []byte(hardhatArtifactJSON), 0644))
	as, err := LoadFile(path, "")
	assert.NoError(t, err)
	assert.Len(t, as, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Error(t, err)
}
