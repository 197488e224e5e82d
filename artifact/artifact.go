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
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/compiler"
	"github.com/icon-project/btp2/common/errors"

	"github.com/icon-project/contract-binder/contract"
)

// Artifact is one compiled contract: its bytecode text, source and ABI.
// Source is empty for layouts which carry no source text.
type Artifact struct {
	Name   string
	Code   []byte
	Source []byte
	ABI    []contract.ABIEntry
}

func (a *Artifact) Binding(codec contract.Codec) (*contract.Binding, error) {
	return contract.NewBinding(codec, a.Code, a.Source, a.ABI, a.Name)
}

type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// Parse reads compiler output in one of the supported layouts:
//   - single contract meta {"code", "info": {"abiDefinition", "source"}}
//   - solc --combined-json {"contracts": {"file:Name": {"abi", "bin"}}}
//   - hardhat artifact {"contractName", "abi", "bytecode"}
//
// name is only used for the single contract meta, which carries none.
func Parse(b []byte, name string) ([]*Artifact, error) {
	keys := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, errors.Wrapf(err, "fail to Unmarshal err:%s", err.Error())
	}
	if _, ok := keys["contracts"]; ok {
		return parseCombinedJSON(b)
	}
	if _, ok := keys["contractName"]; ok {
		return parseHardhat(b)
	}
	if _, ok := keys["info"]; ok {
		c := &compiler.Contract{}
		if err := json.Unmarshal(b, c); err != nil {
			return nil, errors.Wrapf(err, "fail to Unmarshal err:%s", err.Error())
		}
		a, err := newArtifact(name, c)
		if err != nil {
			return nil, err
		}
		return []*Artifact{a}, nil
	}
	return nil, errors.New("unknown artifact format")
}

func LoadFile(path string, name string) ([]*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to ReadFile err:%s", err.Error())
	}
	return Parse(b, name)
}

func parseCombinedJSON(b []byte) ([]*Artifact, error) {
	contracts, err := compiler.ParseCombinedJSON(b, "", "", "", "")
	if err != nil {
		return nil, errors.Wrapf(err, "fail to ParseCombinedJSON err:%s", err.Error())
	}
	names := make([]string, 0, len(contracts))
	for k := range contracts {
		names = append(names, k)
	}
	sort.Strings(names)
	ret := make([]*Artifact, 0, len(names))
	for _, k := range names {
		// keys are of form "file:Name"
		idx := strings.LastIndex(k, ":")
		c := contracts[k]
		a, err := newArtifact(k[idx+1:], c)
		if err != nil {
			return nil, errors.Wrapf(err, "fail to parse contract:%s err:%s", k, err.Error())
		}
		ret = append(ret, a)
	}
	return ret, nil
}

func parseHardhat(b []byte) ([]*Artifact, error) {
	h := &hardhatArtifact{}
	if err := json.Unmarshal(b, h); err != nil {
		return nil, errors.Wrapf(err, "fail to Unmarshal err:%s", err.Error())
	}
	entries, err := contract.ParseABI(h.ABI)
	if err != nil {
		return nil, err
	}
	return []*Artifact{{
		Name:   h.ContractName,
		Code: []byte(h.Bytecode),
		ABI:  entries,
	}}, nil
}

func newArtifact(name string, c *compiler.Contract) (*Artifact, error) {
	if len(c.Code) == 0 {
		return nil, errors.New("empty code")
	}
	var (
		b   []byte
		err error
	)
	// abiDefinition is a JSON string in older compiler output
	if s, ok := c.Info.AbiDefinition.(string); ok {
		b = []byte(s)
	} else if b, err = json.Marshal(c.Info.AbiDefinition); err != nil {
		return nil, errors.Wrapf(err, "fail to Marshal err:%s", err.Error())
	}
	entries, err := contract.ParseABI(b)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Name:   name,
		Code:   []byte(c.Code),
		Source: []byte(c.Info.Source),
		ABI:    entries,
	}, nil
}
