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

package contract

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/icon-project/btp2/common/errors"
	"golang.org/x/crypto/sha3"
)

const (
	fallbackNamePrefix = "Unknown-"
	fallbackDigestSize = 16
)

// BindingConfig is the class-level data shared by every Instance of a Binding.
type BindingConfig struct {
	code        []byte
	source      []byte
	abi         []ABIEntry
	functions   []*FunctionDescriptor
	events      []*EventDescriptor
	constructor *ConstructorDescriptor
}

func (c *BindingConfig) Code() []byte {
	return append([]byte(nil), c.code...)
}

func (c *BindingConfig) Source() []byte {
	return append([]byte(nil), c.source...)
}

func (c *BindingConfig) ABI() []ABIEntry {
	return append([]ABIEntry(nil), c.abi...)
}

func (c *BindingConfig) Functions() []*FunctionDescriptor {
	return append([]*FunctionDescriptor(nil), c.functions...)
}

func (c *BindingConfig) Events() []*EventDescriptor {
	return append([]*EventDescriptor(nil), c.events...)
}

func (c *BindingConfig) Constructor() *ConstructorDescriptor {
	return c.constructor
}

// Binding is the synthesized proxy type for one ABI. It is immutable once
// created and produces Instances bound to a deployed address.
type Binding struct {
	name  string
	doc   string
	cfg   *BindingConfig
	codec Codec
}

// NewBinding parses abi and packages it with code and source. An empty name
// is replaced by a name derived from code, so equal bytecode gives equal names.
func NewBinding(codec Codec, code, source []byte, abi []ABIEntry, name string) (*Binding, error) {
	sigs, err := ParseSignatures(abi)
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		name = FallbackName(code)
	}
	b := &Binding{
		name: name,
		cfg: &BindingConfig{
			code:        append([]byte(nil), code...),
			source:      append([]byte(nil), source...),
			abi:         append([]ABIEntry(nil), abi...),
			functions:   sigs.Functions,
			events:      sigs.Events,
			constructor: sigs.Constructor,
		},
		codec: codec,
	}
	b.doc = renderDoc(name, sigs.Events, sigs.Functions)
	specLogger.Debugf("NewBinding name:%s functions:%d events:%d constructor:%v\n",
		name, len(sigs.Functions), len(sigs.Events), sigs.Constructor != nil)
	return b, nil
}

func FallbackName(code []byte) string {
	h := sha3.Sum256(code)
	return fallbackNamePrefix + hex.EncodeToString(h[:fallbackDigestSize])
}

func renderDoc(name string, events []*EventDescriptor, functions []*FunctionDescriptor) string {
	el := make([]string, len(events))
	for i, e := range events {
		el[i] = e.String()
	}
	fl := make([]string, len(functions))
	for i, f := range functions {
		fl[i] = f.String()
	}
	return fmt.Sprintf("contract %s {\n// Events\n%s\n\n// Functions\n%s\n}\n",
		name, strings.Join(el, "\n"), strings.Join(fl, "\n"))
}

func (b *Binding) Name() string {
	return b.name
}

// Doc returns a human readable summary listing events then functions.
func (b *Binding) Doc() string {
	return b.doc
}

func (b *Binding) Config() *BindingConfig {
	return b.cfg
}

func (b *Binding) Codec() Codec {
	return b.codec
}

// DeployData returns the payload for creating the contract: the bytecode,
// followed by the hex of the ABI-encoded constructor arguments if any.
func (b *Binding) DeployData(args ...interface{}) ([]byte, error) {
	data := b.cfg.Code()
	if len(args) == 0 {
		return data, nil
	}
	if b.cfg.constructor == nil {
		return nil, ErrorCodeMissingConstructor.Errorf(
			"contract %s does not have a constructor, args:%d", b.name, len(args))
	}
	if b.codec == nil {
		return nil, errors.Errorf("contract %s has no codec", b.name)
	}
	enc, err := b.codec.EncodeArguments(b.cfg.constructor.inputs, args)
	if err != nil {
		return nil, err
	}
	return append(data, b.codec.EncodeHex(enc)...), nil
}

// New binds a fresh Instance to address using client for RPC.
func (b *Binding) New(address Address, client Client) *Instance {
	bc := &BindingContext{
		address:   address,
		client:    client,
		codec:     b.codec,
		functions: make(map[string]*BoundFunction, len(b.cfg.functions)),
		events:    make(map[string]*BoundEvent, len(b.cfg.events)),
	}
	for _, f := range b.cfg.functions {
		bc.functions[f.name] = &BoundFunction{FunctionDescriptor: f, Options: make(Options)}
	}
	for _, e := range b.cfg.events {
		bc.events[e.name] = &BoundEvent{EventDescriptor: e}
	}
	return &Instance{binding: b, ctx: bc}
}
