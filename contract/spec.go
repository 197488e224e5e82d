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
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
)

const (
	EntryTypeFunction    = "function"
	EntryTypeEvent       = "event"
	EntryTypeConstructor = "constructor"

	StateMutabilityPure    = "pure"
	StateMutabilityView    = "view"
	StateMutabilityPayable = "payable"
)

var (
	specLogger = log.New()
)

func init() {
	specLogger.SetLevel(log.DebugLevel)
}

type Integer string

func (i Integer) clearPrefix() string {
	s := string(i)
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	return s
}

func (i Integer) AsUint64() (uint64, error) {
	return strconv.ParseUint(i.clearPrefix(), 16, 64)
}

func (i Integer) AsInt64() (int64, error) {
	return strconv.ParseInt(i.clearPrefix(), 16, 64)
}

func (i Integer) AsBigInt() (*big.Int, error) {
	s := i.clearPrefix()
	neg := strings.HasPrefix(string(i), "-0x")
	if neg {
		s = string(i)[3:]
	}
	r, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.New("fail to convert big.Int")
	}
	if neg {
		r.Neg(r)
	}
	return r, nil
}

func FromUint64(i uint64) Integer {
	return Integer("0x" + strconv.FormatUint(i, 16))
}

func FromInt64(i int64) Integer {
	if i < 0 {
		return Integer("-0x" + strconv.FormatUint(uint64(-i), 16))
	}
	return Integer("0x" + strconv.FormatInt(i, 16))
}

func FromBigInt(i *big.Int) Integer {
	if i.Sign() == 0 {
		return "0x0"
	}
	if i.Sign() < 0 {
		return Integer("-0x" + strings.TrimLeft(hex.EncodeToString(new(big.Int).Neg(i).Bytes()), "0"))
	}
	return Integer("0x" + strings.TrimLeft(hex.EncodeToString(i.Bytes()), "0"))
}

type Boolean bool
type String string
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

func (b *Bytes) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	if len(s) == 0 {
		*b = nil
		return nil
	}
	v, err := BytesOf(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

type Address string

// BlockID identifies a block for state queries: a tag (latest, pending, earliest)
// or a hex/decimal height. Empty means BlockLatest.
type BlockID string

const (
	BlockLatest   BlockID = "latest"
	BlockPending  BlockID = "pending"
	BlockEarliest BlockID = "earliest"
)

func (b BlockID) OrLatest() BlockID {
	if len(b) == 0 {
		return BlockLatest
	}
	return b
}

// Argument describes one typed input or output of an ABI entry.
type Argument struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Indexed      bool       `json:"indexed,omitempty"`
	Components   []Argument `json:"components,omitempty"`
}

func (a Argument) String() string {
	return a.format(false)
}

func (a Argument) format(withIndexed bool) string {
	var sb strings.Builder
	sb.WriteString(a.Type)
	if withIndexed && a.Indexed {
		sb.WriteString(" indexed")
	}
	if len(a.Name) > 0 {
		sb.WriteString(" ")
		sb.WriteString(a.Name)
	}
	return sb.String()
}

type Arguments []Argument

func (as Arguments) Types() []string {
	r := make([]string, len(as))
	for i, a := range as {
		r[i] = a.Type
	}
	return r
}

func (as Arguments) format(withIndexed bool) string {
	l := make([]string, len(as))
	for i, a := range as {
		l[i] = a.format(withIndexed)
	}
	return strings.Join(l, ", ")
}

func (as Arguments) clone() Arguments {
	if as == nil {
		return nil
	}
	r := make(Arguments, len(as))
	for i, a := range as {
		r[i] = a
		if a.Components != nil {
			r[i].Components = Arguments(a.Components).clone()
		}
	}
	return r
}

// ABIEntry is one element of an ABI definition as emitted by the compiler.
type ABIEntry struct {
	Type            string    `json:"type"`
	Name            string    `json:"name,omitempty"`
	Inputs          Arguments `json:"inputs"`
	Outputs         Arguments `json:"outputs,omitempty"`
	Constant        bool      `json:"constant,omitempty"`
	Anonymous       bool      `json:"anonymous,omitempty"`
	Payable         bool      `json:"payable,omitempty"`
	StateMutability string    `json:"stateMutability,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (e *ABIEntry) UnmarshalJSON(data []byte) error {
	type tEntry ABIEntry
	if err := json.Unmarshal(data, (*tEntry)(e)); err != nil {
		return err
	}
	switch e.StateMutability {
	case StateMutabilityPure, StateMutabilityView:
		e.Constant = true
	case StateMutabilityPayable:
		e.Payable = true
	}
	return nil
}

// ParseABI decodes the JSON form of an ABI definition, preserving entry order.
func ParseABI(b []byte) ([]ABIEntry, error) {
	var entries []ABIEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrapf(err, "fail to ParseABI err:%s", err.Error())
	}
	specLogger.Tracef("ParseABI entries:%d\n", len(entries))
	return entries, nil
}
