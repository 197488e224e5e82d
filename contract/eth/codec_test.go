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
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/icon-project/contract-binder/contract"
)

const (
	tokenABI = `[
  {"type":"constructor","inputs":[{"name":"supply","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"Memo","anonymous":false,"inputs":[
    {"name":"note","type":"string","indexed":true},
    {"name":"tag","type":"bytes4","indexed":false}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"position","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"p","type":"tuple","components":[
     {"name":"amount","type":"uint256"},{"name":"open","type":"bool"}]}]},
  {"type":"function","name":"delta","stateMutability":"pure",
   "inputs":[{"name":"d","type":"int8"}],"outputs":[{"name":"","type":"int8"}]}
]`
	addrA = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	addrB = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

var (
	codec = &Codec{}
)

func mustSignatures(t *testing.T, s string) *contract.Signatures {
	entries, err := contract.ParseABI([]byte(s))
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	sigs, err := contract.ParseSignatures(entries)
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	return sigs
}

func word(hex string) string {
	return strings.Repeat("0", 64-len(hex)) + hex
}

func functionOf(sigs *contract.Signatures, name string) *contract.FunctionDescriptor {
	for _, f := range sigs.Functions {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func eventOf(sigs *contract.Signatures, name string) *contract.EventDescriptor {
	for _, e := range sigs.Events {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

func Test_CodecEncodeArguments(t *testing.T) {
	sigs := mustSignatures(t, tokenABI)

	b, err := codec.EncodeArguments(sigs.Constructor.Inputs(), []interface{}{1})
	assert.NoError(t, err)
	assert.Equal(t, word("1"), codec.EncodeHex(b))

	b, err = codec.EncodeArguments(sigs.Constructor.Inputs(), []interface{}{"0x64"})
	assert.NoError(t, err)
	assert.Equal(t, word("64"), codec.EncodeHex(b))

	_, err = codec.EncodeArguments(sigs.Constructor.Inputs(), []interface{}{1, 2})
	assert.True(t, contract.ErrorCodeInvalidParam.Equals(err), "%+v", err)

	_, err = codec.EncodeArguments(sigs.Constructor.Inputs(), []interface{}{-1})
	assert.True(t, contract.ErrorCodeInvalidParam.Equals(err), "%+v", err)
}

func Test_CodecEncodeSignedRange(t *testing.T) {
	in := contract.Arguments{{Name: "d", Type: "int8"}}
	for _, v := range []int{-128, -1, 0, 127} {
		_, err := codec.EncodeArguments(in, []interface{}{v})
		assert.NoError(t, err, "value:%d", v)
	}
	for _, v := range []int{-129, 128} {
		_, err := codec.EncodeArguments(in, []interface{}{v})
		assert.Error(t, err, "value:%d", v)
	}
	b, err := codec.EncodeArguments(in, []interface{}{-128})
	assert.NoError(t, err)
	assert.Equal(t, strings.Repeat("f", 62)+"80", codec.EncodeHex(b))
}

func Test_CodecEncodeCall(t *testing.T) {
	sigs := mustSignatures(t, tokenABI)
	f := functionOf(sigs, "transfer")

	assert.Equal(t, "a9059cbb", codec.EncodeHex(Selector(f.Signature())))
	b, err := codec.EncodeCall(f, []interface{}{addrB, 100})
	assert.NoError(t, err)
	assert.Equal(t,
		"a9059cbb"+word(strings.ToLower(addrB[2:]))+word("64"),
		codec.EncodeHex(b))

	_, err = codec.EncodeCall(f, []interface{}{"not-an-address", 100})
	assert.True(t, contract.ErrorCodeInvalidParam.Equals(err), "%+v", err)
}

func Test_CodecEncodeComposite(t *testing.T) {
	tuple := contract.Arguments{{
		Name: "p",
		Type: "tuple",
		Components: []contract.Argument{
			{Name: "amount", Type: "uint256"},
			{Name: "open", Type: "bool"},
		},
	}}
	b, err := codec.EncodeArguments(tuple, []interface{}{contract.Params{"amount": 1, "open": true}})
	assert.NoError(t, err)
	assert.Equal(t, word("1")+word("1"), codec.EncodeHex(b))

	_, err = codec.EncodeArguments(tuple, []interface{}{contract.Params{"amount": 1}})
	assert.Error(t, err)

	fixed := contract.Arguments{{Name: "tag", Type: "bytes4"}}
	b, err = codec.EncodeArguments(fixed, []interface{}{"0x01020304"})
	assert.NoError(t, err)
	assert.Equal(t, "01020304"+strings.Repeat("0", 56), codec.EncodeHex(b))

	array := contract.Arguments{{Name: "v", Type: "uint8[2]"}}
	b, err = codec.EncodeArguments(array, []interface{}{[]interface{}{1, 2}})
	assert.NoError(t, err)
	assert.Equal(t, word("1")+word("2"), codec.EncodeHex(b))
	_, err = codec.EncodeArguments(array, []interface{}{[]interface{}{1}})
	assert.Error(t, err)

	slice := contract.Arguments{{Name: "v", Type: "uint8[]"}}
	b, err = codec.EncodeArguments(slice, []interface{}{[]int{3}})
	assert.NoError(t, err)
	assert.Equal(t, word("20")+word("1")+word("3"), codec.EncodeHex(b))
}

func Test_CodecDecodeReturn(t *testing.T) {
	sigs := mustSignatures(t, tokenABI)

	ret, err := codec.DecodeReturn(functionOf(sigs, "balanceOf"), common.FromHex(word("64")))
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{contract.Integer("0x64")}, ret)

	ret, err = codec.DecodeReturn(functionOf(sigs, "position"), common.FromHex(word("2a")+word("1")))
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{contract.Params{
		"amount": contract.Integer("0x2a"),
		"open":   contract.Boolean(true),
	}}, ret)

	ret, err = codec.DecodeReturn(functionOf(sigs, "delta"), common.FromHex(strings.Repeat("f", 64)))
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{contract.Integer("-0x1")}, ret)

	_, err = codec.DecodeReturn(functionOf(sigs, "balanceOf"), []byte{0x01})
	assert.Error(t, err)
}

func Test_CodecDecodeEvent(t *testing.T) {
	sigs := mustSignatures(t, tokenABI)
	e := eventOf(sigs, "Transfer")

	topic := codec.EventTopic(e)
	assert.Equal(t, "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", codec.EncodeHex(topic))

	l := contract.Log{
		Address: addrA,
		Topics: [][]byte{
			topic,
			common.HexToAddress(addrA).Hash().Bytes(),
			common.HexToAddress(addrB).Hash().Bytes(),
		},
		Data: common.FromHex(word("64")),
	}
	params, err := codec.DecodeEvent(e, l)
	assert.NoError(t, err)
	assert.Equal(t, contract.Params{
		"from":  contract.Address(addrA),
		"to":    contract.Address(addrB),
		"value": contract.Integer("0x64"),
	}, params)

	l.Topics[0] = codec.EventTopic(eventOf(sigs, "Memo"))
	_, err = codec.DecodeEvent(e, l)
	assert.True(t, contract.ErrorCodeNotFoundEvent.Equals(err), "%+v", err)

	memo := eventOf(sigs, "Memo")
	noteHash := common.HexToHash("0x1234")
	params, err = codec.DecodeEvent(memo, contract.Log{
		Topics: [][]byte{codec.EventTopic(memo), noteHash.Bytes()},
		Data:   common.FromHex("0a0b0c0d" + strings.Repeat("0", 56)),
	})
	assert.NoError(t, err)
	assert.Equal(t, contract.Bytes(noteHash.Bytes()), params["note"])
	assert.Equal(t, contract.Bytes{0x0a, 0x0b, 0x0c, 0x0d}, params["tag"])
}

func Test_CodecAnonymousEventTopic(t *testing.T) {
	e := contract.NewEventDescriptor("Ping", nil, true)
	assert.Nil(t, codec.EventTopic(e))
}
