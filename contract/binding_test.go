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
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testCodec struct{}

func (c *testCodec) EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func (c *testCodec) EncodeArguments(inputs Arguments, args []interface{}) ([]byte, error) {
	if len(inputs) != len(args) {
		return nil, ErrorCodeInvalidParam.Errorf("invalid length expected:%d actual:%d", len(inputs), len(args))
	}
	return json.Marshal(args)
}

func (c *testCodec) EncodeCall(f *FunctionDescriptor, args []interface{}) ([]byte, error) {
	b, err := c.EncodeArguments(f.inputs, args)
	if err != nil {
		return nil, err
	}
	return append([]byte(f.Signature()), b...), nil
}

func (c *testCodec) DecodeReturn(f *FunctionDescriptor, data []byte) ([]interface{}, error) {
	return []interface{}{string(data)}, nil
}

func (c *testCodec) EventTopic(e *EventDescriptor) []byte {
	return []byte(e.Signature())
}

func (c *testCodec) DecodeEvent(e *EventDescriptor, l Log) (Params, error) {
	return Params{"data": string(l.Data)}, nil
}

type testClient struct {
	balances map[Address]Integer
	height   int64
	logs     []Log

	lastBlock   BlockID
	lastData    []byte
	lastOptions Options
	lastTopic   []byte
}

func (c *testClient) NetworkType() string {
	return "test"
}

func (c *testClient) BalanceOf(ctx context.Context, address Address, block BlockID) (Integer, error) {
	c.lastBlock = block
	b, ok := c.balances[address]
	if !ok {
		return "", ErrorCodeInvalidParam.Errorf("unknown address:%s", address)
	}
	return b, nil
}

func (c *testClient) Call(ctx context.Context, address Address, data []byte, options Options) ([]byte, error) {
	c.lastData, c.lastOptions = data, options
	return []byte("ret:" + string(address)), nil
}

func (c *testClient) Invoke(ctx context.Context, address Address, data []byte, options Options) (TxID, error) {
	c.lastData, c.lastOptions = data, options
	return "0x01", nil
}

func (c *testClient) FilterLogs(ctx context.Context, address Address, topic []byte, from, to int64) ([]Log, error) {
	c.lastTopic = topic
	ret := make([]Log, 0)
	for _, l := range c.logs {
		if l.Address == address && l.BlockHeight >= from && (to <= 0 || l.BlockHeight <= to) {
			ret = append(ret, l)
		}
	}
	return ret, nil
}

func (c *testClient) BlockHeight(ctx context.Context) (int64, error) {
	return c.height, nil
}

func mustNewBinding(t *testing.T, abi string, code string, name string) *Binding {
	b, err := NewBinding(&testCodec{}, []byte(code), []byte("contract source"), mustParseABI(t, abi), name)
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	return b
}

const (
	fooABI = `[{"type":"function","name":"foo","inputs":[],"outputs":[],"constant":true}]`
)

func Test_BindingSingleFunction(t *testing.T) {
	b := mustNewBinding(t, fooABI, "0xAB", "")
	assert.Len(t, b.Config().Functions(), 1)
	assert.Equal(t, "foo", b.Config().Functions()[0].Name())
	assert.Nil(t, b.Config().Constructor())

	data, err := b.DeployData()
	assert.NoError(t, err)
	assert.Equal(t, []byte("0xAB"), data)

	data, err = b.DeployData(1)
	assert.Nil(t, data)
	assert.True(t, ErrorCodeMissingConstructor.Equals(err), "%+v", err)
}

func Test_BindingErrors(t *testing.T) {
	_, err := NewBinding(&testCodec{}, []byte("0x00"), nil, mustParseABI(t, `[
		{"type":"function","name":"foo","inputs":[],"outputs":[]},
		{"type":"event","name":"foo","inputs":[]}]`), "")
	assert.True(t, ErrorCodeDuplicateSignature.Equals(err))

	b, err := NewBinding(&testCodec{}, []byte("0x00"), nil, mustParseABI(t, `[{"type":"fallback"}]`), "")
	assert.Nil(t, b)
	assert.True(t, ErrorCodeUnrecognizedSignature.Equals(err))
}

func Test_BindingDeployData(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	data, err := b.DeployData()
	assert.NoError(t, err)
	assert.Equal(t, []byte("0x6060"), data)

	data, err = b.DeployData(100)
	assert.NoError(t, err)
	assert.Equal(t, "0x6060"+hex.EncodeToString([]byte("[100]")), string(data))

	again, err := b.DeployData(100)
	assert.NoError(t, err)
	assert.Equal(t, data, again)

	_, err = b.DeployData(1, 2)
	assert.True(t, ErrorCodeInvalidParam.Equals(err))

	// returned bytes do not alias the binding's code
	data[0] = 'X'
	data, _ = b.DeployData()
	assert.Equal(t, []byte("0x6060"), data)

	empty := mustNewBinding(t, `[{"type":"constructor","inputs":[]}]`, "0x6060", "Empty")
	data, err = empty.DeployData()
	assert.NoError(t, err)
	assert.Equal(t, []byte("0x6060"), data)
	_, err = empty.DeployData("x")
	assert.True(t, ErrorCodeMissingConstructor.Equals(err))
}

func Test_BindingName(t *testing.T) {
	b1 := mustNewBinding(t, fooABI, "0xAB", "")
	b2 := mustNewBinding(t, tokenABI, "0xAB", "")
	b3 := mustNewBinding(t, fooABI, "0xAC", "")
	assert.Equal(t, b1.Name(), b2.Name())
	assert.NotEqual(t, b1.Name(), b3.Name())
	assert.True(t, strings.HasPrefix(b1.Name(), "Unknown-"))
	assert.Len(t, b1.Name(), len("Unknown-")+2*16)

	named := mustNewBinding(t, fooABI, "0xAB", "Foo")
	assert.Equal(t, "Foo", named.Name())
}

func Test_BindingDoc(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	expected := "contract Token {\n" +
		"// Events\n" +
		"event Transfer(address indexed from, address indexed to, uint256 value)\n" +
		"event Approval() anonymous\n" +
		"\n" +
		"// Functions\n" +
		"function balanceOf(address owner) constant returns (uint256)\n" +
		"function transfer(address to, uint256 value) returns (bool)\n" +
		"function name() constant returns (string)\n" +
		"}\n"
	assert.Equal(t, expected, b.Doc())
}

func Test_Instance(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	c := &testClient{
		balances: map[Address]Integer{"0x01": "0x64", "0x02": "0x0"},
	}
	i1 := b.New("0x01", c)
	i2 := b.New("0x02", c)
	assert.Equal(t, "Token(0x01)", i1.String())
	assert.Equal(t, "Token(0x02)", i2.String())

	bal, err := i1.Balance(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, Integer("0x64"), bal)
	assert.Equal(t, BlockLatest, c.lastBlock)

	bal, err = i2.Balance(context.Background(), "0x10")
	assert.NoError(t, err)
	assert.Equal(t, Integer("0x0"), bal)
	assert.Equal(t, BlockID("0x10"), c.lastBlock)

	_, err = b.New("0x03", c).Balance(context.Background(), BlockLatest)
	assert.True(t, ErrorCodeInvalidParam.Equals(err), "client error propagates")

	names := make([]string, 0)
	for _, f := range i1.Functions() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"balanceOf", "transfer", "name"}, names)
	assert.Len(t, i1.Events(), 2)
}

func Test_InstanceIndependence(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	c := &testClient{}
	i1 := b.New("0x01", c)
	i2 := b.New("0x02", c)

	f1, ok := i1.Function("balanceOf")
	assert.True(t, ok)
	f2, ok := i2.Function("balanceOf")
	assert.True(t, ok)
	assert.NotSame(t, f1, f2)
	assert.Same(t, f1.FunctionDescriptor, f2.FunctionDescriptor)

	f1.Options["from"] = "0xaa"
	assert.Empty(t, f2.Options)

	e1, _ := i1.Event("Transfer")
	e2, _ := i2.Event("Transfer")
	e1.Height = 10
	assert.Equal(t, int64(0), e2.Height)

	i3 := b.New("0x03", c)
	f3, _ := i3.Function("balanceOf")
	assert.Empty(t, f3.Options)
	assert.NotEqual(t, i1.Context().Address(), i2.Context().Address())
}

func Test_InstanceCall(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	c := &testClient{}
	i := b.New("0x01", c)

	f, _ := i.Function("balanceOf")
	f.Options["from"] = "0xaa"
	ret, err := i.Call(context.Background(), "balanceOf", Options{"block": "latest"}, "0x02")
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"ret:0x01"}, ret)
	assert.Equal(t, `balanceOf(address)["0x02"]`, string(c.lastData))
	assert.Equal(t, Options{"from": "0xaa", "block": "latest"}, c.lastOptions)

	_, err = i.Call(context.Background(), "transfer", nil, "0x02", 1)
	assert.True(t, ErrorCodeMismatchReadonly.Equals(err))
	_, err = i.Transact(context.Background(), "balanceOf", nil, "0x02")
	assert.True(t, ErrorCodeMismatchReadonly.Equals(err))
	_, err = i.Call(context.Background(), "unknown", nil)
	assert.True(t, ErrorCodeNotFoundMethod.Equals(err))

	txID, err := i.Transact(context.Background(), "transfer", nil, "0x02", 1)
	assert.NoError(t, err)
	assert.Equal(t, "0x01", txID)
	assert.Equal(t, `transfer(address,uint256)["0x02",1]`, string(c.lastData))
}

func Test_InstanceEvents(t *testing.T) {
	b := mustNewBinding(t, tokenABI, "0x6060", "Token")
	c := &testClient{
		height: 5,
		logs: []Log{
			{Address: "0x01", Data: []byte("a"), BlockHeight: 1},
			{Address: "0x02", Data: []byte("b"), BlockHeight: 2},
			{Address: "0x01", Data: []byte("c"), BlockHeight: 3},
		},
	}
	i := b.New("0x01", c)
	evs, err := i.FilterEvents(context.Background(), "Transfer", 2, 0)
	assert.NoError(t, err)
	assert.Len(t, evs, 1)
	assert.Equal(t, "Transfer", evs[0].Name)
	assert.Equal(t, Params{"data": "c"}, evs[0].Params)
	assert.Equal(t, int64(3), evs[0].BlockHeight)
	assert.Equal(t, []byte("Transfer(address,address,uint256)"), c.lastTopic)

	_, err = i.FilterEvents(context.Background(), "Unknown", 0, 0)
	assert.True(t, ErrorCodeNotFoundEvent.Equals(err))

	ctx, cancel := context.WithCancel(context.Background())
	received := make([]*Event, 0)
	err = i.WatchEvents(ctx, []string{"Transfer"}, 1, func(e *Event) error {
		received = append(received, e)
		if len(received) == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, received, 2)
	e, _ := i.Event("Transfer")
	assert.Equal(t, int64(6), e.Height)
}
