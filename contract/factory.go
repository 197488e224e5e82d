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
	"encoding/json"

	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
)

type Params map[string]interface{}
type ReturnValue interface{}
type TxID interface{}

// Log is a raw event log as returned by the RPC client.
type Log struct {
	Address     Address  `json:"address"`
	Topics      [][]byte `json:"topics"`
	Data        []byte   `json:"data"`
	BlockHeight int64    `json:"blockHeight"`
	TxID        TxID     `json:"txID"`
	Index       int      `json:"index"`
}

// Event is a Log decoded against an EventDescriptor.
type Event struct {
	Name        string  `json:"name"`
	Address     Address `json:"address"`
	Params      Params  `json:"params"`
	BlockHeight int64   `json:"blockHeight"`
	TxID        TxID    `json:"txID"`
	Index       int     `json:"index"`
}

type EventCallback func(e *Event) error

// TxResult is the outcome of a submitted transaction.
type TxResult struct {
	TxID        TxID    `json:"txID"`
	BlockHeight int64   `json:"blockHeight"`
	Success     bool    `json:"success"`
	GasUsed     Integer `json:"gasUsed"`
	Logs        []Log   `json:"logs"`
}

// ResultClient is a Client which can look up transaction results.
// Unknown transactions fail with ErrorCodeNotFoundTransaction.
type ResultClient interface {
	Client
	TxResult(ctx context.Context, id TxID) (*TxResult, error)
}

// Client is the RPC transport used by bound instances. It is shared and
// owned by the caller; implementations handle their own concurrency.
type Client interface {
	NetworkType() string
	BalanceOf(ctx context.Context, address Address, block BlockID) (Integer, error)
	Call(ctx context.Context, address Address, data []byte, options Options) ([]byte, error)
	Invoke(ctx context.Context, address Address, data []byte, options Options) (TxID, error)
	FilterLogs(ctx context.Context, address Address, topic []byte, from, to int64) ([]Log, error)
	BlockHeight(ctx context.Context) (int64, error)
}

// Codec is the ABI encoding used by a network type.
type Codec interface {
	EncodeHex(b []byte) string
	EncodeArguments(inputs Arguments, args []interface{}) ([]byte, error)
	EncodeCall(f *FunctionDescriptor, args []interface{}) ([]byte, error)
	DecodeReturn(f *FunctionDescriptor, data []byte) ([]interface{}, error)
	EventTopic(e *EventDescriptor) []byte
	DecodeEvent(e *EventDescriptor, l Log) (Params, error)
}

type Options map[string]interface{}
type ClientFactory func(networkType string, endpoint string, opt Options, l log.Logger) (Client, error)

var (
	cfMap    = make(map[string]ClientFactory)
	codecMap = make(map[string]Codec)
)

func RegisterClientFactory(cf ClientFactory, networkTypes ...string) {
	for _, networkType := range networkTypes {
		if _, ok := cfMap[networkType]; ok {
			log.Panicln("already registered networkType:" + networkType)
		}
		cfMap[networkType] = cf
	}
}

func NewClient(networkType string, endpoint string, opt Options, l log.Logger) (Client, error) {
	if cf, ok := cfMap[networkType]; ok {
		l = l.WithFields(log.Fields{log.FieldKeyChain: networkType, log.FieldKeyModule: "contract"})
		return cf(networkType, endpoint, opt, l)
	}
	return nil, errors.New("not supported networkType:" + networkType)
}

func RegisterCodec(c Codec, networkTypes ...string) {
	for _, networkType := range networkTypes {
		if _, ok := codecMap[networkType]; ok {
			log.Panicln("already registered networkType:" + networkType)
		}
		codecMap[networkType] = c
	}
}

func CodecOf(networkType string) (Codec, error) {
	if c, ok := codecMap[networkType]; ok {
		return c, nil
	}
	return nil, errors.New("not supported networkType:" + networkType)
}

func EncodeOptions(v interface{}) (Options, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to EncodeOptions, err:%s", err.Error())
	}
	options := make(Options)
	if err = json.Unmarshal(b, &options); err != nil {
		return nil, errors.Wrapf(err, "fail to EncodeOptions, err:%s", err.Error())
	}
	return options, nil
}

func DecodeOptions(options Options, v interface{}) error {
	b, err := json.Marshal(options)
	if err != nil {
		return errors.Wrapf(err, "fail to DecodeOptions err:%s", err.Error())
	}
	if err = json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "fail to DecodeOptions err:%s", err.Error())
	}
	return nil
}

// Merge returns a new Options with o overridden by each of others in order.
func (o Options) Merge(others ...Options) Options {
	r := make(Options)
	for k, v := range o {
		r[k] = v
	}
	for _, other := range others {
		for k, v := range other {
			r[k] = v
		}
	}
	return r
}

type LogLevel log.Level

func (l LogLevel) Level() log.Level {
	return log.Level(l)
}

func (l LogLevel) MarshalJSON() ([]byte, error) {
	ll := log.Level(l)
	if ll > log.TraceLevel || ll < log.PanicLevel {
		return nil, errors.New("out of range log.Level")
	}
	return json.Marshal(ll.String())
}

func (l *LogLevel) UnmarshalJSON(input []byte) error {
	var str string
	err := json.Unmarshal(input, &str)
	if err != nil {
		return err
	}
	v, err := log.ParseLevel(str)
	if err != nil {
		return err
	}
	*l = LogLevel(v)
	return nil
}
