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
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"

	"github.com/icon-project/contract-binder/contract"
)

var (
	codecLogger = log.New()
)

func init() {
	codecLogger.SetLevel(log.DebugLevel)
}

// Codec is the Ethereum ABI implementation of contract.Codec.
type Codec struct{}

func (c *Codec) EncodeHex(b []byte) string {
	return common.Bytes2Hex(b)
}

func (c *Codec) EncodeArguments(inputs contract.Arguments, args []interface{}) ([]byte, error) {
	out, err := NewArguments(inputs)
	if err != nil {
		return nil, err
	}
	if len(out) != len(args) {
		return nil, contract.ErrorCodeInvalidParam.Errorf("invalid length of arguments expected:%d actual:%d",
			len(out), len(args))
	}
	values := make([]interface{}, len(args))
	for i, v := range out {
		if values[i], err = encode(v.Type, args[i]); err != nil {
			return nil, contract.ErrorCodeInvalidParam.Wrapf(err, "invalid param:%s err:%s", v.Name, err.Error())
		}
		codecLogger.Tracef("EncodeArguments index:%d name:%s param:%v encoded:%v type:%T\n",
			i, v.Name, args[i], values[i], values[i])
	}
	b, err := out.Pack(values...)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to Pack err:%s", err.Error())
	}
	return b, nil
}

func (c *Codec) EncodeCall(f *contract.FunctionDescriptor, args []interface{}) ([]byte, error) {
	b, err := c.EncodeArguments(f.Inputs(), args)
	if err != nil {
		return nil, err
	}
	return append(Selector(f.Signature()), b...), nil
}

func (c *Codec) DecodeReturn(f *contract.FunctionDescriptor, data []byte) ([]interface{}, error) {
	out, err := NewArguments(f.Outputs())
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []interface{}{}, nil
	}
	values, err := out.Unpack(data)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to Unpack err:%s", err.Error())
	}
	ret := make([]interface{}, len(values))
	for i, v := range values {
		if ret[i], err = decode(out[i].Type, v); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// EventTopic returns the first topic of e, nil for anonymous events.
func (c *Codec) EventTopic(e *contract.EventDescriptor) []byte {
	if e.Anonymous() {
		return nil
	}
	return crypto.Keccak256([]byte(e.Signature()))
}

func (c *Codec) DecodeEvent(e *contract.EventDescriptor, l contract.Log) (contract.Params, error) {
	in, err := NewArguments(e.Inputs())
	if err != nil {
		return nil, err
	}
	topics := make([]common.Hash, 0, len(l.Topics))
	for _, t := range l.Topics {
		topics = append(topics, common.BytesToHash(t))
	}
	if !e.Anonymous() {
		if len(topics) == 0 || topics[0] != common.BytesToHash(c.EventTopic(e)) {
			return nil, contract.ErrorCodeNotFoundEvent.Errorf("mismatch signature event:%s", e.Signature())
		}
		topics = topics[1:]
	}
	raw := make(map[string]interface{})
	var indexed abi.Arguments
	for _, arg := range in {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err = abi.ParseTopicsIntoMap(raw, indexed, topics); err != nil {
			return nil, errors.Wrapf(err, "fail to ParseTopicsIntoMap err:%s", err.Error())
		}
	}
	if nonIndexed := in.NonIndexed(); len(nonIndexed) > 0 {
		if err = nonIndexed.UnpackIntoMap(raw, l.Data); err != nil {
			return nil, errors.Wrapf(err, "fail to UnpackIntoMap err:%s", err.Error())
		}
	}
	params := make(contract.Params)
	for _, arg := range in {
		if params[arg.Name], err = decode(arg.Type, raw[arg.Name]); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Selector returns the 4-byte method id of a canonical signature.
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func NewArguments(as contract.Arguments) (abi.Arguments, error) {
	ret := make(abi.Arguments, len(as))
	for i, a := range as {
		t, err := abi.NewType(a.Type, a.InternalType, newArgumentMarshalings(a.Components))
		if err != nil {
			return nil, contract.ErrorCodeInvalidParam.Wrapf(err, "invalid type:%s name:%s err:%s",
				a.Type, a.Name, err.Error())
		}
		ret[i] = abi.Argument{Name: a.Name, Type: t, Indexed: a.Indexed}
	}
	return ret, nil
}

func newArgumentMarshalings(as []contract.Argument) []abi.ArgumentMarshaling {
	if len(as) == 0 {
		return nil
	}
	ret := make([]abi.ArgumentMarshaling, len(as))
	for i, a := range as {
		ret[i] = abi.ArgumentMarshaling{
			Name:         a.Name,
			Type:         a.Type,
			InternalType: a.InternalType,
			Components:   newArgumentMarshalings(a.Components),
			Indexed:      a.Indexed,
		}
	}
	return ret
}

func encode(s abi.Type, value interface{}) (interface{}, error) {
	switch s.T {
	case abi.TupleTy:
		return encodeStruct(s, value)
	case abi.ArrayTy, abi.SliceTy:
		return encodeArray(s, reflect.ValueOf(value))
	default:
		return encodePrimitive(s, value)
	}
}

func encodePrimitive(s abi.Type, value interface{}) (interface{}, error) {
	if v, ok := value.(reflect.Value); ok {
		value = v.Interface()
	}
	switch s.T {
	case abi.IntTy, abi.UintTy:
		v, err := contract.IntegerOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive integer, err:%s", err.Error())
		}
		bi, err := v.AsBigInt()
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive integer, err:%s", err.Error())
		}
		bl, magnitude := s.Size, bi
		if s.T == abi.IntTy {
			bl = bl - 1
			if bi.Sign() < 0 {
				// -2^(n-1) is the smallest value of intN
				magnitude = new(big.Int).Add(bi, big.NewInt(1))
			}
		} else if bi.Sign() < 0 {
			return nil, errors.Errorf("fail encodePrimitive integer, invalid sign")
		}
		if bl < magnitude.BitLen() {
			return nil, errors.Errorf("fail encodePrimitive integer, invalid bit length expected:%d actual:%d",
				bl, magnitude.BitLen())
		}
		switch s.Size {
		case 8, 16, 32, 64:
			if s.T == abi.IntTy {
				i := bi.Int64()
				switch s.Size {
				case 8:
					return int8(i), nil
				case 16:
					return int16(i), nil
				case 32:
					return int32(i), nil
				}
				return i, nil
			} else {
				i := bi.Uint64()
				switch s.Size {
				case 8:
					return uint8(i), nil
				case 16:
					return uint16(i), nil
				case 32:
					return uint32(i), nil
				}
				return i, nil
			}
		default:
			return bi, nil
		}
	case abi.StringTy:
		v, err := contract.StringOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive string, err:%s", err.Error())
		}
		return string(v), nil
	case abi.AddressTy:
		v, err := contract.AddressOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive address, err:%s", err.Error())
		}
		if !common.IsHexAddress(string(v)) {
			return nil, errors.Errorf("fail encodePrimitive address, required hex")
		}
		return common.HexToAddress(string(v)), nil
	case abi.BytesTy:
		v, err := contract.BytesOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive bytes, err:%s", err.Error())
		}
		return []byte(v), nil
	case abi.FixedBytesTy:
		v, err := contract.BytesOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive fixed bytes, err:%s", err.Error())
		}
		if len(v) > s.Size {
			return nil, errors.Errorf("fail encodePrimitive fixed bytes, invalid length expected:%d actual:%d",
				s.Size, len(v))
		}
		ret := reflect.New(s.GetType()).Elem()
		reflect.Copy(ret, reflect.ValueOf([]byte(v)))
		return ret.Interface(), nil
	case abi.BoolTy:
		v, err := contract.BooleanOf(value)
		if err != nil {
			return nil, errors.Wrapf(err, "fail encodePrimitive boolean, err:%s", err.Error())
		}
		return bool(v), nil
	default:
		return nil, errors.Errorf("fail encodePrimitive, not supported %v", s)
	}
}

func encodeStruct(s abi.Type, value interface{}) (interface{}, error) {
	params, err := contract.ParamsOf(value)
	if err != nil {
		return nil, errors.Wrapf(err, "fail encodeStruct, err:%s", err.Error())
	}
	ret := reflect.New(s.TupleType).Elem()
	for i, n := range s.TupleRawNames {
		p, ok := params[n]
		if !ok {
			return nil, errors.Errorf("fail encodeStruct, required field:%s", n)
		}
		field, err := encode(*s.TupleElems[i], p)
		if err != nil {
			return nil, err
		}
		ret.Field(i).Set(reflect.ValueOf(field))
	}
	return ret.Interface(), nil
}

func encodeArray(s abi.Type, v reflect.Value) (interface{}, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
		return nil, errors.Errorf("fail encodeArray, invalid type %v", v.Kind())
	}
	var ret reflect.Value
	if s.T == abi.ArrayTy {
		if v.Len() != s.Size {
			return nil, errors.Errorf("fail encodeArray, invalid length expected:%d actual:%d", s.Size, v.Len())
		}
		ret = reflect.New(s.GetType()).Elem()
	} else {
		ret = reflect.MakeSlice(s.GetType(), v.Len(), v.Len())
	}
	for i := 0; i < v.Len(); i++ {
		re, err := encode(*s.Elem, v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		ret.Index(i).Set(reflect.ValueOf(re))
	}
	return ret.Interface(), nil
}
