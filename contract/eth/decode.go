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
	"github.com/icon-project/btp2/common/errors"

	"github.com/icon-project/contract-binder/contract"
)

func decode(s abi.Type, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	// indexed dynamic values are only available as their hash
	if h, ok := value.(common.Hash); ok && s.T != abi.FixedBytesTy {
		return contract.Bytes(h.Bytes()), nil
	}
	codecLogger.Traceln("decode spec:", s.TupleRawName, "type:", s.String(), "reflect:", s.GetType(), reflect.TypeOf(value))
	switch s.T {
	case abi.TupleTy:
		return decodeStruct(s, value)
	case abi.ArrayTy, abi.SliceTy:
		return decodeArray(s, reflect.ValueOf(value))
	default:
		return decodePrimitive(s, value)
	}
}

func decodePrimitive(s abi.Type, value interface{}) (interface{}, error) {
	v, ok := value.(reflect.Value)
	if !ok {
		v = reflect.ValueOf(value)
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch s.T {
	case abi.IntTy, abi.UintTy:
		switch v.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return contract.FromInt64(v.Int()), nil
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return contract.FromUint64(v.Uint()), nil
		}
		if i, ok := v.Interface().(*big.Int); ok {
			return contract.FromBigInt(i), nil
		}
	case abi.StringTy:
		if v.Kind() == reflect.String {
			return contract.String(v.String()), nil
		}
	case abi.AddressTy:
		if a, ok := v.Interface().(common.Address); ok {
			return contract.Address(a.String()), nil
		}
	case abi.BytesTy:
		if v.Kind() == reflect.Slice {
			return contract.Bytes(v.Bytes()), nil
		}
	case abi.FixedBytesTy:
		if h, ok := v.Interface().(common.Hash); ok {
			return contract.Bytes(h.Bytes()[:s.Size]), nil
		}
		if v.Kind() == reflect.Array {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return contract.Bytes(b), nil
		}
	case abi.BoolTy:
		if v.Kind() == reflect.Bool {
			return contract.Boolean(v.Bool()), nil
		}
	default:
		return nil, errors.Errorf("fail decodePrimitive, not supported %v", s)
	}
	return nil, errors.Errorf("fail decodePrimitive, invalid type expected:%v actual:%v", s.GetType(), v.Type())
}

func decodeStruct(s abi.Type, value interface{}) (interface{}, error) {
	v, ok := value.(reflect.Value)
	if !ok {
		v = reflect.ValueOf(value)
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.Errorf("fail decodeStruct, invalid type %v", v.Type())
	}
	ret := make(contract.Params)
	var err error
	for i, element := range s.TupleElems {
		k := s.TupleRawNames[i]
		if ret[k], err = decode(*element, v.Field(i).Interface()); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeArray(s abi.Type, v reflect.Value) (interface{}, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
		return nil, errors.Errorf("fail decodeArray, invalid type %v", v.Kind())
	}
	ret := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		re, err := decode(*s.Elem, v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		ret[i] = re
	}
	return ret, nil
}
