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
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/intconv"
	"github.com/icon-project/btp2/common/log"
)

const (
	invalidInteger = ""
)

func MustIntegerOf(value interface{}) Integer {
	ret, err := IntegerOf(value)
	if err != nil {
		log.Panicf("fail to IntegerOf err:%v", err)
	}
	return ret
}

// IntegerOf accepts Go integers, big.Int, hex strings ("0x" prefixed),
// decimal strings and integral JSON numbers.
func IntegerOf(value interface{}) (Integer, error) {
	switch v := value.(type) {
	case Integer:
		if _, err := v.AsBigInt(); err != nil {
			return invalidInteger, err
		}
		return v, nil
	case string:
		return integerOfString(v)
	case json.Number:
		return integerOfString(string(v))
	case float64:
		if v != math.Trunc(v) {
			return invalidInteger, errors.Errorf("not integral %v", v)
		}
		bf := new(big.Float).SetFloat64(v)
		bi, _ := bf.Int(nil)
		return Integer(intconv.FormatBigInt(bi)), nil
	case []byte:
		return Integer(intconv.FormatBigInt(intconv.BigIntSetBytes(new(big.Int), v))), nil
	case big.Int:
		return Integer(intconv.FormatBigInt(&v)), nil
	case *big.Int:
		return Integer(intconv.FormatBigInt(v)), nil
	default:
		rv := reflect.ValueOf(value)
		if rv.CanInt() {
			return Integer(intconv.FormatBigInt(big.NewInt(rv.Int()))), nil
		} else if rv.CanUint() {
			return Integer(intconv.FormatBigInt(new(big.Int).SetUint64(rv.Uint()))), nil
		} else {
			return invalidInteger, errors.Errorf("invalid type %T", value)
		}
	}
}

func integerOfString(s string) (Integer, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-0x") {
		i := Integer(s)
		if _, err := i.AsBigInt(); err != nil {
			return invalidInteger, err
		}
		return i, nil
	}
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return invalidInteger, errors.Errorf("invalid integer %q", s)
	}
	return Integer(intconv.FormatBigInt(bi)), nil
}

func BooleanOf(value interface{}) (Boolean, error) {
	switch v := value.(type) {
	case Boolean:
		return v, nil
	case bool:
		return Boolean(v), nil
	case string:
		switch v {
		case "true", "0x1":
			return true, nil
		case "false", "0x0":
			return false, nil
		}
		return false, errors.Errorf("invalid boolean %q", v)
	default:
		return false, errors.Errorf("invalid type %T", v)
	}
}

func StringOf(value interface{}) (String, error) {
	switch v := value.(type) {
	case String:
		return v, nil
	case string:
		return String(v), nil
	default:
		return "", errors.Errorf("invalid type %T", v)
	}
}

// BytesOf accepts raw bytes or a "0x" prefixed hex string.
func BytesOf(value interface{}) (Bytes, error) {
	switch v := value.(type) {
	case Bytes:
		return v, nil
	case []byte:
		return v, nil
	case string:
		if !strings.HasPrefix(v, "0x") {
			return nil, errors.Errorf("invalid bytes, required hex %q", v)
		}
		b, err := hex.DecodeString(v[2:])
		if err != nil {
			return nil, errors.Wrapf(err, "fail to DecodeString err:%s", err.Error())
		}
		return b, nil
	default:
		return nil, errors.Errorf("invalid type %T", v)
	}
}

func AddressOf(value interface{}) (Address, error) {
	switch v := value.(type) {
	case Address:
		return v, nil
	case string:
		return Address(v), nil
	case String:
		return Address(v), nil
	default:
		return "", errors.Errorf("invalid type %T", v)
	}
}

func ParamsOf(value interface{}) (Params, error) {
	switch v := value.(type) {
	case Params:
		return v, nil
	case map[string]interface{}:
		return v, nil
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Struct {
			b, err := json.Marshal(value)
			if err != nil {
				return nil, errors.Wrapf(err, "fail to Marshal err:%s", err.Error())
			}
			p := make(Params)
			if err = json.Unmarshal(b, &p); err != nil {
				return nil, errors.Wrapf(err, "fail to Unmarshal err:%s", err.Error())
			}
			return p, nil
		}
		return nil, errors.Errorf("invalid type:%T", value)
	}
}
