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

// Signatures is the result of ParseSignatures. Functions and Events keep
// the order in which they appear in the ABI.
type Signatures struct {
	Functions   []*FunctionDescriptor
	Events      []*EventDescriptor
	Constructor *ConstructorDescriptor
}

// ParseSignatures partitions ABI entries into descriptors.
// Function and event names share one namespace; a collision fails with
// ErrorCodeDuplicateSignature. Only the first constructor declaring inputs is kept.
func ParseSignatures(entries []ABIEntry) (*Signatures, error) {
	s := &Signatures{
		Functions: make([]*FunctionDescriptor, 0),
		Events:    make([]*EventDescriptor, 0),
	}
	names := make(map[string]string)
	for i, e := range entries {
		if e.Type == EntryTypeConstructor {
			if len(e.Inputs) > 0 && s.Constructor == nil {
				s.Constructor = NewConstructorDescriptor(e.Inputs)
				specLogger.Tracef("ParseSignatures index:%d %s\n", i, s.Constructor)
			}
			continue
		}
		if t, ok := names[e.Name]; ok {
			return nil, ErrorCodeDuplicateSignature.Errorf(
				"duplicate signature name:%s index:%d type:%s registered:%s", e.Name, i, e.Type, t)
		}
		switch e.Type {
		case EntryTypeFunction:
			f := NewFunctionDescriptor(e.Name, e.Inputs, e.Outputs, e.Constant, e.Payable)
			s.Functions = append(s.Functions, f)
			specLogger.Tracef("ParseSignatures index:%d %s\n", i, f)
		case EntryTypeEvent:
			ev := NewEventDescriptor(e.Name, e.Inputs, e.Anonymous)
			s.Events = append(s.Events, ev)
			specLogger.Tracef("ParseSignatures index:%d %s\n", i, ev)
		default:
			return nil, ErrorCodeUnrecognizedSignature.Errorf(
				"unrecognized signature type:%q name:%s index:%d", e.Type, e.Name, i)
		}
		names[e.Name] = e.Type
	}
	return s, nil
}
