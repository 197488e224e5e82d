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
	"fmt"
	"strings"
)

// FunctionDescriptor is the immutable template of a callable ABI entry.
// It is shared by every Instance of a Binding.
type FunctionDescriptor struct {
	name     string
	inputs   Arguments
	outputs  Arguments
	constant bool
	payable  bool
}

func NewFunctionDescriptor(name string, inputs, outputs Arguments, constant, payable bool) *FunctionDescriptor {
	return &FunctionDescriptor{
		name:     name,
		inputs:   inputs.clone(),
		outputs:  outputs.clone(),
		constant: constant,
		payable:  payable,
	}
}

func (f *FunctionDescriptor) Name() string {
	return f.name
}

func (f *FunctionDescriptor) Inputs() Arguments {
	return f.inputs.clone()
}

func (f *FunctionDescriptor) Outputs() Arguments {
	return f.outputs.clone()
}

func (f *FunctionDescriptor) Constant() bool {
	return f.constant
}

func (f *FunctionDescriptor) Payable() bool {
	return f.payable
}

// Signature returns the canonical form used for selector hashing, e.g. transfer(address,uint256).
func (f *FunctionDescriptor) Signature() string {
	return canonicalSignature(f.name, f.inputs)
}

func (f *FunctionDescriptor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s(%s)", f.name, f.inputs.format(false))
	if f.constant {
		sb.WriteString(" constant")
	}
	if f.payable {
		sb.WriteString(" payable")
	}
	if len(f.outputs) > 0 {
		fmt.Fprintf(&sb, " returns (%s)", f.outputs.format(false))
	}
	return sb.String()
}

// EventDescriptor is the immutable template of an ABI event entry.
type EventDescriptor struct {
	name      string
	inputs    Arguments
	anonymous bool
}

func NewEventDescriptor(name string, inputs Arguments, anonymous bool) *EventDescriptor {
	return &EventDescriptor{
		name:      name,
		inputs:    inputs.clone(),
		anonymous: anonymous,
	}
}

func (e *EventDescriptor) Name() string {
	return e.name
}

func (e *EventDescriptor) Inputs() Arguments {
	return e.inputs.clone()
}

func (e *EventDescriptor) Anonymous() bool {
	return e.anonymous
}

func (e *EventDescriptor) Indexed() int {
	n := 0
	for _, in := range e.inputs {
		if in.Indexed {
			n++
		}
	}
	return n
}

func (e *EventDescriptor) Signature() string {
	return canonicalSignature(e.name, e.inputs)
}

func (e *EventDescriptor) String() string {
	s := fmt.Sprintf("event %s(%s)", e.name, e.inputs.format(true))
	if e.anonymous {
		s += " anonymous"
	}
	return s
}

type ConstructorDescriptor struct {
	inputs Arguments
}

func NewConstructorDescriptor(inputs Arguments) *ConstructorDescriptor {
	return &ConstructorDescriptor{inputs: inputs.clone()}
}

func (c *ConstructorDescriptor) Inputs() Arguments {
	return c.inputs.clone()
}

func (c *ConstructorDescriptor) String() string {
	return fmt.Sprintf("constructor(%s)", c.inputs.format(false))
}

func canonicalSignature(name string, inputs Arguments) string {
	types := make([]string, len(inputs))
	for i, in := range inputs {
		types[i] = canonicalType(in)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(types, ","))
}

// canonicalType expands tuple types into their component list, keeping array suffixes.
func canonicalType(a Argument) string {
	if !strings.HasPrefix(a.Type, "tuple") {
		return a.Type
	}
	l := make([]string, len(a.Components))
	for i, c := range a.Components {
		l[i] = canonicalType(c)
	}
	return "(" + strings.Join(l, ",") + ")" + strings.TrimPrefix(a.Type, "tuple")
}
