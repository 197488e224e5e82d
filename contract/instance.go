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
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/icon-project/btp2/common/errors"
)

const (
	DefaultWatchInterval = 2 * time.Second
)

// BoundFunction is the per-instance view of a shared FunctionDescriptor.
// Options are the default call options of this instance only.
type BoundFunction struct {
	*FunctionDescriptor
	Options Options
}

// BoundEvent is the per-instance view of a shared EventDescriptor.
// Height is the next block height WatchEvents reads from.
type BoundEvent struct {
	*EventDescriptor
	Height int64
}

// BindingContext is the instance-level state: where the contract lives and
// how to reach it. The client is shared, not owned.
type BindingContext struct {
	address   Address
	client    Client
	codec     Codec
	functions map[string]*BoundFunction
	events    map[string]*BoundEvent
}

func (bc *BindingContext) Address() Address {
	return bc.address
}

func (bc *BindingContext) Client() Client {
	return bc.client
}

func (bc *BindingContext) Codec() Codec {
	return bc.codec
}

// Call performs a read-only call of f against the contract of bc.
func (f *FunctionDescriptor) Call(ctx context.Context, bc *BindingContext, opts Options, args ...interface{}) ([]interface{}, error) {
	if !f.constant {
		return nil, ErrorCodeMismatchReadonly.Errorf("mismatch readonly, method:%s expected:%v", f.name, true)
	}
	data, err := bc.codec.EncodeCall(f, args)
	if err != nil {
		return nil, err
	}
	ret, err := bc.client.Call(ctx, bc.address, data, opts)
	if err != nil {
		return nil, err
	}
	return bc.codec.DecodeReturn(f, ret)
}

// Transact submits a state changing call of f to the contract of bc.
func (f *FunctionDescriptor) Transact(ctx context.Context, bc *BindingContext, opts Options, args ...interface{}) (TxID, error) {
	if f.constant {
		return nil, ErrorCodeMismatchReadonly.Errorf("mismatch readonly, method:%s expected:%v", f.name, false)
	}
	data, err := bc.codec.EncodeCall(f, args)
	if err != nil {
		return nil, err
	}
	return bc.client.Invoke(ctx, bc.address, data, opts)
}

// Filter returns the occurrences of e emitted by the contract of bc within
// [from, to]. A non-positive to means up to the latest block.
// An anonymous event has no topic to filter with, so logs of the address
// which do not decode as e are skipped.
func (e *EventDescriptor) Filter(ctx context.Context, bc *BindingContext, from, to int64) ([]*Event, error) {
	logs, err := bc.client.FilterLogs(ctx, bc.address, bc.codec.EventTopic(e), from, to)
	if err != nil {
		return nil, err
	}
	events := make([]*Event, 0, len(logs))
	for _, l := range logs {
		if e.anonymous && len(l.Topics) != e.Indexed() {
			continue
		}
		ev, err := bc.decodeEvent(e, l)
		if err != nil {
			if e.anonymous {
				specLogger.Debugf("skip log tx:%v index:%d event:%s err:%v\n", l.TxID, l.Index, e.name, err)
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (bc *BindingContext) decodeEvent(e *EventDescriptor, l Log) (*Event, error) {
	params, err := bc.codec.DecodeEvent(e, l)
	if err != nil {
		return nil, err
	}
	return &Event{
		Name:        e.name,
		Address:     l.Address,
		Params:      params,
		BlockHeight: l.BlockHeight,
		TxID:        l.TxID,
		Index:       l.Index,
	}, nil
}

// Instance is a Binding bound to one deployed address.
type Instance struct {
	binding *Binding
	ctx     *BindingContext
}

func (i *Instance) Binding() *Binding {
	return i.binding
}

func (i *Instance) Context() *BindingContext {
	return i.ctx
}

func (i *Instance) Address() Address {
	return i.ctx.address
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s(%s)", i.binding.name, i.ctx.address)
}

// Balance returns the balance of the contract at block as reported by the client.
func (i *Instance) Balance(ctx context.Context, block BlockID) (Integer, error) {
	return i.ctx.client.BalanceOf(ctx, i.ctx.address, block.OrLatest())
}

// Result returns the result of the transaction id, and the events in its logs
// emitted by this instance. The client must implement ResultClient.
func (i *Instance) Result(ctx context.Context, id TxID) (*TxResult, []*Event, error) {
	rc, ok := i.ctx.client.(ResultClient)
	if !ok {
		return nil, nil, errors.Errorf("not supported TxResult networkType:%s", i.ctx.client.NetworkType())
	}
	r, err := rc.TxResult(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events := make([]*Event, 0)
	for _, l := range r.Logs {
		if len(l.Topics) == 0 || !strings.EqualFold(string(l.Address), string(i.ctx.address)) {
			continue
		}
		for _, e := range i.binding.cfg.events {
			if e.anonymous || !bytes.Equal(i.ctx.codec.EventTopic(e), l.Topics[0]) {
				continue
			}
			ev, err := i.ctx.decodeEvent(e, l)
			if err != nil {
				return nil, nil, err
			}
			events = append(events, ev)
			break
		}
	}
	return r, events, nil
}

func (i *Instance) Function(name string) (*BoundFunction, bool) {
	f, ok := i.ctx.functions[name]
	return f, ok
}

func (i *Instance) Event(name string) (*BoundEvent, bool) {
	e, ok := i.ctx.events[name]
	return e, ok
}

// Functions returns the bound functions in ABI order.
func (i *Instance) Functions() []*BoundFunction {
	r := make([]*BoundFunction, 0, len(i.ctx.functions))
	for _, f := range i.binding.cfg.functions {
		r = append(r, i.ctx.functions[f.name])
	}
	return r
}

// Events returns the bound events in ABI order.
func (i *Instance) Events() []*BoundEvent {
	r := make([]*BoundEvent, 0, len(i.ctx.events))
	for _, e := range i.binding.cfg.events {
		r = append(r, i.ctx.events[e.name])
	}
	return r
}

func (i *Instance) function(name string) (*BoundFunction, error) {
	f, ok := i.ctx.functions[name]
	if !ok {
		return nil, ErrorCodeNotFoundMethod.Errorf("not found method:%s in %s", name, i.binding.name)
	}
	return f, nil
}

func (i *Instance) event(name string) (*BoundEvent, error) {
	e, ok := i.ctx.events[name]
	if !ok {
		return nil, ErrorCodeNotFoundEvent.Errorf("not found event:%s in %s", name, i.binding.name)
	}
	return e, nil
}

func (i *Instance) Call(ctx context.Context, name string, opts Options, args ...interface{}) ([]interface{}, error) {
	f, err := i.function(name)
	if err != nil {
		return nil, err
	}
	return f.Call(ctx, i.ctx, f.Options.Merge(opts), args...)
}

func (i *Instance) Transact(ctx context.Context, name string, opts Options, args ...interface{}) (TxID, error) {
	f, err := i.function(name)
	if err != nil {
		return nil, err
	}
	return f.Transact(ctx, i.ctx, f.Options.Merge(opts), args...)
}

func (i *Instance) FilterEvents(ctx context.Context, name string, from, to int64) ([]*Event, error) {
	e, err := i.event(name)
	if err != nil {
		return nil, err
	}
	return e.Filter(ctx, i.ctx, from, to)
}

// WatchEvents polls the named events from height until ctx is done, calling
// cb for each decoded event in block order per poll.
func (i *Instance) WatchEvents(ctx context.Context, names []string, height int64, cb EventCallback) error {
	evs := make([]*BoundEvent, len(names))
	for idx, name := range names {
		e, err := i.event(name)
		if err != nil {
			return err
		}
		e.Height = height
		evs[idx] = e
	}
	for {
		latest, err := i.ctx.client.BlockHeight(ctx)
		if err != nil {
			return err
		}
		for _, e := range evs {
			if e.Height > latest {
				continue
			}
			if e.Height <= 0 {
				e.Height = latest
			}
			l, err := e.Filter(ctx, i.ctx, e.Height, latest)
			if err != nil {
				return err
			}
			for _, ev := range l {
				if err = cb(ev); err != nil {
					return err
				}
			}
			e.Height = latest + 1
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DefaultWatchInterval):
		}
	}
}
