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

package registry

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"

	"github.com/icon-project/contract-binder/artifact"
	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/database"
)

const (
	DefaultCacheSize = 64
	TableDeployment  = "deployment"
)

// Deployment records that a named binding lives at address on network.
type Deployment struct {
	database.Model
	Network string `json:"network" gorm:"uniqueIndex:idx_deployment;size:64"`
	Name    string `json:"name" gorm:"uniqueIndex:idx_deployment;size:128"`
	Address string `json:"address" gorm:"uniqueIndex:idx_deployment;size:128"`
}

// Registry resolves artifacts by name and networks by name into Bindings and
// Instances. Bindings are cached per network type since they only depend on
// the artifact and the codec.
type Registry struct {
	mtx       sync.RWMutex
	artifacts map[string]*artifact.Artifact
	clients   map[string]contract.Client
	bindings  *lru.Cache
	repo      database.Repository[Deployment]
	l         log.Logger
}

func New(repo database.Repository[Deployment], cacheSize int, l log.Logger) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to lru.New err:%s", err.Error())
	}
	return &Registry{
		artifacts: make(map[string]*artifact.Artifact),
		clients:   make(map[string]contract.Client),
		bindings:  c,
		repo:      repo,
		l:         l.WithFields(log.Fields{log.FieldKeyModule: "registry"}),
	}, nil
}

// AddArtifact registers a by its name, or by the name derived from its code
// when it has none, and returns the registered name.
func (r *Registry) AddArtifact(a *artifact.Artifact) (string, error) {
	name := a.Name
	if len(name) == 0 {
		name = contract.FallbackName(a.Code)
	}
	if _, err := contract.ParseSignatures(a.ABI); err != nil {
		return "", err
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.artifacts[name]; ok {
		return "", errors.Errorf("already registered artifact:%s", name)
	}
	na := *a
	na.Name = name
	r.artifacts[name] = &na
	r.l.Debugf("AddArtifact name:%s", name)
	return name, nil
}

func (r *Registry) ArtifactNames() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	names := make([]string, 0, len(r.artifacts))
	for k := range r.artifacts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Artifact(name string) (*artifact.Artifact, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	a, ok := r.artifacts[name]
	if !ok {
		return nil, contract.ErrorCodeNotFoundBinding.Errorf("not found binding:%s", name)
	}
	return a, nil
}

func (r *Registry) AddClient(network string, c contract.Client) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.clients[network]; ok {
		return errors.Errorf("already registered network:%s", network)
	}
	r.clients[network] = c
	r.l.Debugf("AddClient network:%s type:%s", network, c.NetworkType())
	return nil
}

func (r *Registry) Networks() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	names := make([]string, 0, len(r.clients))
	for k := range r.clients {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Client(network string) (contract.Client, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	c, ok := r.clients[network]
	if !ok {
		return nil, contract.ErrorCodeNotFoundNetwork.Errorf("not found network:%s", network)
	}
	return c, nil
}

// Binding returns the cached Binding of the named artifact for networkType.
func (r *Registry) Binding(networkType, name string) (*contract.Binding, error) {
	key := networkType + "/" + name
	if v, ok := r.bindings.Get(key); ok {
		return v.(*contract.Binding), nil
	}
	a, err := r.Artifact(name)
	if err != nil {
		return nil, err
	}
	codec, err := contract.CodecOf(networkType)
	if err != nil {
		return nil, err
	}
	b, err := a.Binding(codec)
	if err != nil {
		return nil, err
	}
	r.bindings.Add(key, b)
	return b, nil
}

// Instance binds the named artifact to address on network. The address does
// not need to be registered as a Deployment.
func (r *Registry) Instance(network, name string, address contract.Address) (*contract.Instance, error) {
	c, err := r.Client(network)
	if err != nil {
		return nil, err
	}
	b, err := r.Binding(c.NetworkType(), name)
	if err != nil {
		return nil, err
	}
	return b.New(address, c), nil
}

// Register records a Deployment, returning the existing one if already recorded.
func (r *Registry) Register(ctx context.Context, network, name string, address contract.Address) (*Deployment, error) {
	if _, err := r.Client(network); err != nil {
		return nil, err
	}
	if _, err := r.Artifact(name); err != nil {
		return nil, err
	}
	if len(address) == 0 {
		return nil, contract.ErrorCodeInvalidParam.Errorf("required address")
	}
	d := &Deployment{Network: network, Name: name, Address: string(address)}
	d, saved, err := r.repo.SaveIfAbsent(ctx, d, &Deployment{Network: network, Name: name, Address: string(address)})
	if err != nil {
		return nil, errors.Wrapf(err, "fail to SaveIfAbsent err:%s", err.Error())
	}
	if saved {
		r.l.Infof("Register network:%s name:%s address:%s", network, name, address)
	}
	return d, nil
}

func (r *Registry) Deployments(ctx context.Context, network string, p database.Pageable) (*database.Page[Deployment], error) {
	if len(p.Sort) == 0 {
		p.Sort = "id"
	}
	return r.repo.Page(ctx, p, &Deployment{Network: network})
}

func (r *Registry) Unregister(ctx context.Context, network, name string, address contract.Address) error {
	return r.repo.Delete(ctx, &Deployment{Network: network, Name: name, Address: string(address)})
}
