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
	"testing"

	"github.com/icon-project/btp2/common/log"
	"github.com/stretchr/testify/assert"

	"github.com/icon-project/contract-binder/artifact"
	"github.com/icon-project/contract-binder/contract"
	_ "github.com/icon-project/contract-binder/contract/eth"
	"github.com/icon-project/contract-binder/database"
)

const (
	counterAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	counterABI  = `[{"type":"function","name":"value","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`
)

type nopClient struct {
	networkType string
}

func (c *nopClient) NetworkType() string { return c.networkType }
func (c *nopClient) BalanceOf(ctx context.Context, address contract.Address, block contract.BlockID) (contract.Integer, error) {
	return "0x0", nil
}
func (c *nopClient) Call(ctx context.Context, address contract.Address, data []byte, options contract.Options) ([]byte, error) {
	return nil, nil
}
func (c *nopClient) Invoke(ctx context.Context, address contract.Address, data []byte, options contract.Options) (contract.TxID, error) {
	return nil, nil
}
func (c *nopClient) FilterLogs(ctx context.Context, address contract.Address, topic []byte, from, to int64) ([]contract.Log, error) {
	return nil, nil
}
func (c *nopClient) BlockHeight(ctx context.Context) (int64, error) { return 0, nil }

func newTestRegistry(t *testing.T) *Registry {
	db, err := database.OpenDatabase(database.Config{Driver: database.DriverSQLite, DBName: ":memory:"}, log.New())
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	repo, err := database.NewRepository[Deployment](db, TableDeployment)
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	r, err := New(repo, 2, log.New())
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	return r
}

func counterArtifact(t *testing.T, name string) *artifact.Artifact {
	entries, err := contract.ParseABI([]byte(counterABI))
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	return &artifact.Artifact{Name: name, Code: []byte("0x6080"), ABI: entries}
}

func Test_RegistryArtifacts(t *testing.T) {
	r := newTestRegistry(t)

	name, err := r.AddArtifact(counterArtifact(t, "Counter"))
	assert.NoError(t, err)
	assert.Equal(t, "Counter", name)
	_, err = r.AddArtifact(counterArtifact(t, "Counter"))
	assert.Error(t, err)

	name, err = r.AddArtifact(counterArtifact(t, ""))
	assert.NoError(t, err)
	assert.Equal(t, contract.FallbackName([]byte("0x6080")), name)
	assert.Equal(t, []string{"Counter", name}, r.ArtifactNames())

	bad := counterArtifact(t, "Bad")
	bad.ABI = append(bad.ABI, bad.ABI[0])
	_, err = r.AddArtifact(bad)
	assert.True(t, contract.ErrorCodeDuplicateSignature.Equals(err), "%+v", err)

	_, err = r.Artifact("Missing")
	assert.True(t, contract.ErrorCodeNotFoundBinding.Equals(err), "%+v", err)
}

func Test_RegistryBinding(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.AddArtifact(counterArtifact(t, "Counter"))
	assert.NoError(t, err)
	assert.NoError(t, r.AddClient("local", &nopClient{networkType: "eth"}))
	assert.Error(t, r.AddClient("local", &nopClient{networkType: "eth"}))
	assert.Equal(t, []string{"local"}, r.Networks())

	b1, err := r.Binding("eth", "Counter")
	assert.NoError(t, err)
	b2, err := r.Binding("eth", "Counter")
	assert.NoError(t, err)
	assert.Same(t, b1, b2)

	_, err = r.Binding("unknown", "Counter")
	assert.Error(t, err)

	i1, err := r.Instance("local", "Counter", counterAddr)
	assert.NoError(t, err)
	i2, err := r.Instance("local", "Counter", counterAddr)
	assert.NoError(t, err)
	assert.NotSame(t, i1, i2)
	assert.Same(t, i1.Binding(), i2.Binding())
	assert.Equal(t, "Counter("+counterAddr+")", i1.String())

	_, err = r.Instance("remote", "Counter", counterAddr)
	assert.True(t, contract.ErrorCodeNotFoundNetwork.Equals(err), "%+v", err)
}

func Test_RegistryDeployments(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.AddArtifact(counterArtifact(t, "Counter"))
	assert.NoError(t, err)
	assert.NoError(t, r.AddClient("local", &nopClient{networkType: "eth"}))

	d, err := r.Register(ctx, "local", "Counter", counterAddr)
	assert.NoError(t, err)
	assert.True(t, d.ID > 0)
	again, err := r.Register(ctx, "local", "Counter", counterAddr)
	assert.NoError(t, err)
	assert.Equal(t, d.ID, again.ID)

	_, err = r.Register(ctx, "local", "Missing", counterAddr)
	assert.True(t, contract.ErrorCodeNotFoundBinding.Equals(err), "%+v", err)
	_, err = r.Register(ctx, "remote", "Counter", counterAddr)
	assert.True(t, contract.ErrorCodeNotFoundNetwork.Equals(err), "%+v", err)
	_, err = r.Register(ctx, "local", "Counter", "")
	assert.True(t, contract.ErrorCodeInvalidParam.Equals(err), "%+v", err)

	page, err := r.Deployments(ctx, "local", database.Pageable{})
	assert.NoError(t, err)
	assert.Equal(t, 1, page.TotalElements)
	if assert.Len(t, page.Content, 1) {
		assert.Equal(t, counterAddr, page.Content[0].Address)
	}

	assert.NoError(t, r.Unregister(ctx, "local", "Counter", counterAddr))
	page, err = r.Deployments(ctx, "local", database.Pageable{})
	assert.NoError(t, err)
	assert.Equal(t, 0, page.TotalElements)
}
