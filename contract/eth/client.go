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
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	ethLog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"

	"github.com/icon-project/contract-binder/contract"
)

const (
	NetworkTypeEth = "eth"
	NetworkTypeBSC = "bsc"
)

var (
	DefaultGasLimit = uint64(8000000)
	NetworkTypes    = []string{
		NetworkTypeEth,
		NetworkTypeBSC,
	}
)

func init() {
	contract.RegisterCodec(&Codec{}, NetworkTypes...)
	contract.RegisterClientFactory(NewClient, NetworkTypes...)
}

// Client is the JSON-RPC implementation of contract.Client for EVM networks.
type Client struct {
	*ethclient.Client
	chainID     *big.Int
	signer      types.Signer
	networkType string
	opt         ClientOption
	l           log.Logger
}

type ClientOption struct {
	TransportLogLevel contract.LogLevel `json:"transport_log_level,omitempty"`
}

func NewClient(networkType string, endpoint string, options contract.Options, l log.Logger) (contract.Client, error) {
	opt := &ClientOption{}
	if err := contract.DecodeOptions(options, opt); err != nil {
		return nil, err
	}
	opt.TransportLogLevel = contract.LogLevel(contract.EnsureTransportLogLevel(opt.TransportLogLevel.Level()))
	ethLog.Root().SetHandler(ethLog.FuncHandler(func(r *ethLog.Record) error {
		l.Log(log.Level(r.Lvl+1), r.Msg)
		return nil
	}))
	rc, err := rpc.DialOptions(
		context.Background(),
		endpoint,
		rpc.WithHTTPClient(contract.NewHttpClient(opt.TransportLogLevel.Level(), l)))
	if err != nil {
		return nil, errors.Wrapf(err, "fail to DialOptions err:%s", err.Error())
	}
	return NewClientWithRPC(networkType, rc, *opt, l)
}

// NewClientWithRPC wraps an established rpc.Client, resolving the chain id.
func NewClientWithRPC(networkType string, rc *rpc.Client, opt ClientOption, l log.Logger) (*Client, error) {
	switch networkType {
	case NetworkTypeEth, NetworkTypeBSC:
	default:
		return nil, errors.Errorf("not supported networkType:%s", networkType)
	}
	c := ethclient.NewClient(rc)
	chainID, err := c.ChainID(context.Background())
	if err != nil {
		return nil, errors.Wrapf(err, "fail to ChainID err:%s", err.Error())
	}
	return &Client{
		Client:      c,
		chainID:     chainID,
		signer:      types.LatestSignerForChainID(chainID),
		networkType: networkType,
		opt:         opt,
		l:           l,
	}, nil
}

func (c *Client) NetworkType() string {
	return c.networkType
}

func addressOf(address contract.Address) (common.Address, error) {
	if !common.IsHexAddress(string(address)) {
		return common.Address{}, contract.ErrorCodeInvalidParam.Errorf("invalid address:%s", address)
	}
	return common.HexToAddress(string(address)), nil
}

func blockNumberOf(block contract.BlockID) (*big.Int, error) {
	switch block.OrLatest() {
	case contract.BlockLatest:
		return nil, nil
	case contract.BlockPending:
		return big.NewInt(int64(rpc.PendingBlockNumber)), nil
	case contract.BlockEarliest:
		return big.NewInt(int64(rpc.EarliestBlockNumber)), nil
	}
	v, err := contract.IntegerOf(string(block))
	if err != nil {
		return nil, contract.ErrorCodeInvalidParam.Wrapf(err, "invalid block:%s", block)
	}
	bn, err := v.AsBigInt()
	if err != nil || bn.Sign() < 0 {
		return nil, contract.ErrorCodeInvalidParam.Errorf("invalid block:%s", block)
	}
	return bn, nil
}

func (c *Client) BalanceOf(ctx context.Context, address contract.Address, block contract.BlockID) (contract.Integer, error) {
	addr, err := addressOf(address)
	if err != nil {
		return "", err
	}
	bn, err := blockNumberOf(block)
	if err != nil {
		return "", err
	}
	b, err := c.Client.BalanceAt(ctx, addr, bn)
	if err != nil {
		return "", errors.Wrapf(err, "fail to BalanceAt err:%s", err.Error())
	}
	return contract.FromBigInt(b), nil
}

type CallOptions struct {
	From  contract.Address `json:"from,omitempty"`
	Block contract.BlockID `json:"block,omitempty"`
}

func (c *Client) Call(ctx context.Context, address contract.Address, data []byte, options contract.Options) ([]byte, error) {
	to, err := addressOf(address)
	if err != nil {
		return nil, err
	}
	opt := &CallOptions{}
	if err = contract.DecodeOptions(options, opt); err != nil {
		return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid options err:%s", err.Error())
	}
	p := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	if len(opt.From) > 0 {
		if p.From, err = addressOf(opt.From); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Errorf("invalid 'from'")
		}
	}
	bn, err := blockNumberOf(opt.Block)
	if err != nil {
		return nil, err
	}
	bs, err := c.Client.CallContract(ctx, p, bn)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to CallContract err:%s", err.Error())
	}
	return bs, nil
}

type InvokeOptions struct {
	From      contract.Address `json:"from,omitempty"`
	Value     contract.Integer `json:"value,omitempty"`
	GasPrice  contract.Integer `json:"gasPrice,omitempty"`
	GasLimit  contract.Integer `json:"gasLimit,omitempty"`
	GasFeeCap contract.Integer `json:"gasFeeCap,omitempty"`
	GasTipCap contract.Integer `json:"gasTipCap,omitempty"`
	Nonce     contract.Integer `json:"nonce,omitempty"`
	Signature contract.Bytes   `json:"signature,omitempty"`
	Estimate  contract.Boolean `json:"estimate,omitempty"`
}

type baseTx struct {
	To        *common.Address
	Data      []byte
	Value     *big.Int
	GasLimit  uint64
	Nonce     uint64
	GasPrice  *big.Int // LegacyTx
	GasTipCap *big.Int // DynamicFeeTx
	GasFeeCap *big.Int // DynamicFeeTx
}

func (c *Client) txData(p *baseTx) types.TxData {
	if p.GasPrice != nil {
		return &types.LegacyTx{
			Nonce:    p.Nonce,
			Gas:      p.GasLimit,
			Value:    p.Value,
			GasPrice: p.GasPrice,
			To:       p.To,
			Data:     p.Data,
		}
	}
	return &types.DynamicFeeTx{
		Nonce:     p.Nonce,
		Gas:       p.GasLimit,
		Value:     p.Value,
		ChainID:   c.chainID,
		GasFeeCap: p.GasFeeCap,
		GasTipCap: p.GasTipCap,
		To:        p.To,
		Data:      p.Data,
	}
}

func (c *Client) newBaseTx(ctx context.Context, to common.Address, opt *InvokeOptions, data []byte) (p *baseTx, err error) {
	p = &baseTx{
		To:       &to,
		Data:     data,
		GasLimit: DefaultGasLimit,
	}
	if len(opt.Value) > 0 {
		if p.Value, err = opt.Value.AsBigInt(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'value' err:%s", err.Error())
		}
	}
	if len(opt.GasLimit) > 0 {
		if p.GasLimit, err = opt.GasLimit.AsUint64(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'gasLimit' err:%s", err.Error())
		}
	}
	if len(opt.Nonce) > 0 {
		if p.Nonce, err = opt.Nonce.AsUint64(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'nonce' err:%s", err.Error())
		}
	}
	if len(opt.GasPrice) > 0 {
		if p.GasPrice, err = opt.GasPrice.AsBigInt(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'gasPrice' err:%s", err.Error())
		}
	}
	if len(opt.GasFeeCap) > 0 {
		if p.GasFeeCap, err = opt.GasFeeCap.AsBigInt(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'gasFeeCap' err:%s", err.Error())
		}
	}
	if len(opt.GasTipCap) > 0 {
		if p.GasTipCap, err = opt.GasTipCap.AsBigInt(); err != nil {
			return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid 'gasTipCap' err:%s", err.Error())
		}
	}
	if p.GasPrice != nil && (p.GasFeeCap != nil || p.GasTipCap != nil) {
		return nil, contract.ErrorCodeInvalidOption.Errorf("both gasPrice and (gasFeeCap or gasTipCap) specified")
	}
	if opt.Estimate && len(opt.GasLimit) == 0 {
		var gasLimit uint64
		if gasLimit, err = c.Client.EstimateGas(ctx, ethereum.CallMsg{
			To:    &to,
			Data:  p.Data,
			Value: p.Value,
		}); err != nil {
			return nil, errors.Wrapf(err, "fail to EstimateGas err:%s", err.Error())
		}
		p.GasLimit = gasLimit
		opt.GasLimit = contract.FromUint64(gasLimit)
	}
	return p, nil
}

// prepareSign fills nonce and fee fields which were not given by the caller.
func (c *Client) prepareSign(ctx context.Context, opt *InvokeOptions, p *baseTx) (err error) {
	if len(opt.GasLimit) == 0 {
		opt.GasLimit = contract.FromUint64(p.GasLimit)
	}
	if len(opt.Nonce) == 0 {
		if len(opt.From) == 0 {
			return contract.ErrorCodeInvalidOption.Errorf("required 'from'")
		}
		from, err := addressOf(opt.From)
		if err != nil {
			return contract.ErrorCodeInvalidOption.Errorf("invalid 'from'")
		}
		if p.Nonce, err = c.Client.PendingNonceAt(ctx, from); err != nil {
			return errors.Wrapf(err, "fail to PendingNonceAt err:%s", err.Error())
		}
		opt.Nonce = contract.FromUint64(p.Nonce)
	}
	if p.GasPrice != nil || (p.GasFeeCap != nil && p.GasTipCap != nil) {
		return nil
	}
	head, err := c.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "fail to HeaderByNumber err:%s", err.Error())
	}
	if head.BaseFee == nil {
		if p.GasPrice, err = c.Client.SuggestGasPrice(ctx); err != nil {
			return errors.Wrapf(err, "fail to SuggestGasPrice err:%s", err.Error())
		}
		opt.GasPrice = contract.FromBigInt(p.GasPrice)
		return nil
	}
	if p.GasTipCap == nil {
		if p.GasTipCap, err = c.Client.SuggestGasTipCap(ctx); err != nil {
			return errors.Wrapf(err, "fail to SuggestGasTipCap err:%s", err.Error())
		}
		opt.GasTipCap = contract.FromBigInt(p.GasTipCap)
	}
	if p.GasFeeCap == nil {
		p.GasFeeCap = new(big.Int).Add(p.GasTipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		opt.GasFeeCap = contract.FromBigInt(p.GasFeeCap)
	}
	if p.GasFeeCap.Cmp(p.GasTipCap) < 0 {
		return contract.ErrorCodeInvalidOption.Errorf("gasFeeCap (%v) < gasTipCap (%v)", p.GasFeeCap, p.GasTipCap)
	}
	return nil
}

// Invoke sends a transaction calling data at address. Without a 'signature'
// option it returns a contract.RequireSignatureError carrying the hash to sign
// and the options completed with nonce and fees, to be sent back with the signature.
func (c *Client) Invoke(ctx context.Context, address contract.Address, data []byte, options contract.Options) (contract.TxID, error) {
	to, err := addressOf(address)
	if err != nil {
		return nil, err
	}
	opt := &InvokeOptions{}
	if err = contract.DecodeOptions(options, opt); err != nil {
		return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "invalid options err:%s", err.Error())
	}
	p, err := c.newBaseTx(ctx, to, opt, data)
	if err != nil {
		return nil, err
	}
	if len(opt.Signature) == 0 {
		if err = c.prepareSign(ctx, opt, p); err != nil {
			return nil, err
		}
		if options, err = contract.EncodeOptions(opt); err != nil {
			return nil, err
		}
		return nil, contract.NewRequireSignatureError(c.signer.Hash(types.NewTx(c.txData(p))).Bytes(), options)
	}
	tx, err := types.NewTx(c.txData(p)).WithSignature(c.signer, opt.Signature)
	if err != nil {
		return nil, contract.ErrorCodeInvalidOption.Wrapf(err, "fail to WithSignature err:%s", err.Error())
	}
	if err = c.Client.SendTransaction(ctx, tx); err != nil {
		return nil, errors.Wrapf(err, "fail to SendTransaction err:%s", err.Error())
	}
	c.l.Debugf("Invoke to:%s tx:%s", to, tx.Hash())
	return tx.Hash().Hex(), nil
}

func (c *Client) FilterLogs(ctx context.Context, address contract.Address, topic []byte, from, to int64) ([]contract.Log, error) {
	addr, err := addressOf(address)
	if err != nil {
		return nil, err
	}
	fq := ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		Addresses: []common.Address{addr},
	}
	if to > 0 {
		fq.ToBlock = big.NewInt(to)
	}
	if len(topic) > 0 {
		fq.Topics = [][]common.Hash{{common.BytesToHash(topic)}}
	}
	logs, err := c.Client.FilterLogs(ctx, fq)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to FilterLogs err:%s", err.Error())
	}
	c.l.Tracef("FilterLogs address:%s from:%d to:%d logs:%d", address, from, to, len(logs))
	ret := make([]contract.Log, len(logs))
	for i, el := range logs {
		ret[i] = NewLog(el)
	}
	return ret, nil
}

func NewLog(el types.Log) contract.Log {
	topics := make([][]byte, len(el.Topics))
	for i, t := range el.Topics {
		topics[i] = t.Bytes()
	}
	return contract.Log{
		Address:     contract.Address(el.Address.String()),
		Topics:      topics,
		Data:        el.Data,
		BlockHeight: int64(el.BlockNumber),
		TxID:        el.TxHash.Hex(),
		Index:       int(el.Index),
	}
}

func (c *Client) TxResult(ctx context.Context, id contract.TxID) (*contract.TxResult, error) {
	txh, err := contract.BytesOf(id)
	if err != nil || len(txh) != common.HashLength {
		return nil, contract.ErrorCodeInvalidParam.Errorf("invalid txID:%v", id)
	}
	txr, err := c.TransactionReceipt(ctx, common.BytesToHash(txh))
	if err != nil {
		if err == ethereum.NotFound {
			return nil, contract.ErrorCodeNotFoundTransaction.Wrapf(err, "not found txID:%v", id)
		}
		return nil, errors.Wrapf(err, "fail to TransactionReceipt err:%s", err.Error())
	}
	r := &contract.TxResult{
		TxID:        txr.TxHash.Hex(),
		BlockHeight: txr.BlockNumber.Int64(),
		Success:     txr.Status == types.ReceiptStatusSuccessful,
		GasUsed:     contract.FromUint64(txr.GasUsed),
		Logs:        make([]contract.Log, len(txr.Logs)),
	}
	for i, el := range txr.Logs {
		r.Logs[i] = NewLog(*el)
	}
	return r, nil
}

func (c *Client) BlockHeight(ctx context.Context) (int64, error) {
	n, err := c.Client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "fail to BlockNumber err:%s", err.Error())
	}
	return int64(n), nil
}
