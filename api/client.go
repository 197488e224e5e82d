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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"

	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/database"
	"github.com/icon-project/contract-binder/registry"
)

// Signer signs the hash returned with contract.ErrorCodeRequireSignature.
type Signer interface {
	Address() contract.Address
	Sign(data []byte) ([]byte, error)
}

type Client struct {
	*http.Client
	baseUrl        string
	baseApiUrl     string
	baseMonitorUrl string
	lv             log.Level
	l              log.Logger
}

func NewClient(url string, transportLogLevel log.Level, l log.Logger) *Client {
	l = Logger(l)
	return &Client{
		Client:         contract.NewHttpClient(transportLogLevel, l),
		baseUrl:        url,
		baseApiUrl:     url + GroupUrlApi,
		baseMonitorUrl: url + GroupUrlMonitor,
		lv:             transportLogLevel,
		l:              l,
	}
}

func (c *Client) apiUrl(format string, args ...interface{}) string {
	return c.baseApiUrl + fmt.Sprintf(format, args...)
}

func (c *Client) do(method, url string, reqPtr, respPtr interface{}) (resp *http.Response, err error) {
	var reqBody io.Reader
	if reqPtr != nil {
		var b []byte
		if b, err = json.Marshal(reqPtr); err != nil {
			c.l.Debugf("fail to encode Request err:%+v", err)
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}
	if !strings.HasPrefix(url, c.baseApiUrl) {
		url = c.baseApiUrl + url
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		c.l.Debugf("fail to NewRequest err:%+v", err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.l.Debugf("url=%s", req.URL)
	if resp, err = c.Client.Do(req); err != nil {
		return
	}
	if resp.StatusCode/100 != 2 {
		er := &ErrorResponse{}
		if err = UnmarshalBody(resp.Body, er); err != nil {
			c.l.Debugf("fail to decode ErrorResponse err:%+v", err)
			err = errors.Errorf("server response not success, StatusCode:%d",
				resp.StatusCode)
			return
		}
		err = er
		return
	}
	if respPtr != nil {
		if err = UnmarshalBody(resp.Body, respPtr); err != nil {
			c.l.Debugf("fail to decode resp err:%+v", err)
			return
		}
	}
	return
}

func (c *Client) Networks() ([]string, error) {
	var r []string
	if _, err := c.do(http.MethodGet, c.baseApiUrl, nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Bindings() ([]string, error) {
	var r []string
	if _, err := c.do(http.MethodGet, c.apiUrl(UrlBindings), nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Binding(name string) (*BindingInfo, error) {
	r := &BindingInfo{}
	if _, err := c.do(http.MethodGet, c.apiUrl("%s/%s", UrlBindings, name), nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) DeployData(name string, req *DeployRequest) (string, error) {
	r := &DeployResponse{}
	if _, err := c.do(http.MethodPost, c.apiUrl("%s/%s%s", UrlBindings, name, UrlDeploy), req, r); err != nil {
		return "", err
	}
	return r.Data, nil
}

func (c *Client) Register(network string, req *RegisterRequest) (*registry.Deployment, error) {
	r := &registry.Deployment{}
	if _, err := c.do(http.MethodPost, c.apiUrl("/%s%s", network, UrlDeployments), req, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Unregister(network string, req *RegisterRequest) error {
	_, err := c.do(http.MethodDelete, c.apiUrl("/%s%s", network, UrlDeployments), req, nil)
	return err
}

func (c *Client) Deployments(network string, p database.Pageable) (*database.Page[registry.Deployment], error) {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", fmt.Sprint(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", fmt.Sprint(p.Size))
	}
	if len(p.Sort) > 0 {
		q.Set("sort", p.Sort)
	}
	u := c.apiUrl("/%s%s", network, UrlDeployments)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	r := &database.Page[registry.Deployment]{}
	if _, err := c.do(http.MethodGet, u, nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) instanceUrl(network, name string, addr contract.Address, path string) string {
	return c.apiUrl("/%s/%s/%s%s", network, name, addr, path)
}

func (c *Client) Balance(network, name string, addr contract.Address, block contract.BlockID) (contract.Integer, error) {
	u := c.instanceUrl(network, name, addr, UrlBalance)
	if len(block) > 0 {
		u += "?block=" + url.QueryEscape(string(block))
	}
	var r contract.Integer
	if _, err := c.do(http.MethodGet, u, nil, &r); err != nil {
		return "", err
	}
	return r, nil
}

func (c *Client) FilterEvents(network, name string, addr contract.Address, event string, from, to int64) ([]*contract.Event, error) {
	q := url.Values{}
	q.Set("from", fmt.Sprint(from))
	if to > 0 {
		q.Set("to", fmt.Sprint(to))
	}
	var r []*contract.Event
	u := c.instanceUrl(network, name, addr, UrlEvents+"/"+event) + "?" + q.Encode()
	if _, err := c.do(http.MethodGet, u, nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Result(network, name string, addr contract.Address, id contract.TxID) (*ResultResponse, error) {
	r := &ResultResponse{}
	if _, err := c.do(http.MethodGet, c.instanceUrl(network, name, addr, fmt.Sprintf("%s/%v", UrlResult, id)), nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Call(network, name string, addr contract.Address, method string, req *Request) ([]interface{}, error) {
	var r []interface{}
	if _, err := c.do(http.MethodGet, c.instanceUrl(network, name, addr, "/"+method), req, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Transact invokes method, and when s is given, signs the returned hash and
// submits again with the signature.
func (c *Client) Transact(network, name string, addr contract.Address, method string, req *Request, s Signer) (contract.TxID, error) {
	u := c.instanceUrl(network, name, addr, "/"+method)
	if s != nil {
		if req.Options == nil {
			req.Options = make(contract.Options)
		}
		if _, ok := req.Options["from"]; !ok {
			req.Options["from"] = s.Address()
		}
	}
	var txID contract.TxID
	_, err := c.do(http.MethodPost, u, req, &txID)
	if s == nil || err == nil || !contract.ErrorCodeRequireSignature.Equals(err) {
		return txID, err
	}
	er := err.(*ErrorResponse)
	rse := &RequireSignatureError{}
	if err = er.UnmarshalData(rse); err != nil {
		return nil, err
	}
	sig, err := s.Sign(rse.Data)
	if err != nil {
		return nil, err
	}
	opt := rse.Options
	if opt == nil {
		opt = make(contract.Options)
	}
	opt["signature"] = contract.Bytes(sig)
	req.Options = opt
	_, err = c.do(http.MethodPost, u, req, &txID)
	return txID, err
}

func (c *Client) monitorUrl(format string, args ...interface{}) string {
	return c.baseMonitorUrl + fmt.Sprintf(format, args...)
}

func (c *Client) wsID(conn *websocket.Conn) string {
	return conn.LocalAddr().String()
}

func (c *Client) wsConnect(ctx context.Context, url string) (*websocket.Conn, error) {
	url = strings.Replace(url, "http", "ws", 1)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if err == websocket.ErrBadHandshake {
			er := &ErrorResponse{}
			if err = UnmarshalBody(resp.Body, er); err != nil {
				err = errors.Errorf("server response not success, StatusCode:%d",
					resp.StatusCode)
			} else {
				err = er
			}
		}
		c.l.Debugf("fail to Dial url:%s err:%+v", url, err)
		return nil, err
	}
	id := c.wsID(conn)
	pingHandler := conn.PingHandler()
	conn.SetPingHandler(func(appData string) error {
		c.l.Logf(c.lv, "[%s]wsPing=%s", id, appData)
		return pingHandler(appData)
	})
	c.l.Debugf("[%s]wsConnect", id)
	return conn, nil
}

func (c *Client) wsHandshake(ctx context.Context, conn *websocket.Conn, req interface{}) error {
	var err error
	id := c.wsID(conn)
	if err = c.wsWrite(conn, req); err != nil {
		c.l.Debugf("[%s]fail to wsWrite err:%+v", id, err)
		return err
	}
	tctx, cancel := context.WithTimeout(ctx, WsHandshakeTimeout)
	defer cancel()
	er := &ErrorResponse{}
	if err = c.wsRead(tctx, conn, er); err != nil {
		c.l.Debugf("[%s]fail to wsRead err:%+v", id, err)
		return err
	}
	if !errors.Success.Equals(er) {
		return er
	}
	return nil
}

func (c *Client) wsClose(conn *websocket.Conn) {
	c.l.Debugf("[%s]wsClose", c.wsID(conn))
	conn.Close()
}

func (c *Client) wsRead(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	id := c.wsID(conn)
	ch := make(chan interface{}, 1)
	go func() {
		_, b, err := conn.ReadMessage()
		if err != nil {
			ch <- err
		} else {
			ch <- b
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case inf := <-ch:
		switch t := inf.(type) {
		case error:
			return t
		case []byte:
			if err := json.Unmarshal(t, v); err != nil {
				return err
			}
			c.l.Logf(c.lv, "[%s]wsRead=%s", id, t)
			return nil
		default:
			c.l.Panicln("unreachable code")
			return nil
		}
	}
}

func (c *Client) wsWrite(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.l.Logf(c.lv, "[%s]wsWrite=%s", c.wsID(conn), b)
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) wsReadLoop(ctx context.Context, conn *websocket.Conn, cb func(b []byte) error) error {
	id := c.wsID(conn)
	ech := make(chan error, 1)
	go func() {
		defer func() {
			c.l.Debugf("[%s]wsReadLoop finish", id)
		}()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				ech <- err
				break
			}
			c.l.Logf(c.lv, "[%s]wsReadLoop=%s", id, b)
			if err = cb(b); err != nil {
				ech <- err
				break
			}
		}
	}()

	select {
	case <-ctx.Done():
		c.l.Debugf("[%s]wsReadLoop context Done", id)
		return ctx.Err()
	case err := <-ech:
		c.l.Debugf("[%s]wsReadLoop err:%+v", id, err)
		return err
	}
}

// MonitorEvent streams the requested events until ctx is done or cb fails.
func (c *Client) MonitorEvent(ctx context.Context, network, name string, addr contract.Address, req *MonitorRequest, cb contract.EventCallback) error {
	conn, err := c.wsConnect(ctx, c.monitorUrl("/%s/%s/%s", network, name, addr))
	if err != nil {
		return err
	}
	defer c.wsClose(conn)
	if err = c.wsHandshake(ctx, conn, req); err != nil {
		return err
	}
	return c.wsReadLoop(ctx, conn, func(b []byte) error {
		e := &contract.Event{}
		if err := json.Unmarshal(b, e); err != nil {
			return err
		}
		return cb(e)
	})
}
