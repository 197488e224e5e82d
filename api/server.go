package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/database"
	"github.com/icon-project/contract-binder/registry"
)

const (
	ParamNetwork       = "network"
	ParamName          = "name"
	ParamAddress       = "address"
	ParamMethod        = "method"
	ParamEvent         = "event"
	ParamTxID          = "txid"
	ContextInstance    = "instance"
	ContextRequest     = "request"
	GroupUrlApi        = "/api"
	GroupUrlMonitor    = "/monitor"
	UrlBindings        = "/bindings"
	UrlDeploy          = "/deploy"
	UrlDeployments     = "/deployments"
	UrlBalance         = "/balance"
	UrlEvents          = "/events"
	UrlResult          = "/result"
	WsHandshakeTimeout = time.Second * 3

	DefaultNetworkType = "eth"
)

func Logger(l log.Logger) log.Logger {
	return l.WithFields(log.Fields{log.FieldKeyModule: "api"})
}

type Server struct {
	e    *echo.Echo
	addr string
	r    *registry.Registry
	u    websocket.Upgrader
	lv   log.Level
	l    log.Logger
}

func NewServer(addr string, r *registry.Registry, transportLogLevel log.Level, l log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HttpErrorHandler
	s := &Server{
		e:    e,
		addr: addr,
		r:    r,
		lv:   contract.EnsureTransportLogLevel(transportLogLevel),
		l:    Logger(l),
	}
	e.Use(
		middleware.CORSWithConfig(middleware.CORSConfig{
			MaxAge: 3600,
		}),
		middleware.Recover())
	s.RegisterAPIHandler(e.Group(GroupUrlApi))
	s.RegisterMonitorHandler(e.Group(GroupUrlMonitor))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.e.ServeHTTP(w, req)
}

func (s *Server) Start() error {
	s.l.Infof("starting the server addr:%s", s.addr)
	return s.e.Start(s.addr)
}

func (s *Server) Stop() error {
	s.l.Infoln("shutting down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// Request carries positional Args or named Params of a function, and options
// merged over the default options of the bound function.
type Request struct {
	Args    []interface{}    `json:"args,omitempty" query:"args"`
	Params  contract.Params  `json:"params,omitempty" query:"params"`
	Options contract.Options `json:"options,omitempty" query:"options"`
}

// ArgsOf returns req.Args, or req.Params ordered by the names of inputs.
func (req *Request) ArgsOf(inputs contract.Arguments) ([]interface{}, error) {
	if len(req.Args) > 0 || len(req.Params) == 0 {
		return req.Args, nil
	}
	args := make([]interface{}, len(inputs))
	for i, in := range inputs {
		v, ok := req.Params[in.Name]
		if !ok || len(in.Name) == 0 {
			return nil, contract.ErrorCodeInvalidParam.Errorf("required param:%s", in.Name)
		}
		args[i] = v
	}
	return args, nil
}

type DeployRequest struct {
	NetworkType string        `json:"networkType,omitempty" query:"networkType"`
	Args        []interface{} `json:"args,omitempty"`
}

type DeployResponse struct {
	Data string `json:"data"`
}

type ResultResponse struct {
	*contract.TxResult
	Events []*contract.Event `json:"events"`
}

type RegisterRequest struct {
	Name    string           `json:"name" validate:"required"`
	Address contract.Address `json:"address" validate:"required"`
}

type ArgumentInfo struct {
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type"`
	Indexed    bool           `json:"indexed,omitempty"`
	Components []ArgumentInfo `json:"components,omitempty"`
}

func argumentInfos(as []contract.Argument) []ArgumentInfo {
	r := make([]ArgumentInfo, len(as))
	for i, a := range as {
		r[i] = ArgumentInfo{
			Name:       a.Name,
			Type:       a.Type,
			Indexed:    a.Indexed,
			Components: argumentInfos(a.Components),
		}
	}
	return r
}

type FunctionInfo struct {
	Name      string         `json:"name"`
	Signature string         `json:"signature"`
	Inputs    []ArgumentInfo `json:"inputs"`
	Outputs   []ArgumentInfo `json:"outputs"`
	Constant  bool           `json:"constant"`
	Payable   bool           `json:"payable"`
}

type EventInfo struct {
	Name      string         `json:"name"`
	Signature string         `json:"signature"`
	Inputs    []ArgumentInfo `json:"inputs"`
	Anonymous bool           `json:"anonymous"`
}

type BindingInfo struct {
	Name        string         `json:"name"`
	Doc         string         `json:"doc"`
	Functions   []FunctionInfo `json:"functions"`
	Events      []EventInfo    `json:"events"`
	Constructor []ArgumentInfo `json:"constructor,omitempty"`
}

func NewBindingInfo(b *contract.Binding) *BindingInfo {
	cfg := b.Config()
	r := &BindingInfo{
		Name:      b.Name(),
		Doc:       b.Doc(),
		Functions: make([]FunctionInfo, 0),
		Events:    make([]EventInfo, 0),
	}
	for _, f := range cfg.Functions() {
		r.Functions = append(r.Functions, FunctionInfo{
			Name:      f.Name(),
			Signature: f.Signature(),
			Inputs:    argumentInfos(f.Inputs()),
			Outputs:   argumentInfos(f.Outputs()),
			Constant:  f.Constant(),
			Payable:   f.Payable(),
		})
	}
	for _, e := range cfg.Events() {
		r.Events = append(r.Events, EventInfo{
			Name:      e.Name(),
			Signature: e.Signature(),
			Inputs:    argumentInfos(e.Inputs()),
			Anonymous: e.Anonymous(),
		})
	}
	if ctor := cfg.Constructor(); ctor != nil {
		r.Constructor = argumentInfos(ctor.Inputs())
	}
	return r
}

func (s *Server) RegisterAPIHandler(g *echo.Group) {
	g.Use(middleware.BodyDump(func(c echo.Context, reqBody []byte, resBody []byte) {
		s.l.Debugf("url=%s", c.Request().RequestURI)
		s.l.Logf(s.lv, "request=%s", reqBody)
		s.l.Logf(s.lv, "response=%s", resBody)
	}))
	g.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.r.Networks())
	})

	bindingApi := g.Group(UrlBindings)
	bindingApi.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.r.ArtifactNames())
	})
	bindingApi.GET("/:"+ParamName, func(c echo.Context) error {
		nt := c.QueryParam("networkType")
		if len(nt) == 0 {
			nt = DefaultNetworkType
		}
		b, err := s.r.Binding(nt, c.Param(ParamName))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, NewBindingInfo(b))
	})
	bindingApi.POST("/:"+ParamName+UrlDeploy, func(c echo.Context) error {
		req := &DeployRequest{}
		if err := BindQueryParamsAndUnmarshalBody(c, req); err != nil {
			s.l.Debugf("fail to BindQueryParamsAndUnmarshalBody err:%+v", err)
			return echo.ErrBadRequest
		}
		if len(req.NetworkType) == 0 {
			req.NetworkType = DefaultNetworkType
		}
		b, err := s.r.Binding(req.NetworkType, c.Param(ParamName))
		if err != nil {
			return err
		}
		data, err := b.DeployData(req.Args...)
		if err != nil {
			s.l.Debugf("fail to DeployData err:%+v", err)
			return err
		}
		return c.JSON(http.StatusOK, &DeployResponse{Data: string(data)})
	})

	networkApi := g.Group("/:"+ParamNetwork, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := s.r.Client(c.Param(ParamNetwork)); err != nil {
				return err
			}
			return next(c)
		}
	})
	networkApi.GET(UrlDeployments, func(c echo.Context) error {
		p := &database.Pageable{}
		if err := c.Bind(p); err != nil {
			return echo.ErrBadRequest
		}
		page, err := s.r.Deployments(c.Request().Context(), c.Param(ParamNetwork), *p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, page)
	})
	networkApi.POST(UrlDeployments, func(c echo.Context) error {
		req := &RegisterRequest{}
		if err := UnmarshalRequestBody(c, req); err != nil {
			return echo.ErrBadRequest
		}
		if err := c.Validate(req); err != nil {
			return err
		}
		d, err := s.r.Register(c.Request().Context(), c.Param(ParamNetwork), req.Name, req.Address)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, d)
	})
	networkApi.DELETE(UrlDeployments, func(c echo.Context) error {
		req := &RegisterRequest{}
		if err := UnmarshalRequestBody(c, req); err != nil {
			return echo.ErrBadRequest
		}
		if err := c.Validate(req); err != nil {
			return err
		}
		if err := s.r.Unregister(c.Request().Context(), c.Param(ParamNetwork), req.Name, req.Address); err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	})

	instanceApi := networkApi.Group("/:"+ParamName+"/:"+ParamAddress, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inst, err := s.r.Instance(c.Param(ParamNetwork), c.Param(ParamName), contract.Address(c.Param(ParamAddress)))
			if err != nil {
				return err
			}
			c.Set(ContextInstance, inst)
			return next(c)
		}
	})
	instanceApi.GET(UrlBalance, func(c echo.Context) error {
		inst := c.Get(ContextInstance).(*contract.Instance)
		v, err := inst.Balance(c.Request().Context(), contract.BlockID(c.QueryParam("block")))
		if err != nil {
			s.l.Debugf("fail to Balance err:%+v", err)
			return err
		}
		return c.JSON(http.StatusOK, v)
	})
	instanceApi.GET(UrlEvents+"/:"+ParamEvent, func(c echo.Context) error {
		inst := c.Get(ContextInstance).(*contract.Instance)
		from, to, err := heightRange(c)
		if err != nil {
			return err
		}
		l, err := inst.FilterEvents(c.Request().Context(), c.Param(ParamEvent), from, to)
		if err != nil {
			s.l.Debugf("fail to FilterEvents err:%+v", err)
			return err
		}
		return c.JSON(http.StatusOK, l)
	})
	instanceApi.GET(UrlResult+"/:"+ParamTxID, func(c echo.Context) error {
		inst := c.Get(ContextInstance).(*contract.Instance)
		r, events, err := inst.Result(c.Request().Context(), c.Param(ParamTxID))
		if err != nil {
			s.l.Debugf("fail to Result err:%+v", err)
			return err
		}
		return c.JSON(http.StatusOK, &ResultResponse{TxResult: r, Events: events})
	})

	methodApi := instanceApi.Group("/:"+ParamMethod, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := &Request{}
			if err := BindQueryParamsAndUnmarshalBody(c, req); err != nil {
				s.l.Debugf("fail to BindQueryParamsAndUnmarshalBody err:%+v", err)
				return echo.ErrBadRequest
			}
			c.Set(ContextRequest, req)

			inst := c.Get(ContextInstance).(*contract.Instance)
			pm := c.Param(ParamMethod)
			f, found := inst.Function(pm)
			if !found {
				return contract.ErrorCodeNotFoundMethod.Errorf("not found method:%s", pm)
			}
			hm := c.Request().Method
			if f.Constant() && hm != http.MethodGet {
				return contract.ErrorCodeMismatchReadonly.Errorf("method:%s is readonly, use GET", pm)
			}
			if !f.Constant() && hm != http.MethodPost {
				return contract.ErrorCodeMismatchReadonly.Errorf("method:%s is not readonly, use POST", pm)
			}
			return next(c)
		}
	})
	methodApi.GET("", func(c echo.Context) error {
		req := c.Get(ContextRequest).(*Request)
		inst := c.Get(ContextInstance).(*contract.Instance)
		f, _ := inst.Function(c.Param(ParamMethod))
		args, err := req.ArgsOf(f.Inputs())
		if err != nil {
			return err
		}
		ret, err := inst.Call(c.Request().Context(), f.Name(), req.Options, args...)
		if err != nil {
			s.l.Errorf("fail to Call err:%+v", err)
			return err
		}
		return c.JSON(http.StatusOK, ret)
	})
	methodApi.POST("", func(c echo.Context) error {
		req := c.Get(ContextRequest).(*Request)
		inst := c.Get(ContextInstance).(*contract.Instance)
		f, _ := inst.Function(c.Param(ParamMethod))
		args, err := req.ArgsOf(f.Inputs())
		if err != nil {
			return err
		}
		txID, err := inst.Transact(c.Request().Context(), f.Name(), req.Options, args...)
		if err != nil {
			if !contract.ErrorCodeRequireSignature.Equals(err) {
				s.l.Errorf("fail to Transact err:%+v", err)
			}
			return err
		}
		return c.JSON(http.StatusOK, txID)
	})
}

// heightRange reads "from" and "to" query params, a missing to means the latest height.
func heightRange(c echo.Context) (from, to int64, err error) {
	if v := c.QueryParam("from"); len(v) > 0 {
		if from, err = strconv.ParseInt(v, 0, 64); err != nil {
			return 0, 0, contract.ErrorCodeInvalidParam.Errorf("invalid from:%s", v)
		}
	}
	if v := c.QueryParam("to"); len(v) > 0 {
		if to, err = strconv.ParseInt(v, 0, 64); err != nil {
			return 0, 0, contract.ErrorCodeInvalidParam.Errorf("invalid to:%s", v)
		}
	}
	return from, to, nil
}

type MonitorRequest struct {
	Events []string `json:"events" validate:"required,min=1"`
	Height int64    `json:"height"`
}

func (s *Server) wsID(conn *websocket.Conn) string {
	return conn.RemoteAddr().String()
}

func (s *Server) wsConnect(c echo.Context) (*websocket.Conn, error) {
	conn, err := s.u.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.l.Debugf("fail to Upgrade err:%+v", err)
		return nil, err
	}
	s.l.Debugf("[%s]wsConnect", s.wsID(conn))
	return conn, nil
}

func (s *Server) wsHandshake(conn *websocket.Conn, req interface{}, onSuccess func() error) error {
	var err error
	id := s.wsID(conn)
	ctx, cancel := context.WithTimeout(context.Background(), WsHandshakeTimeout)
	defer func() {
		cancel()
		er := &ErrorResponse{
			Code: errors.Success,
		}
		if err != nil {
			er.Code = errors.UnknownError
			er.Message = err.Error()
			if ec, ok := errors.CoderOf(err); ok {
				er.Code = ec.ErrorCode()
			}
		}
		if we := s.wsWrite(conn, er); we != nil {
			s.l.Debugf("[%s]fail to wsWrite err:%+v", id, we)
		}
	}()
	if err = s.wsRead(ctx, conn, req); err != nil {
		s.l.Debugf("[%s]fail to wsRead err:%+v", id, err)
		return err
	}
	err = onSuccess()
	return err
}

func (s *Server) wsClose(conn *websocket.Conn) {
	s.l.Debugf("[%s]wsClose", s.wsID(conn))
	conn.Close()
}

func (s *Server) wsRead(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	id := s.wsID(conn)
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
			s.l.Logf(s.lv, "[%s]wsRead=%s", id, t)
			return nil
		default:
			s.l.Panicln("unreachable code")
			return nil
		}
	}
}

func (s *Server) wsWrite(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.l.Logf(s.lv, "[%s]wsWrite=%s", s.wsID(conn), b)
	return conn.WriteMessage(websocket.TextMessage, b)
}

// wsReadLoop returns when the peer closes the connection or ctx is done.
func (s *Server) wsReadLoop(ctx context.Context, conn *websocket.Conn) error {
	id := s.wsID(conn)
	ech := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				ech <- err
				return
			}
		}
	}()
	select {
	case <-ctx.Done():
		s.l.Debugf("[%s]wsReadLoop context Done", id)
		return ctx.Err()
	case err := <-ech:
		s.l.Debugf("[%s]wsReadLoop err:%+v", id, err)
		return err
	}
}

func (s *Server) RegisterMonitorHandler(g *echo.Group) {
	g.GET("/:"+ParamNetwork+"/:"+ParamName+"/:"+ParamAddress, func(c echo.Context) error {
		inst, err := s.r.Instance(c.Param(ParamNetwork), c.Param(ParamName), contract.Address(c.Param(ParamAddress)))
		if err != nil {
			return err
		}
		conn, err := s.wsConnect(c)
		if err != nil {
			return err
		}
		defer s.wsClose(conn)
		id := s.wsID(conn)
		req := &MonitorRequest{}
		onSuccessHandshake := func() error {
			if err := c.Validate(req); err != nil {
				s.l.Debugf("[%s]fail to Validate err:%+v", id, err)
				return contract.ErrorCodeInvalidParam.Errorf("invalid request err:%s", err.Error())
			}
			for _, name := range req.Events {
				if _, ok := inst.Event(name); !ok {
					return contract.ErrorCodeNotFoundEvent.Errorf("not found event:%s", name)
				}
			}
			return nil
		}
		if err = s.wsHandshake(conn, req, onSuccessHandshake); err != nil {
			s.l.Debugf("[%s]fail to wsHandshake err:%+v", id, err)
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			defer cancel()
			_ = s.wsReadLoop(ctx, conn)
		}()
		onEvent := func(e *contract.Event) error {
			return s.wsWrite(conn, e)
		}
		if err = inst.WatchEvents(ctx, req.Events, req.Height, onEvent); err != nil {
			s.l.Debugf("[%s]fail to WatchEvents req:%+v err:%+v", id, req, err)
		}
		return nil
	})
}

func BindQueryParamsAndUnmarshalBody(c echo.Context, v interface{}) error {
	if ContainsMapTypeInStructType(reflect.TypeOf(v)) {
		if err := UnmarshalQueryParams(c, v); err != nil {
			return err
		}
	} else {
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, v); err != nil {
			return err
		}
	}
	return UnmarshalRequestBody(c, v)
}

// QueryParamsToMap nests bracketed keys, "params[to]=0x01" becomes {"params":{"to":"0x01"}}.
func QueryParamsToMap(c echo.Context) (map[string]interface{}, error) {
	m := make(map[string]interface{})
	for k, v := range c.QueryParams() {
		tm := m
		if start := strings.IndexByte(k, '['); start > 0 && k[len(k)-1] == ']' {
			l := []string{k[:start]}
			l = append(l, strings.Split(k[start+1:len(k)-1], "][")...)
			last := len(l) - 1
			for i, p := range l {
				if i == last {
					k = p
					break
				}
				elem, ok := tm[p]
				if !ok {
					cm := make(map[string]interface{})
					tm[p] = cm
					tm = cm
				} else if tm, ok = elem.(map[string]interface{}); !ok {
					return nil, errors.Errorf("fail cast k:%s i:%d p:%s", k, i, p)
				}
			}
		}
		switch len(v) {
		case 0:
			tm[k] = nil
		case 1:
			tm[k] = v[0]
		default:
			tm[k] = v
		}
	}
	return m, nil
}

func ContainsMapTypeInStructType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).Type.Kind() == reflect.Map {
				return true
			} else if t.Field(i).Type.Kind() == reflect.Struct {
				if ContainsMapTypeInStructType(t.Field(i).Type) {
					return true
				}
			}
		}
	}
	return false
}

func UnmarshalQueryParams(c echo.Context, v interface{}) error {
	m, err := QueryParamsToMap(c)
	if err != nil {
		return err
	}
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func UnmarshalRequestBody(c echo.Context, v interface{}) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	return UnmarshalBody(c.Request().Body, v)
}

func UnmarshalBody(b io.ReadCloser, v interface{}) error {
	defer b.Close()
	dec := json.NewDecoder(b)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
