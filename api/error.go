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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/icon-project/btp2/common/errors"
	"github.com/labstack/echo/v4"

	"github.com/icon-project/contract-binder/contract"
)

type ErrorResponse struct {
	Code    errors.Code     `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("code:%d, message:%s", e.Code, e.Message)
}

func (e *ErrorResponse) ErrorCode() errors.Code {
	return e.Code
}

func (e *ErrorResponse) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// RequireSignatureError is the Data of an ErrorResponse for
// contract.ErrorCodeRequireSignature.
type RequireSignatureError struct {
	Data    contract.Bytes   `json:"data"`
	Options contract.Options `json:"options"`
}

func statusOf(err error) int {
	switch errors.CodeOf(err) {
	case contract.ErrorCodeNotFoundMethod,
		contract.ErrorCodeNotFoundEvent,
		contract.ErrorCodeNotFoundBinding,
		contract.ErrorCodeNotFoundNetwork,
		contract.ErrorCodeNotFoundTransaction:
		return http.StatusNotFound
	case contract.ErrorCodeMismatchReadonly:
		return http.StatusMethodNotAllowed
	case contract.ErrorCodeInvalidParam,
		contract.ErrorCodeInvalidOption,
		contract.ErrorCodeRequireSignature,
		contract.ErrorCodeMissingConstructor,
		contract.ErrorCodeDuplicateSignature,
		contract.ErrorCodeUnrecognizedSignature:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func HttpErrorHandler(err error, c echo.Context) {
	code := statusOf(err)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if e, ok := he.Message.(error); ok {
			err = e
		} else {
			err = errors.New(fmt.Sprint(he.Message))
		}
	}
	er := &ErrorResponse{
		Code:    errors.CodeOf(err),
		Message: err.Error(),
	}
	if rse, ok := err.(contract.RequireSignatureError); ok {
		if er.Data, err = json.Marshal(&RequireSignatureError{
			Data:    rse.Data(),
			Options: rse.Options(),
		}); err != nil {
			c.Echo().Logger.Error(err)
		}
	}
	if !c.Response().Committed {
		if err = c.JSON(code, er); err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}
