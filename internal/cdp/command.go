// File: internal/cdp/command.go
package cdp

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/runtime"
)

// Command is one request frame on a command channel.
type Command struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the frame correlated to a Command by ID. Exactly one of
// Result and Error is normally set.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

// ProtocolError is the error object a target returns for a failed command.
type ProtocolError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// inbound is the envelope of every frame read from the target. Events carry
// a method and no id.
type inbound struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

// RemoteObject is the subset of Runtime.RemoteObject the injector reads.
type RemoteObject struct {
	Type        runtime.Type    `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

// String renders the object the way a console would show a primitive.
func (o RemoteObject) String() string {
	if o.Type == runtime.TypeString {
		var s string
		if err := json.Unmarshal(o.Value, &s); err == nil {
			return s
		}
	}
	if len(o.Value) > 0 {
		return string(o.Value)
	}
	if o.Description != "" {
		return o.Description
	}
	return string(o.Type)
}

// ExceptionDetails describes an exception thrown while evaluating.
type ExceptionDetails struct {
	ExceptionID  int64         `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int64         `json:"lineNumber"`
	ColumnNumber int64         `json:"columnNumber"`
	URL          string        `json:"url,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

func (d *ExceptionDetails) String() string {
	msg := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		msg = d.Exception.Description
	}
	return msg + " at " + strconv.FormatInt(d.LineNumber, 10) + ":" + strconv.FormatInt(d.ColumnNumber, 10)
}

// EvaluateResult is the decoded result of Runtime.evaluate.
type EvaluateResult struct {
	Result           RemoteObject      `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

// evaluateCommandID is the only id the injector ever uses: one command per channel.
const evaluateCommandID int64 = 1

// NewEvaluateCommand builds the Runtime.evaluate request carrying expression
// as its only parameter.
func NewEvaluateCommand(expression string) Command {
	return Command{
		ID:     evaluateCommandID,
		Method: runtime.CommandEvaluate,
		Params: runtime.Evaluate(expression),
	}
}

func decodeEvaluateResult(resp *Response) (*EvaluateResult, error) {
	var result EvaluateResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &EvalError{
			Method:  runtime.CommandEvaluate,
			Message: fmt.Sprintf("undecodable result: %v", err),
		}
	}
	if result.ExceptionDetails != nil {
		return &result, &EvalError{
			Method:  runtime.CommandEvaluate,
			Message: "exception thrown: " + result.ExceptionDetails.String(),
		}
	}
	return &result, nil
}
