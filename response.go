package dfu

import (
	"encoding/binary"
	"fmt"
)

// A Response is a parsed control point notification. For RESPONSE
// notifications Request and Result identify the answered command; Param
// carries the size for REPORT_SIZE. For PKT_RCPT_NOTIFY_RSP only Param, the
// cumulative byte count, is set.
type Response struct {
	OpCode  OpCode
	Request OpCode
	Result  ResultCode
	Param   uint16
}

// ResponseTo returns the RESPONSE notification answering req with res.
func ResponseTo(req OpCode, res ResultCode) Response {
	return Response{OpCode: OpResponse, Request: req, Result: res}
}

// ReceiptNotification returns a PKT_RCPT_NOTIFY_RSP carrying n bytes.
func ReceiptNotification(n uint16) Response {
	return Response{OpCode: OpReceiptNotify, Param: n}
}

// ParseResponse decodes a control point notification.
func ParseResponse(b []byte) (Response, error) {
	if len(b) == 0 {
		return Response{}, fmt.Errorf("empty control point notification")
	}
	r := Response{OpCode: OpCode(b[0])}
	switch r.OpCode {
	case OpResponse:
		if len(b) < 3 {
			return r, fmt.Errorf("short %v notification % X", r.OpCode, b)
		}
		r.Request, r.Result = OpCode(b[1]), ResultCode(b[2])
		if len(b) >= 5 {
			r.Param = binary.LittleEndian.Uint16(b[3:])
		}
	case OpReceiptNotify:
		if len(b) < 3 {
			return r, fmt.Errorf("short %v notification % X", r.OpCode, b)
		}
		r.Param = binary.LittleEndian.Uint16(b[1:])
	default:
		return r, fmt.Errorf("unexpected control point op code %v", r.OpCode)
	}
	return r, nil
}

// Bytes encodes r. REPORT_SIZE responses carry the 2 byte param; other
// RESPONSE notifications are 3 bytes.
func (r Response) Bytes() []byte {
	switch r.OpCode {
	case OpReceiptNotify:
		return []byte{byte(r.OpCode), byte(r.Param), byte(r.Param >> 8)}
	case OpResponse:
		b := []byte{byte(r.OpCode), byte(r.Request), byte(r.Result)}
		if r.Request == OpReportSize {
			b = append(b, byte(r.Param), byte(r.Param>>8))
		}
		return b
	}
	return []byte{byte(r.OpCode)}
}

func (r Response) String() string {
	switch r.OpCode {
	case OpResponse:
		if r.Request == OpReportSize {
			return fmt.Sprintf("RESPONSE(%v, %v, %d)", r.Request, r.Result, r.Param)
		}
		return fmt.Sprintf("RESPONSE(%v, %v)", r.Request, r.Result)
	case OpReceiptNotify:
		return fmt.Sprintf("PKT_RCPT_NOTIFY_RSP(%d)", r.Param)
	}
	return r.OpCode.String()
}

// Matches reports whether got satisfies the expectation r. RESPONSE
// notifications must match request and result, plus the param for a
// successful REPORT_SIZE; receipt notifications must match the byte count.
func (r Response) Matches(got Response) bool {
	if got.OpCode != r.OpCode {
		return false
	}
	switch r.OpCode {
	case OpResponse:
		if got.Request != r.Request || got.Result != r.Result {
			return false
		}
		if r.Request == OpReportSize && r.Result == ResultSuccess {
			return got.Param == r.Param
		}
		return true
	case OpReceiptNotify:
		return got.Param == r.Param
	}
	return true
}
