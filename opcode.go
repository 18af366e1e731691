package dfu

import "fmt"

// OpCode is the first byte of a control point message.
type OpCode uint8

// Control point op codes.
const (
	OpStartDFU         OpCode = 0x01
	OpReceiveInitPack  OpCode = 0x02
	OpReceiveDataPack  OpCode = 0x03
	OpValidate         OpCode = 0x04
	OpActivateAndReset OpCode = 0x05
	OpResetSystem      OpCode = 0x06
	OpReportSize       OpCode = 0x07
	OpReceiptNotifyReq OpCode = 0x08
	OpResponse         OpCode = 0x10
	OpReceiptNotify    OpCode = 0x11
)

var opNames = map[OpCode]string{
	OpStartDFU:         "START_DFU",
	OpReceiveInitPack:  "RECEIVE_INIT_PACK",
	OpReceiveDataPack:  "RECEIVE_DATA_PACK",
	OpValidate:         "VALIDATE",
	OpActivateAndReset: "ACTIVATE_SYS_RESET",
	OpResetSystem:      "RESET_SYSTEM",
	OpReportSize:       "REPORT_SIZE",
	OpReceiptNotifyReq: "PKT_RCPT_NOTIFY_REQ",
	OpResponse:         "RESPONSE",
	OpReceiptNotify:    "PKT_RCPT_NOTIFY_RSP",
}

func (o OpCode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("OpCode(0x%02X)", uint8(o))
}

// ResultCode is the status carried by a RESPONSE notification.
type ResultCode uint8

// Response result codes.
const (
	ResultSuccess              ResultCode = 0x01
	ResultInvalidState         ResultCode = 0x02
	ResultNotSupported         ResultCode = 0x03
	ResultDataSizeExceedsLimit ResultCode = 0x04
	ResultCRCError             ResultCode = 0x05
	ResultOperationFailed      ResultCode = 0x06
)

var resultNames = map[ResultCode]string{
	ResultSuccess:              "SUCCESS",
	ResultInvalidState:         "INVALID_STATE",
	ResultNotSupported:         "NOT_SUPPORTED",
	ResultDataSizeExceedsLimit: "DATA_SIZE_EXCEEDS_LIMIT",
	ResultCRCError:             "CRC_ERROR",
	ResultOperationFailed:      "OPERATION_FAILED",
}

func (r ResultCode) String() string {
	if n, ok := resultNames[r]; ok {
		return n
	}
	return fmt.Sprintf("ResultCode(0x%02X)", uint8(r))
}
