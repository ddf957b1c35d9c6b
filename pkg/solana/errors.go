package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorUnsupportedVersion      TransactionErrorKey = "UnsupportedVersion"
)

// InstructionErrorKey is the string key returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}
	if i.CustomError() != nil {
		return InstructionErrorCustom
	}
	return InstructionErrorKey(i.Err.Error())
}

func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
	}
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	if t.transactionError != nil {
		return t.transactionError.Error()
	}
	return ""
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}
	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// ParseRPCError extracts the transaction error from a failed sendTransaction
// preflight, if there is one.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}

	return nil, nil
}

// ParseTransactionError parses the JSON error returned from the "err" field in
// various RPC methods.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	if raw == nil {
		return nil, nil
	}

	switch t := raw.(type) {
	case string:
		return &TransactionError{
			transactionError: errors.New(t),
		}, nil
	case map[string]interface{}:
		if len(t) != 1 {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
			}, errors.Errorf("invalid transaction result size: %d", len(t))
		}

		var k string
		var v interface{}
		for k, v = range t {
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{
				transactionError: errors.New(k),
			}, nil
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
			}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: errors.New(string(TransactionErrorInstructionError)),
			instructionError: &instructionErr,
		}, nil
	default:
		return nil, errors.New("unhandled error type")
	}
}

func parseInstructionError(v interface{}) (e InstructionError, err error) {
	values, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}
	if len(values) != 2 {
		return e, errors.Errorf("too many entries in InstructionError tuple: %d", len(values))
	}

	e.Index, err = parseJSONNumber(values[0])
	if err != nil {
		return e, err
	}

	switch t := values[1].(type) {
	case string:
		e.Err = errors.New(t)
	case map[string]interface{}:
		if len(t) != 1 {
			e.Err = errors.New("unhandled InstructionError")
			return e, errors.Errorf("invalid instruction result size: %d", len(t))
		}

		var k string
		var v interface{}
		for k, v = range t {
		}

		if k != string(InstructionErrorCustom) {
			e.Err = errors.New(k)
			break
		}

		code, err := parseJSONNumber(v)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	}

	return e, nil
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	}

	return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
}
