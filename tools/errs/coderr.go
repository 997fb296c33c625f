package errs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the wire-independent error carried between layers.
// Code groups the failure class, Detail carries call-site context.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

const (
	ArgsError           = 1001
	RecordNotFound      = 1002
	DuplicateRecord     = 1003
	TokenInvalid        = 1101
	TokenExpired        = 1102
	StorageError        = 1201
	ServerInternalError = 1500
)

var (
	ErrArgs           = NewCodeError(ArgsError, "args invalid")
	ErrRecordNotFound = NewCodeError(RecordNotFound, "record not found")
	ErrDuplicate      = NewCodeError(DuplicateRecord, "record already exists")
	ErrTokenInvalid   = NewCodeError(TokenInvalid, "token invalid")
	ErrTokenExpired   = NewCodeError(TokenExpired, "token expired")
	ErrStorage        = NewCodeError(StorageError, "storage failed")
	ErrInternal       = NewCodeError(ServerInternalError, "server internal error")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

func New(msg string, kv ...any) error {
	return errors.New(toString(msg, kv))
}

// Wrap attaches a stack to infrastructure errors (mongo/redis/fs).
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return sb.String()
}
