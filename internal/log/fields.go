package log

import (
	"budget/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldSessionID     = "session_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldTxType        = "type"
	FieldAmount        = "amount"
	FieldDescription   = "description"
	FieldPaymentMethod = "payment_method_id"
	FieldMethodName    = "method_name"
	FieldEventID       = "event_id"
	FieldEventKind     = "event_kind"
	FieldAvailable     = "available_balance"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentRegistry = "registry"
	ComponentSession  = "session"
	ComponentStorage  = "storage"
	ComponentEvents   = "events"
	ComponentAMQP     = "amqp"
	ComponentKafka    = "kafka"
	ComponentAudit    = "audit"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSelect   = "select"
	OpCancel   = "cancel"
	OpConfirm  = "confirm"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpSeed     = "seed"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Error types beyond those derived from core.ErrorType.
const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
)

// LogFields is a builder for structured log fields.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and its kind.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = core.ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields of t; zero ids are left out.
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	if t.ID != 0 {
		f[FieldTransactionID] = t.ID
	}
	f[FieldTxType] = string(t.Type)
	f[FieldAmount] = core.FormatAmount(t.Amount)
	f[FieldDescription] = t.Description
	f[FieldPaymentMethod] = t.PaymentMethodID
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

func isRejection(err error) bool {
	switch core.ErrorType(err) {
	case core.ErrorTypeValidation, core.ErrorTypeNotFound, core.ErrorTypeInsufficientFunds, core.ErrorTypeNoSelection:
		return true
	}
	return false
}
