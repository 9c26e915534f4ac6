package wire

import "fmt"

// Category groups error codes by the taxonomy of §7.
type Category uint8

const (
	CategoryProtocol Category = iota + 1
	CategoryCrypto
	CategoryDHT
	CategoryRouting
	CategoryNetwork
)

func (c Category) String() string {
	switch c {
	case CategoryProtocol:
		return "protocol"
	case CategoryCrypto:
		return "crypto"
	case CategoryDHT:
		return "dht"
	case CategoryRouting:
		return "routing"
	case CategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Code is a taxonomy error code, unique within its Category (§7).
type Code uint16

// Protocol error codes.
const (
	CodeInvalidFrameFormat Code = iota + 1
	CodeInvalidMessageFormat
	CodeUnsupportedVersion
	CodeChecksumMismatch
	CodeMessageTooLarge
	CodeInvalidNodeId
	CodeTTLExceeded
	CodeMissingField
)

// Crypto error codes.
const (
	CodeInvalidSignature Code = iota + 1
	CodeKeyGenerationFailed
	CodeIdentityLoadFailed
)

// DHT error codes.
const (
	CodeNodeNotFound Code = iota + 1
	CodeKeyNotFound
	CodeStorageFull
	CodeValueTooLarge
	CodeTooManyKeys
	CodeNotResponsible
	CodeBucketFull
	CodeInsufficientNodes
	CodeInvalidProofOfWork
)

// Routing error codes.
const (
	CodeReplayDetected Code = iota + 1
	CodeInvalidTimestamp
	CodeRateLimitExceeded
	CodeGlobalRateLimitExceeded
	CodeCacheFull
	CodeMessageFiltered
	CodeInsufficientRelays
	CodeNoRoute
)

// Network error codes.
const (
	CodeAdapterNotFound Code = iota + 1
	CodeInitializationFailed
	CodeNoAdaptersAvailable
	CodeNoCommonAdapter
	CodeSendFailed
	CodeReceiveFailed
	CodeDiscoveryFailed
	CodeHealthCheckFailed
)

// codeNames maps (category, code) to its taxonomy name for diagnostics.
var codeNames = map[Category]map[Code]string{
	CategoryProtocol: {
		CodeInvalidFrameFormat:   "InvalidFrameFormat",
		CodeInvalidMessageFormat: "InvalidMessageFormat",
		CodeUnsupportedVersion:   "UnsupportedVersion",
		CodeChecksumMismatch:     "ChecksumMismatch",
		CodeMessageTooLarge:      "MessageTooLarge",
		CodeInvalidNodeId:        "InvalidNodeId",
		CodeTTLExceeded:          "TtlExceeded",
		CodeMissingField:         "MissingField",
	},
	CategoryCrypto: {
		CodeInvalidSignature:    "InvalidSignature",
		CodeKeyGenerationFailed: "KeyGenerationFailed",
		CodeIdentityLoadFailed:  "IdentityLoadFailed",
	},
	CategoryDHT: {
		CodeNodeNotFound:       "NodeNotFound",
		CodeKeyNotFound:        "KeyNotFound",
		CodeStorageFull:        "StorageFull",
		CodeValueTooLarge:      "ValueTooLarge",
		CodeTooManyKeys:        "TooManyKeys",
		CodeNotResponsible:     "NotResponsible",
		CodeBucketFull:         "BucketFull",
		CodeInsufficientNodes:  "InsufficientNodes",
		CodeInvalidProofOfWork: "InvalidProofOfWork",
	},
	CategoryRouting: {
		CodeReplayDetected:          "ReplayDetected",
		CodeInvalidTimestamp:        "InvalidTimestamp",
		CodeRateLimitExceeded:       "RateLimitExceeded",
		CodeGlobalRateLimitExceeded: "GlobalRateLimitExceeded",
		CodeCacheFull:               "CacheFull",
		CodeMessageFiltered:         "MessageFiltered",
		CodeInsufficientRelays:      "InsufficientRelays",
		CodeNoRoute:                 "NoRoute",
	},
	CategoryNetwork: {
		CodeAdapterNotFound:     "AdapterNotFound",
		CodeInitializationFailed: "InitializationFailed",
		CodeNoAdaptersAvailable: "NoAdaptersAvailable",
		CodeNoCommonAdapter:     "NoCommonAdapter",
		CodeSendFailed:          "SendFailed",
		CodeReceiveFailed:       "ReceiveFailed",
		CodeDiscoveryFailed:     "DiscoveryFailed",
		CodeHealthCheckFailed:   "HealthCheckFailed",
	},
}

// Error is a taxonomy-tagged error as specified in §7: every operation
// returns either success, a recoverable Error, or a fatal one. Category and
// Code together select the propagation policy (§7: recovered locally,
// surfaced to caller, or fatal).
type Error struct {
	Category   Category `cbor:"category"`
	Code       Code     `cbor:"code"`
	Reason     string   `cbor:"reason"`
	RetryAfter *uint32  `cbor:"retry_after,omitempty"`
}

func newError(cat Category, code Code, reason string) *Error {
	return &Error{Category: cat, Code: code, Reason: reason}
}

// NewProtocolError builds a Protocol-category Error.
func NewProtocolError(code Code, reason string) *Error { return newError(CategoryProtocol, code, reason) }

// NewCryptoError builds a Crypto-category Error.
func NewCryptoError(code Code, reason string) *Error { return newError(CategoryCrypto, code, reason) }

// NewDHTError builds a DHT-category Error.
func NewDHTError(code Code, reason string) *Error { return newError(CategoryDHT, code, reason) }

// NewRoutingError builds a Routing-category Error.
func NewRoutingError(code Code, reason string) *Error { return newError(CategoryRouting, code, reason) }

// NewNetworkError builds a Network-category Error.
func NewNetworkError(code Code, reason string) *Error { return newError(CategoryNetwork, code, reason) }

// WithRetryAfter attaches a retry-after hint, in seconds, and returns e.
func (e *Error) WithRetryAfter(seconds uint32) *Error {
	e.RetryAfter = &seconds
	return e
}

// CodeName returns the human-readable taxonomy name for this error's code.
func (e *Error) CodeName() string {
	if names, ok := codeNames[e.Category]; ok {
		if name, ok := names[e.Code]; ok {
			return name
		}
	}
	return fmt.Sprintf("Unknown(%d)", e.Code)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("myriadmesh %s/%s: %s (retry after %ds)", e.Category, e.CodeName(), e.Reason, *e.RetryAfter)
	}
	return fmt.Sprintf("myriadmesh %s/%s: %s", e.Category, e.CodeName(), e.Reason)
}

// IsRetryable reports whether a retry is plausible without a topology or
// policy change.
func (e *Error) IsRetryable() bool {
	if e.RetryAfter != nil {
		return true
	}
	switch e.Category {
	case CategoryRouting:
		return e.Code == CodeRateLimitExceeded || e.Code == CodeGlobalRateLimitExceeded || e.Code == CodeCacheFull
	case CategoryNetwork:
		return e.Code == CodeSendFailed || e.Code == CodeNoAdaptersAvailable
	}
	return false
}

// IsFatal reports whether, per the §7 propagation policy, this error should
// abort startup or shut a component down rather than be retried or
// surfaced transiently.
func (e *Error) IsFatal() bool {
	return e.Category == CategoryCrypto && e.Code == CodeIdentityLoadFailed
}

// AsError narrows a generic error into a *wire.Error if possible.
func AsError(err error) (*Error, bool) {
	we, ok := err.(*Error)
	return we, ok
}
