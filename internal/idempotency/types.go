package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Method         string    `dynamodbav:"method,omitempty"`
	Path           string    `dynamodbav:"path,omitempty"`
	RequestBody    []byte    `dynamodbav:"request_body,omitempty"`
	RequestHash    string    `dynamodbav:"request_hash,omitempty"` // sha256 hex of RequestBody
	ResponseBody   []byte    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Expired reports whether the record is past its TTL at now. DynamoDB deletes expired items
// lazily, so readers must not trust an item only because it is still returned.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt <= now.Unix()
}

// Terminal reports whether the record reached Completed or Failed.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Outcome is the gate's verdict for an incoming request.
type Outcome int

const (
	// Proceed: the caller owns the key and must run the handler, then mark the record.
	Proceed Outcome = iota
	// Replay: a Completed record exists; return its stored response.
	Replay
	// Conflict: another request with the same key is still Pending.
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Replay:
		return "replay"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Decision is returned by Gate.Guard. Record is the stored record for Replay and Conflict, and
// the freshly created Pending record for Proceed.
type Decision struct {
	Outcome Outcome
	Record  *Record
}
