package dnspod

import (
	"errors"
	"fmt"
)

// ErrCodeRequired is returned when a fresh login needs a one-time code but no
// prompt was configured.
var ErrCodeRequired = errors.New("one-time code required")

// TransportError means the provider could not be reached or its response
// could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dnspod %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProviderError means the provider answered with a non-success status. Body
// holds the raw response for diagnosis.
type ProviderError struct {
	Op      string
	Code    string
	Message string
	Body    []byte
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("dnspod %s: unreadable response", e.Op)
	}
	if e.Message != "" {
		return fmt.Sprintf("dnspod %s: status %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("dnspod %s: status %s", e.Op, e.Code)
}

// NotFoundError means a successful response did not contain the expected
// domain or record. Records lists what the provider did return.
type NotFoundError struct {
	Kind    string
	Name    string
	Records []Record
}

func (e *NotFoundError) Error() string {
	if e.Kind == "record" {
		return fmt.Sprintf("no A record named %q among %d records", e.Name, len(e.Records))
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}
