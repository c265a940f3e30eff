package session

import "time"

// Config configures a Session's protocol-level defaults, mirroring the
// teacher's Default*Config constructor pattern.
type Config struct {
	// JoinTimeout bounds how long Join waits for WELCOME/ABORT.
	JoinTimeout time.Duration
	// LeaveTimeout bounds how long Leave waits for the peer's GOODBYE.
	LeaveTimeout time.Duration
	// PendingQueueSize bounds the command queue through which public
	// methods post work to the Session's dispatch loop.
	PendingQueueSize int
}

// DefaultConfig returns the default Session configuration.
func DefaultConfig() Config {
	return Config{
		JoinTimeout:      30 * time.Second,
		LeaveTimeout:     5 * time.Second,
		PendingQueueSize: 64,
	}
}

// CallOptions configures a Call.
type CallOptions struct {
	// Timeout bounds how long Call waits for RESULT/ERROR. Zero means no
	// timeout beyond ctx's own deadline.
	Timeout time.Duration
	// ReceiveProgress requests progressive call results from the router.
	// Reserved: progressive results are not implemented (see
	// Session.Cancel); setting this has no effect beyond advertising the
	// option to the router.
	ReceiveProgress bool
}

// SubscribeOptions configures a Subscribe.
type SubscribeOptions struct {
	// Match selects the topic matching policy: "" (exact, default),
	// "prefix", or "wildcard".
	Match string
}

// PublishOptions configures a Publish.
type PublishOptions struct {
	// Acknowledge requests a PUBLISHED reply; without it Publish returns
	// as soon as the message is handed to the transport.
	Acknowledge bool
	// Exclude lists session IDs the router must not deliver the event to.
	Exclude []uint64
	// Eligible, if non-empty, restricts delivery to these session IDs.
	Eligible []uint64
}

// ProvideOptions configures a Register.
type ProvideOptions struct {
	// Match selects the procedure matching policy, as SubscribeOptions.Match.
	Match string
	// Invoke selects the invocation policy for shared registrations:
	// "single" (default), "roundrobin", "random", "first", "last".
	Invoke string
}

func (o CallOptions) toDetails() map[string]interface{} {
	d := map[string]interface{}{}
	if o.ReceiveProgress {
		d["receive_progress"] = true
	}
	return d
}

func (o SubscribeOptions) toDetails() map[string]interface{} {
	d := map[string]interface{}{}
	if o.Match != "" {
		d["match"] = o.Match
	}
	return d
}

func (o PublishOptions) toDetails() map[string]interface{} {
	d := map[string]interface{}{}
	if o.Acknowledge {
		d["acknowledge"] = true
	}
	if len(o.Exclude) > 0 {
		d["exclude"] = uint64sToWire(o.Exclude)
	}
	if len(o.Eligible) > 0 {
		d["eligible"] = uint64sToWire(o.Eligible)
	}
	return d
}

// uint64sToWire converts a session ID list to the []interface{} shape
// the codec's msgpack encoder accepts for array-valued details fields.
func uint64sToWire(ids []uint64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, v := range ids {
		out[i] = v
	}
	return out
}

func (o ProvideOptions) toDetails() map[string]interface{} {
	d := map[string]interface{}{}
	if o.Match != "" {
		d["match"] = o.Match
	}
	if o.Invoke != "" {
		d["invoke"] = o.Invoke
	}
	return d
}
