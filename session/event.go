package session

import "github.com/n1/wampc/codec"

// Event is delivered to a Subscribe handler for each EVENT the router
// publishes on the matching subscription. Its argument accessors are
// backed by an arena valid only for the duration of the handler call.
type Event struct {
	Subscription uint64
	Publication  uint64
	Details      map[string]interface{}
	arena        *codec.Arena
}

func (e Event) ArgCount() int                                   { return e.arena.ArgCount() }
func (e Event) Arg(i int) (interface{}, bool)                   { return e.arena.Arg(i) }
func (e Event) Kwarg(key string) (interface{}, bool)            { return e.arena.Kwarg(key) }
func (e Event) ArgString(i int, fallback string) string         { return e.arena.ArgString(i, fallback) }
func (e Event) ArgInt(i int, fallback int64) int64              { return e.arena.ArgInt(i, fallback) }
func (e Event) ArgFloat(i int, fallback float64) float64        { return e.arena.ArgFloat(i, fallback) }
func (e Event) ArgBool(i int, fallback bool) bool               { return e.arena.ArgBool(i, fallback) }
func (e Event) ArgBytes(i int, fallback []byte) []byte          { return e.arena.ArgBytes(i, fallback) }
func (e Event) KwargString(key, fallback string) string         { return e.arena.KwargString(key, fallback) }
func (e Event) KwargInt(key string, fallback int64) int64       { return e.arena.KwargInt(key, fallback) }
func (e Event) KwargFloat(key string, fallback float64) float64 { return e.arena.KwargFloat(key, fallback) }
func (e Event) KwargBool(key string, fallback bool) bool        { return e.arena.KwargBool(key, fallback) }

// Invocation is delivered to a Register procedure for each INVOCATION
// the router routes to the matching registration.
type Invocation struct {
	Registration uint64
	Details      map[string]interface{}
	arena        *codec.Arena
}

func (inv Invocation) ArgCount() int                                { return inv.arena.ArgCount() }
func (inv Invocation) Arg(i int) (interface{}, bool)                { return inv.arena.Arg(i) }
func (inv Invocation) Kwarg(key string) (interface{}, bool)         { return inv.arena.Kwarg(key) }
func (inv Invocation) ArgString(i int, fallback string) string      { return inv.arena.ArgString(i, fallback) }
func (inv Invocation) ArgInt(i int, fallback int64) int64           { return inv.arena.ArgInt(i, fallback) }
func (inv Invocation) ArgFloat(i int, fallback float64) float64     { return inv.arena.ArgFloat(i, fallback) }
func (inv Invocation) ArgBool(i int, fallback bool) bool            { return inv.arena.ArgBool(i, fallback) }
func (inv Invocation) ArgBytes(i int, fallback []byte) []byte       { return inv.arena.ArgBytes(i, fallback) }
func (inv Invocation) KwargString(key, fallback string) string      { return inv.arena.KwargString(key, fallback) }
func (inv Invocation) KwargInt(key string, fallback int64) int64    { return inv.arena.KwargInt(key, fallback) }
func (inv Invocation) KwargFloat(key string, fallback float64) float64 {
	return inv.arena.KwargFloat(key, fallback)
}
func (inv Invocation) KwargBool(key string, fallback bool) bool { return inv.arena.KwargBool(key, fallback) }

// Yield is a procedure's successful return value.
type Yield struct {
	Args   []interface{}
	Kwargs map[string]interface{}
}

// CallResult is what a Call future resolves to.
type CallResult struct {
	Details map[string]interface{}
	arena   *codec.Arena
}

func (r CallResult) ArgCount() int                           { return r.arena.ArgCount() }
func (r CallResult) Arg(i int) (interface{}, bool)            { return r.arena.Arg(i) }
func (r CallResult) Kwarg(key string) (interface{}, bool)     { return r.arena.Kwarg(key) }
func (r CallResult) ArgString(i int, fallback string) string  { return r.arena.ArgString(i, fallback) }
func (r CallResult) ArgInt(i int, fallback int64) int64       { return r.arena.ArgInt(i, fallback) }
func (r CallResult) ArgFloat(i int, fallback float64) float64 { return r.arena.ArgFloat(i, fallback) }
func (r CallResult) ArgBool(i int, fallback bool) bool        { return r.arena.ArgBool(i, fallback) }
func (r CallResult) ArgBytes(i int, fallback []byte) []byte   { return r.arena.ArgBytes(i, fallback) }
func (r CallResult) KwargString(key, fallback string) string  { return r.arena.KwargString(key, fallback) }
func (r CallResult) KwargInt(key string, fallback int64) int64 {
	return r.arena.KwargInt(key, fallback)
}
func (r CallResult) KwargFloat(key string, fallback float64) float64 {
	return r.arena.KwargFloat(key, fallback)
}
func (r CallResult) KwargBool(key string, fallback bool) bool { return r.arena.KwargBool(key, fallback) }

// Subscription is the handle returned by Subscribe. Passing it to
// Unsubscribe tears down the router-side subscription.
type Subscription struct {
	ID uint64
}

// Registration is the handle returned by Register.
type Registration struct {
	ID uint64
}
