package codec

// buildPayload appends the optional trailing args/kwargs fields to fixed
// leading fields, applying the "omit if empty" rule: both omitted when
// empty, but an empty positional array is still emitted when kwargs are
// non-empty (WAMP requires args to be present if kwargs is).
func buildPayload(fixed []interface{}, args []interface{}, kwargs map[string]interface{}) []interface{} {
	if len(kwargs) == 0 {
		if len(args) == 0 {
			return fixed
		}
		return append(fixed, toIfaceSlice(args))
	}
	if args == nil {
		args = []interface{}{}
	}
	return append(fixed, toIfaceSlice(args), kwargs)
}

// toIfaceSlice copies args into a plain []interface{} so the caller's
// backing array is never aliased into the outgoing message.
func toIfaceSlice(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	copy(out, args)
	return out
}

func asMap(v interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}

func asArray(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	a, ok := v.([]interface{})
	if !ok {
		return nil
	}
	return a
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uint64:
		return x
	case int64:
		return uint64(x)
	default:
		return 0
	}
}

// payloadAt extracts the optional trailing args/kwargs fields starting
// at index i of the message.
func payloadAt(m Message, i int) ([]interface{}, map[string]interface{}) {
	args := asArray(m.field(i))
	kwargs := asMap(m.field(i + 1))
	return args, kwargs
}

// --- Session lifecycle messages ---

func NewHello(realm string, details map[string]interface{}) Message {
	return Message{int64(TypeHello), realm, details}
}

func HelloFields(m Message) (realm string, details map[string]interface{}) {
	return asString(m.field(1)), asMap(m.field(2))
}

func NewWelcome(session uint64, details map[string]interface{}) Message {
	return Message{int64(TypeWelcome), session, details}
}

func WelcomeFields(m Message) (session uint64, details map[string]interface{}) {
	return asUint64(m.field(1)), asMap(m.field(2))
}

func NewAbort(details map[string]interface{}, reason string) Message {
	return Message{int64(TypeAbort), details, reason}
}

func AbortFields(m Message) (details map[string]interface{}, reason string) {
	return asMap(m.field(1)), asString(m.field(2))
}

func NewChallenge(authmethod string, extra map[string]interface{}) Message {
	return Message{int64(TypeChallenge), authmethod, extra}
}

func ChallengeFields(m Message) (authmethod string, extra map[string]interface{}) {
	return asString(m.field(1)), asMap(m.field(2))
}

func NewAuthenticate(signature string, extra map[string]interface{}) Message {
	return Message{int64(TypeAuthenticate), signature, extra}
}

func AuthenticateFields(m Message) (signature string, extra map[string]interface{}) {
	return asString(m.field(1)), asMap(m.field(2))
}

func NewGoodbye(details map[string]interface{}, reason string) Message {
	return Message{int64(TypeGoodbye), details, reason}
}

func GoodbyeFields(m Message) (details map[string]interface{}, reason string) {
	return asMap(m.field(1)), asString(m.field(2))
}

// --- ERROR ---

func NewError(requestType MessageType, request uint64, details map[string]interface{}, errorURI string, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeError), int64(requestType), request, details, errorURI}
	return Message(buildPayload(fixed, args, kwargs))
}

func ErrorFields(m Message) (requestType MessageType, request uint64, details map[string]interface{}, errorURI string, args []interface{}, kwargs map[string]interface{}) {
	requestType = MessageType(toInt64(m.field(1)))
	request = asUint64(m.field(2))
	details = asMap(m.field(3))
	errorURI = asString(m.field(4))
	args, kwargs = payloadAt(m, 5)
	return
}

// --- Pub/Sub ---

func NewPublish(request uint64, options map[string]interface{}, topic string, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypePublish), request, options, topic}
	return Message(buildPayload(fixed, args, kwargs))
}

func PublishFields(m Message) (request uint64, options map[string]interface{}, topic string, args []interface{}, kwargs map[string]interface{}) {
	request = asUint64(m.field(1))
	options = asMap(m.field(2))
	topic = asString(m.field(3))
	args, kwargs = payloadAt(m, 4)
	return
}

func NewPublished(request, publication uint64) Message {
	return Message{int64(TypePublished), request, publication}
}

func PublishedFields(m Message) (request, publication uint64) {
	return asUint64(m.field(1)), asUint64(m.field(2))
}

func NewSubscribe(request uint64, options map[string]interface{}, topic string) Message {
	return Message{int64(TypeSubscribe), request, options, topic}
}

func SubscribeFields(m Message) (request uint64, options map[string]interface{}, topic string) {
	return asUint64(m.field(1)), asMap(m.field(2)), asString(m.field(3))
}

func NewSubscribed(request, subscription uint64) Message {
	return Message{int64(TypeSubscribed), request, subscription}
}

func SubscribedFields(m Message) (request, subscription uint64) {
	return asUint64(m.field(1)), asUint64(m.field(2))
}

func NewUnsubscribe(request, subscription uint64) Message {
	return Message{int64(TypeUnsubscribe), request, subscription}
}

func UnsubscribeFields(m Message) (request, subscription uint64) {
	return asUint64(m.field(1)), asUint64(m.field(2))
}

func NewUnsubscribed(request uint64) Message {
	return Message{int64(TypeUnsubscribed), request}
}

func UnsubscribedFields(m Message) (request uint64) {
	return asUint64(m.field(1))
}

func NewEvent(subscription, publication uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeEvent), subscription, publication, details}
	return Message(buildPayload(fixed, args, kwargs))
}

func EventFields(m Message) (subscription, publication uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) {
	subscription = asUint64(m.field(1))
	publication = asUint64(m.field(2))
	details = asMap(m.field(3))
	args, kwargs = payloadAt(m, 4)
	return
}

// --- RPC ---

func NewCall(request uint64, options map[string]interface{}, procedure string, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeCall), request, options, procedure}
	return Message(buildPayload(fixed, args, kwargs))
}

func CallFields(m Message) (request uint64, options map[string]interface{}, procedure string, args []interface{}, kwargs map[string]interface{}) {
	request = asUint64(m.field(1))
	options = asMap(m.field(2))
	procedure = asString(m.field(3))
	args, kwargs = payloadAt(m, 4)
	return
}

func NewResult(request uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeResult), request, details}
	return Message(buildPayload(fixed, args, kwargs))
}

func ResultFields(m Message) (request uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) {
	request = asUint64(m.field(1))
	details = asMap(m.field(2))
	args, kwargs = payloadAt(m, 3)
	return
}

func NewRegister(request uint64, options map[string]interface{}, procedure string) Message {
	return Message{int64(TypeRegister), request, options, procedure}
}

func RegisterFields(m Message) (request uint64, options map[string]interface{}, procedure string) {
	return asUint64(m.field(1)), asMap(m.field(2)), asString(m.field(3))
}

func NewRegistered(request, registration uint64) Message {
	return Message{int64(TypeRegistered), request, registration}
}

func RegisteredFields(m Message) (request, registration uint64) {
	return asUint64(m.field(1)), asUint64(m.field(2))
}

func NewUnregister(request, registration uint64) Message {
	return Message{int64(TypeUnregister), request, registration}
}

func UnregisterFields(m Message) (request, registration uint64) {
	return asUint64(m.field(1)), asUint64(m.field(2))
}

func NewUnregistered(request uint64) Message {
	return Message{int64(TypeUnregistered), request}
}

func UnregisteredFields(m Message) (request uint64) {
	return asUint64(m.field(1))
}

func NewInvocation(request, registration uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeInvocation), request, registration, details}
	return Message(buildPayload(fixed, args, kwargs))
}

func InvocationFields(m Message) (request, registration uint64, details map[string]interface{}, args []interface{}, kwargs map[string]interface{}) {
	request = asUint64(m.field(1))
	registration = asUint64(m.field(2))
	details = asMap(m.field(3))
	args, kwargs = payloadAt(m, 4)
	return
}

func NewYield(request uint64, options map[string]interface{}, args []interface{}, kwargs map[string]interface{}) Message {
	fixed := []interface{}{int64(TypeYield), request, options}
	return Message(buildPayload(fixed, args, kwargs))
}

func YieldFields(m Message) (request uint64, options map[string]interface{}, args []interface{}, kwargs map[string]interface{}) {
	request = asUint64(m.field(1))
	options = asMap(m.field(2))
	args, kwargs = payloadAt(m, 3)
	return
}
