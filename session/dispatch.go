package session

import (
	"errors"
	"fmt"

	"github.com/n1/wampc/auth"
	"github.com/n1/wampc/codec"
	"github.com/n1/wampc/wlog"
)

// dispatchLoop is the single goroutine that owns every piece of Session
// state: it drains commands posted by public methods and inbound frames
// delivered by the transport, strictly serialized.
func (s *Session) dispatchLoop() {
	defer func() {
		s.setState(StateClosed)
		s.reg.failAll(ErrDisconnected)
		if s.joinFuture != nil {
			s.joinFuture.fail(ErrDisconnected)
			s.joinFuture = nil
		}
		if s.leaveFuture != nil {
			s.leaveFuture.fail(ErrDisconnected)
			s.leaveFuture = nil
		}
	}()

	inbound := s.rs.Inbound()
	for {
		select {
		case cmd := <-s.cmdCh:
			cmd()
		case frame, ok := <-inbound:
			if !ok {
				return
			}
			s.handleFrame(frame)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Session) handleFrame(frame []byte) {
	msg, err := codec.Decode(frame)
	if err != nil {
		wlog.Warn().Err(err).Str("trace_id", s.traceID).Msg("session: malformed frame, closing session")
		s.failSession(ErrDisconnected)
		return
	}
	switch msg.Type() {
	case codec.TypeWelcome:
		s.handleWelcome(msg)
	case codec.TypeAbort:
		s.handleAbort(msg)
	case codec.TypeChallenge:
		s.handleChallenge(msg)
	case codec.TypeGoodbye:
		s.handleGoodbye(msg)
	case codec.TypeError:
		s.handleError(msg)
	case codec.TypePublished:
		s.handlePublished(msg)
	case codec.TypeSubscribed:
		s.handleSubscribed(msg)
	case codec.TypeUnsubscribed:
		s.handleUnsubscribed(msg)
	case codec.TypeEvent:
		s.handleEvent(msg)
	case codec.TypeResult:
		s.handleResult(msg)
	case codec.TypeRegistered:
		s.handleRegistered(msg)
	case codec.TypeUnregistered:
		s.handleUnregistered(msg)
	case codec.TypeInvocation:
		s.handleInvocation(msg)
	default:
		wlog.Debug().Int64("type", int64(msg.Type())).Str("trace_id", s.traceID).Msg("session: ignoring unknown message type")
	}
}

func (s *Session) handleWelcome(msg codec.Message) {
	if s.state != StateChallenging {
		wlog.Debug().Str("trace_id", s.traceID).Msg("session: unexpected WELCOME, ignoring")
		return
	}
	sid, details := codec.WelcomeFields(msg)
	s.sessionID = sid
	s.welcomeDetails = details
	s.setState(StateEstablished)
	if s.joinFuture != nil {
		fut := s.joinFuture
		s.joinFuture = nil
		fut.resolve(&WelcomeInfo{SessionID: sid, Details: details})
	}
}

func (s *Session) handleAbort(msg codec.Message) {
	details, reason := codec.AbortFields(msg)
	s.failSession(&AbortError{Reason: reason, Details: details})
}

func (s *Session) handleChallenge(msg codec.Message) {
	if s.state != StateChallenging {
		wlog.Debug().Str("trace_id", s.traceID).Msg("session: unexpected CHALLENGE, ignoring")
		return
	}
	c := auth.FromMessage(msg)
	hook := s.challengeHook()
	if hook == nil {
		s.abortLocally("wamp.error.authentication_failed", "no challenge hook registered")
		return
	}
	resp, err := hook(c)
	if err != nil {
		s.abortLocally("wamp.error.authentication_failed", err.Error())
		return
	}
	if err := s.send(codec.NewAuthenticate(resp.Signature, resp.Extra)); err != nil {
		s.abortLocally("wamp.error.authentication_failed", err.Error())
	}
}

// abortLocally sends ABORT to the router and fails the session the same
// way receiving ABORT would.
func (s *Session) abortLocally(reasonURI, message string) {
	_ = s.send(codec.NewAbort(map[string]interface{}{"message": message}, reasonURI))
	s.failSession(&AbortError{Reason: reasonURI})
}

// failSession fails the join future (if any), tears down the transport,
// and clears every pending table — the terminal path shared by ABORT,
// local abort, and a malformed inbound frame.
func (s *Session) failSession(err error) {
	if s.joinFuture != nil {
		fut := s.joinFuture
		s.joinFuture = nil
		fut.fail(err)
	}
	s.setState(StateClosed)
	s.reg.failAll(ErrDisconnected)
	if s.rs != nil {
		s.rs.Close()
	}
}

func (s *Session) handleGoodbye(msg codec.Message) {
	_, reason := codec.GoodbyeFields(msg)
	switch s.state {
	case StateClosing:
		if s.leaveFuture != nil {
			fut := s.leaveFuture
			s.leaveFuture = nil
			fut.resolve(reason)
		}
		s.setState(StateClosed)
		s.reg.failAll(ErrDisconnected)
		if s.rs != nil {
			s.rs.Close()
		}
	case StateEstablished:
		_ = s.send(codec.NewGoodbye(map[string]interface{}{}, "wamp.close.goodbye_and_out"))
		s.setState(StateClosed)
		s.reg.failAll(ErrDisconnected)
		if s.rs != nil {
			s.rs.Close()
		}
	default:
		wlog.Debug().Str("trace_id", s.traceID).Msg("session: unexpected GOODBYE, ignoring")
	}
}

func (s *Session) handleError(msg codec.Message) {
	requestType, reqID, details, uri, args, kwargs := codec.ErrorFields(msg)
	appErr := &ApplicationError{URI: uri, Args: args, Kwargs: kwargs}
	_ = details

	switch requestType {
	case codec.TypeCall:
		if p, ok := s.reg.calls[reqID]; ok {
			delete(s.reg.calls, reqID)
			p.future.fail(appErr)
		}
	case codec.TypePublish:
		if p, ok := s.reg.publishes[reqID]; ok {
			delete(s.reg.publishes, reqID)
			p.future.fail(appErr)
		}
	case codec.TypeSubscribe:
		if p, ok := s.reg.subscribes[reqID]; ok {
			delete(s.reg.subscribes, reqID)
			p.future.fail(appErr)
		}
	case codec.TypeUnsubscribe:
		if p, ok := s.reg.unsubscribes[reqID]; ok {
			delete(s.reg.unsubscribes, reqID)
			p.future.fail(appErr)
		}
	case codec.TypeRegister:
		if p, ok := s.reg.registers[reqID]; ok {
			delete(s.reg.registers, reqID)
			p.future.fail(appErr)
		}
	case codec.TypeUnregister:
		if p, ok := s.reg.unregisters[reqID]; ok {
			delete(s.reg.unregisters, reqID)
			p.future.fail(appErr)
		}
	default:
		wlog.Debug().Int64("request_type", int64(requestType)).Str("trace_id", s.traceID).Msg("session: ERROR for unknown request type, ignoring")
	}
}

func (s *Session) handlePublished(msg codec.Message) {
	reqID, pubID := codec.PublishedFields(msg)
	p, ok := s.reg.publishes[reqID]
	if !ok {
		return
	}
	delete(s.reg.publishes, reqID)
	p.future.resolve(pubID)
}

func (s *Session) handleSubscribed(msg codec.Message) {
	reqID, subID := codec.SubscribedFields(msg)
	p, ok := s.reg.subscribes[reqID]
	if !ok {
		return
	}
	delete(s.reg.subscribes, reqID)
	s.reg.subscriptions[subID] = append(s.reg.subscriptions[subID], p.handler)
	p.future.resolve(&Subscription{ID: subID})
}

func (s *Session) handleUnsubscribed(msg codec.Message) {
	reqID := codec.UnsubscribedFields(msg)
	p, ok := s.reg.unsubscribes[reqID]
	if !ok {
		return
	}
	delete(s.reg.unsubscribes, reqID)
	delete(s.reg.subscriptions, p.subID)
	p.future.resolve(struct{}{})
}

func (s *Session) handleEvent(msg codec.Message) {
	subID, pubID, details, args, kwargs := codec.EventFields(msg)
	handlers := s.reg.subscriptions[subID]
	if len(handlers) == 0 {
		wlog.Debug().Uint64("subscription", subID).Str("trace_id", s.traceID).Msg("session: EVENT for unknown subscription, ignoring")
		return
	}
	ev := Event{
		Subscription: subID,
		Publication:  pubID,
		Details:      details,
		arena:        codec.NewArena(args, kwargs),
	}
	for _, h := range handlers {
		s.invokeEventHandler(h, ev)
	}
}

func (s *Session) invokeEventHandler(h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			wlog.Error().Interface("panic", r).Str("trace_id", s.traceID).Msg("session: event handler panicked")
		}
	}()
	h(ev)
}

func (s *Session) handleResult(msg codec.Message) {
	reqID, details, args, kwargs := codec.ResultFields(msg)
	p, ok := s.reg.calls[reqID]
	if !ok {
		wlog.Debug().Uint64("request", reqID).Str("trace_id", s.traceID).Msg("session: RESULT for unknown call, ignoring")
		return
	}
	delete(s.reg.calls, reqID)
	p.future.resolve(CallResult{Details: details, arena: codec.NewArena(args, kwargs)})
}

func (s *Session) handleRegistered(msg codec.Message) {
	reqID, regID := codec.RegisteredFields(msg)
	p, ok := s.reg.registers[reqID]
	if !ok {
		return
	}
	delete(s.reg.registers, reqID)
	s.reg.registrations[regID] = p.procedure
	p.future.resolve(&Registration{ID: regID})
}

func (s *Session) handleUnregistered(msg codec.Message) {
	reqID := codec.UnregisteredFields(msg)
	p, ok := s.reg.unregisters[reqID]
	if !ok {
		return
	}
	delete(s.reg.unregisters, reqID)
	delete(s.reg.registrations, p.regID)
	p.future.resolve(struct{}{})
}

func (s *Session) handleInvocation(msg codec.Message) {
	reqID, regID, details, args, kwargs := codec.InvocationFields(msg)
	proc, ok := s.reg.registrations[regID]
	if !ok {
		wlog.Debug().Uint64("registration", regID).Str("trace_id", s.traceID).Msg("session: INVOCATION for unknown registration, ignoring")
		_ = s.send(codec.NewError(codec.TypeInvocation, reqID, map[string]interface{}{}, "wamp.error.no_such_registration", nil, nil))
		return
	}
	inv := Invocation{Registration: regID, Details: details, arena: codec.NewArena(args, kwargs)}
	go s.runInvocation(proc, reqID, inv)
}

// runInvocation executes a procedure handler on its own goroutine so a
// slow or blocking implementation never stalls dispatch, then posts the
// YIELD/ERROR reply back through the command channel.
func (s *Session) runInvocation(proc ProcedureHandler, reqID uint64, inv Invocation) {
	yield, err := s.safeInvoke(proc, inv)
	if err != nil {
		uri := defaultRuntimeErrorURI
		var eargs []interface{}
		var ekwargs map[string]interface{}
		var aerr *ApplicationError
		if errors.As(err, &aerr) {
			uri = aerr.URI
			eargs = aerr.Args
			ekwargs = aerr.Kwargs
		}
		s.postCmd(func() {
			_ = s.send(codec.NewError(codec.TypeInvocation, reqID, map[string]interface{}{}, uri, eargs, ekwargs))
		})
		return
	}
	s.postCmd(func() {
		_ = s.send(codec.NewYield(reqID, map[string]interface{}{}, yield.Args, yield.Kwargs))
	})
}

func (s *Session) safeInvoke(proc ProcedureHandler, inv Invocation) (yield Yield, err error) {
	defer func() {
		if r := recover(); r != nil {
			wlog.Error().Interface("panic", r).Str("trace_id", s.traceID).Msg("session: procedure handler panicked")
			err = fmt.Errorf("session: procedure handler panicked: %v", r)
		}
	}()
	return proc(inv)
}
