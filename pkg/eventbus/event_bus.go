package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ecodex-io/ecodex/pkg/serrors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSubscribers        = serrors.NewError("EVENTBUS_NO_SUBSCRIBERS", "no matching subscribers", "")
	ErrInvalidHandlerReturn = serrors.NewError("EVENTBUS_INVALID_HANDLER_RETURN", "invalid handler return signature", "")
)

type EventBus interface {
	Publish(args ...interface{})
	Subscribe(handler interface{})
	Unsubscribe(handler interface{})
	Clear()
	SubscribersCount() int
}

type EventBusWithError interface {
	EventBus
	PublishE(args ...any) error
}

type publisherImpl struct {
	mu       sync.RWMutex
	log      *logrus.Logger
	handlers []interface{}
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisherImpl{log: log}
}

// MatchSignature reports whether handler is a func whose parameters can accept
// args positionally.
func MatchSignature(handler interface{}, args []interface{}) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisherImpl) Publish(args ...interface{}) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	handlers := make([]interface{}, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	handled := false
	for _, handler := range handlers {
		if !MatchSignature(handler, args) {
			continue
		}
		v := reflect.ValueOf(handler)
		func() {
			defer func() {
				if r := recover(); r != nil {
					if p.log != nil {
						p.log.Errorf("eventbus: handler %s panicked with args %v: %v", v.Type().String(), args, r)
					}
				}
			}()
			v.Call(in)
			handled = true
		}()
	}

	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", in)
	}
}

func (p *publisherImpl) PublishE(args ...any) error {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	handlers := make([]interface{}, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	handled := false
	var errs []error
	errType := reflect.TypeOf((*error)(nil)).Elem()

	for _, handler := range handlers {
		if !MatchSignature(handler, args) {
			continue
		}
		handled = true
		v := reflect.ValueOf(handler)

		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("eventbus: handler %s panicked: %v", v.Type().String(), r))
				}
			}()

			out := v.Call(in)
			if len(out) == 0 {
				return
			}
			if len(out) != 1 {
				errs = append(errs, fmt.Errorf("%w: handler %s returned %d values", ErrInvalidHandlerReturn, v.Type().String(), len(out)))
				return
			}
			ret := out[0]
			if ret.Type() != errType {
				errs = append(errs, fmt.Errorf("%w: handler %s return type is %s", ErrInvalidHandlerReturn, v.Type().String(), ret.Type().String()))
				return
			}
			if !ret.IsNil() {
				errs = append(errs, ret.Interface().(error))
			}
		}()
	}

	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func (p *publisherImpl) Subscribe(handler interface{}) {
	if t := reflect.TypeOf(handler); t == nil || t.Kind() != reflect.Func {
		panic("handler must be a function")
	}
	p.mu.Lock()
	p.handlers = append(p.handlers, handler)
	p.mu.Unlock()
}

func (p *publisherImpl) Unsubscribe(handler interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hv := reflect.ValueOf(handler)
	for i, h := range p.handlers {
		if reflect.ValueOf(h).Pointer() == hv.Pointer() {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	p.handlers = nil
	p.mu.Unlock()
}

func (p *publisherImpl) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}
