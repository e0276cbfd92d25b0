// Package registry dispatches RPC calls to the methods of registered services
package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrNoMethods       = errors.New("service has no RPC methods")
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Registry holds services by name
type Registry struct {
	services *xsync.MapOf[string, *Service]
}

// Service is a registered receiver and its RPC methods
type Service struct {
	Name    string
	value   reflect.Value
	Methods map[string]*Method
}

// Method is an exported method of the form
//
//	func (s *T) Name(ctx context.Context, arg *Arg) (*Reply, error)
type Method struct {
	Name      string
	fn        reflect.Value
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// NewArg returns a new *Arg to decode a request into
func (m *Method) NewArg() any {
	return reflect.New(m.ArgType).Interface()
}

func New() *Registry {
	return &Registry{services: xsync.NewMapOf[string, *Service]()}
}

// Register adds the RPC methods of service under name, replacing a service
// with the same name
func (r *Registry) Register(name string, service any) error {
	v := reflect.ValueOf(service)
	if name == "" {
		name = reflect.Indirect(v).Type().Name()
	}

	svc := &Service{
		Name:    name,
		value:   v,
		Methods: make(map[string]*Method),
	}

	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if m, ok := rpcMethod(t.Method(i)); ok {
			svc.Methods[m.Name] = m
		}
	}

	if len(svc.Methods) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMethods, name)
	}

	r.services.Store(name, svc)
	return nil
}

func rpcMethod(m reflect.Method) (*Method, bool) {
	mt := m.Type
	if !m.IsExported() || mt.NumIn() != 3 || mt.NumOut() != 2 {
		return nil, false
	}

	arg, reply := mt.In(2), mt.Out(0)
	if mt.In(1) != contextType ||
		arg.Kind() != reflect.Pointer ||
		reply.Kind() != reflect.Pointer ||
		mt.Out(1) != errorType {
		return nil, false
	}

	return &Method{
		Name:      m.Name,
		fn:        m.Func,
		ArgType:   arg.Elem(),
		ReplyType: reply.Elem(),
	}, true
}

func (r *Registry) Service(name string) (*Service, error) {
	svc, ok := r.services.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return svc, nil
}

// Method looks up service.method
func (r *Registry) Method(service, method string) (*Service, *Method, error) {
	svc, err := r.Service(service)
	if err != nil {
		return nil, nil, err
	}

	m, ok := svc.Methods[method]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, service, method)
	}
	return svc, m, nil
}

// Call invokes m on svc. arg must be a *Arg of the method.
func (svc *Service) Call(ctx context.Context, m *Method, arg any) (any, error) {
	argVal := reflect.ValueOf(arg)
	if argVal.Type() != reflect.PointerTo(m.ArgType) {
		return nil, fmt.Errorf("invalid argument type: expected %v, got %v", reflect.PointerTo(m.ArgType), argVal.Type())
	}

	out := m.fn.Call([]reflect.Value{svc.value, reflect.ValueOf(ctx), argVal})
	if errVal := out[1]; !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	return out[0].Interface(), nil
}

// Call looks up and invokes service.method
func (r *Registry) Call(ctx context.Context, service, method string, arg any) (any, error) {
	svc, m, err := r.Method(service, method)
	if err != nil {
		return nil, err
	}
	return svc.Call(ctx, m, arg)
}

// Services returns the sorted service names
func (r *Registry) Services() []string {
	names := make([]string, 0, r.services.Size())
	r.services.Range(func(name string, _ *Service) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// MethodNames returns the sorted method names of svc
func (svc *Service) MethodNames() []string {
	names := make([]string, 0, len(svc.Methods))
	for name := range svc.Methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
