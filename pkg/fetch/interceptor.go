package fetch

// Interceptor observes every attempt. BeforeSend may transform the request
// (for example to inject headers); AfterReceive is purely observational.
// Neither hook controls whether the attempt proceeds or is retried.
//
// Hooks run once per attempt, in registration order, always before the
// manager acts on the result.
type Interceptor interface {
	// BeforeSend may return a modified request. Returning nil keeps the
	// request unchanged.
	BeforeSend(req *Request) *Request

	// AfterReceive observes the attempt outcome. Exactly one of resp/err is
	// meaningful.
	AfterReceive(resp *Response, err error)
}

// InterceptorFuncs adapts plain functions into an Interceptor. Either field
// may be nil.
type InterceptorFuncs struct {
	OnSend    func(req *Request) *Request
	OnReceive func(resp *Response, err error)
}

// BeforeSend implements Interceptor.
func (f InterceptorFuncs) BeforeSend(req *Request) *Request {
	if f.OnSend == nil {
		return req
	}
	return f.OnSend(req)
}

// AfterReceive implements Interceptor.
func (f InterceptorFuncs) AfterReceive(resp *Response, err error) {
	if f.OnReceive != nil {
		f.OnReceive(resp, err)
	}
}

// chain applies the registered interceptors in order.
type chain []Interceptor

func (c chain) beforeSend(req *Request) *Request {
	for _, i := range c {
		if next := i.BeforeSend(req); next != nil {
			req = next
		}
	}
	return req
}

func (c chain) afterReceive(resp *Response, err error) {
	for _, i := range c {
		i.AfterReceive(resp, err)
	}
}
