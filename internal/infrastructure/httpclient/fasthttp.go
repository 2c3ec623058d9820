package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnexpectedStatus is wrapped by every non-200 response error.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// do executes req honouring the context deadline, or timeout when ctx has none.
func do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return client.DoDeadline(req, resp, deadline)
	}
	return client.DoTimeout(req, resp, timeout)
}

func statusError(uri string, resp *fasthttp.Response) error {
	body := resp.Body()
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Errorf("%w: %s returned %d: %s", ErrUnexpectedStatus, uri, resp.StatusCode(), string(body))
}
