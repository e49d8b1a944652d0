package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls PlayerService procedures with Struct messages.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      string
	opts       []connect.ClientOption
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		opts:       opts,
	}
}

// Call invokes a unary procedure by name.
func (c *Client) Call(ctx context.Context, name string, req map[string]any) (map[string]any, error) {
	msg, err := structpb.NewStruct(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+Procedure(name), c.opts...)
	r := connect.NewRequest(msg)
	c.authorize(r.Header())

	resp, err := client.CallUnary(ctx, r)
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

// Watch streams status updates to fn until ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, req map[string]any, fn func(map[string]any)) error {
	msg, err := structpb.NewStruct(req)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+Procedure(ProcWatchSnapshots), c.opts...)
	r := connect.NewRequest(msg)
	c.authorize(r.Header())

	stream, err := client.CallServerStream(ctx, r)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		fn(stream.Msg().AsMap())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set(ControlTokenHeader, c.token)
	}
}
