package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"PoseSilhouette/pose"
)

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetOverlay(ctx context.Context, opts ...grpc.CallOption) (pose.Overlay, error) {
	var ov pose.Overlay
	err := c.call(ctx, "GetOverlay", &ov, opts...)
	return ov, err
}

func (c *Client) GetStatus(ctx context.Context, opts ...grpc.CallOption) (pose.Status, error) {
	var st pose.Status
	err := c.call(ctx, "GetStatus", &st, opts...)
	return st, err
}

func (c *Client) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Shutdown"), &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}

func (c *Client) call(ctx context.Context, method string, out any, opts ...grpc.CallOption) error {
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), &emptypb.Empty{}, reply, opts...); err != nil {
		return err
	}
	raw, err := json.Marshal(reply.AsMap())
	if err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}
