package commands

import (
	"fmt"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("commands")

// compile time interface checks
var (
	_ transport.ICommand          = (*Ping)(nil)
	_ transport.ICommand          = (*GetServerInfo)(nil)
	_ transport.ICommand          = (*Get)(nil)
	_ transport.ICommand          = (*Put)(nil)
	_ transport.ICommand          = (*Delete)(nil)
	_ transport.IStreamingCommand = (*ListKeys)(nil)
)

// --------------------------------------------------------------------------
// Ping
// --------------------------------------------------------------------------

// Ping checks that a node answers, request and response carry no payload
type Ping struct{}

// NewPing creates a new ping command
func NewPing() *Ping {
	return &Ping{}
}

func (c *Ping) ConstructRequest(bool) (common.Request, error) {
	return common.Request{Code: common.MsgPingReq}, nil
}

func (c *Ping) ExpectedCode() common.MessageCode {
	return common.MsgPingResp
}

func (c *Ping) DecodeResponse([]byte, bool) (any, error) {
	return true, nil
}

func (c *Ping) OnSuccess(any) {}

// --------------------------------------------------------------------------
// Server info
// --------------------------------------------------------------------------

// GetServerInfo asks a node for its name and version
type GetServerInfo struct{}

// NewGetServerInfo creates a new server info command
func NewGetServerInfo() *GetServerInfo {
	return &GetServerInfo{}
}

func (c *GetServerInfo) ConstructRequest(bool) (common.Request, error) {
	return common.Request{Code: common.MsgGetServerInfoReq}, nil
}

func (c *GetServerInfo) ExpectedCode() common.MessageCode {
	return common.MsgGetServerInfoResp
}

func (c *GetServerInfo) DecodeResponse(body []byte, useCompact bool) (any, error) {
	return decode[ServerInfo](body, useCompact)
}

func (c *GetServerInfo) OnSuccess(resp any) {
	info := resp.(*ServerInfo)
	Logger.Debugf("Node %s runs version %s", info.Node, info.ServerVersion)
}

// --------------------------------------------------------------------------
// Get
// --------------------------------------------------------------------------

// Get reads the value of a key
type Get struct {
	bucket string
	key    string
}

// NewGet creates a new get command
func NewGet(bucket, key string) *Get {
	return &Get{bucket: bucket, key: key}
}

func (c *Get) ConstructRequest(useCompact bool) (common.Request, error) {
	if err := checkKey(c.bucket, c.key); err != nil {
		return common.Request{}, err
	}
	return encode(common.MsgGetReq, KeyRequest{Bucket: c.bucket, Key: c.key}, useCompact)
}

func (c *Get) ExpectedCode() common.MessageCode {
	return common.MsgGetResp
}

func (c *Get) DecodeResponse(body []byte, useCompact bool) (any, error) {
	return decode[GetResponse](body, useCompact)
}

func (c *Get) OnSuccess(resp any) {
	if !resp.(*GetResponse).Found {
		Logger.Debugf("Key %s/%s not found", c.bucket, c.key)
	}
}

// --------------------------------------------------------------------------
// Put
// --------------------------------------------------------------------------

// Put stores a value under a key
type Put struct {
	bucket      string
	key         string
	value       []byte
	contentType string
}

// NewPut creates a new put command, the value is copied
func NewPut(bucket, key string, value []byte, contentType string) *Put {
	return &Put{
		bucket:      bucket,
		key:         key,
		value:       append([]byte(nil), value...),
		contentType: contentType,
	}
}

func (c *Put) ConstructRequest(useCompact bool) (common.Request, error) {
	if err := checkKey(c.bucket, c.key); err != nil {
		return common.Request{}, err
	}
	return encode(common.MsgPutReq, PutRequest{
		Bucket:      c.bucket,
		Key:         c.key,
		Value:       c.value,
		ContentType: c.contentType,
	}, useCompact)
}

func (c *Put) ExpectedCode() common.MessageCode {
	return common.MsgPutResp
}

func (c *Put) DecodeResponse([]byte, bool) (any, error) {
	return true, nil
}

func (c *Put) OnSuccess(any) {}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

// Delete removes a key
type Delete struct {
	bucket string
	key    string
}

// NewDelete creates a new delete command
func NewDelete(bucket, key string) *Delete {
	return &Delete{bucket: bucket, key: key}
}

func (c *Delete) ConstructRequest(useCompact bool) (common.Request, error) {
	if err := checkKey(c.bucket, c.key); err != nil {
		return common.Request{}, err
	}
	return encode(common.MsgDelReq, KeyRequest{Bucket: c.bucket, Key: c.key}, useCompact)
}

func (c *Delete) ExpectedCode() common.MessageCode {
	return common.MsgDelResp
}

func (c *Delete) DecodeResponse([]byte, bool) (any, error) {
	return true, nil
}

func (c *Delete) OnSuccess(any) {}

// --------------------------------------------------------------------------
// List keys
// --------------------------------------------------------------------------

// ListKeys lists all keys of a bucket. The node answers with a sequence of
// frames, the last one marked as done. Listing keys walks the whole
// keyspace of the node, so it is refused unless expensive list operations are
// allowed (ClusterConfig.DisableListExceptions).
type ListKeys struct {
	bucket  string
	allowed bool
	onKeys  func(keys []string)
}

// NewListKeys creates a new list keys command, allowed is usually the
// DisableListExceptions flag of the cluster configuration
func NewListKeys(bucket string, allowed bool) *ListKeys {
	return &ListKeys{bucket: bucket, allowed: allowed}
}

// OnKeys sets a callback invoked with the keys of every received frame
func (c *ListKeys) OnKeys(fn func(keys []string)) *ListKeys {
	c.onKeys = fn
	return c
}

func (c *ListKeys) ConstructRequest(useCompact bool) (common.Request, error) {
	if !c.allowed {
		return common.Request{}, fmt.Errorf("list keys of bucket %q: %w", c.bucket, common.ErrExpensiveListOperation)
	}
	if c.bucket == "" {
		return common.Request{}, fmt.Errorf("bucket must not be empty")
	}
	return encode(common.MsgListKeysReq, ListKeysRequest{Bucket: c.bucket}, useCompact)
}

func (c *ListKeys) ExpectedCode() common.MessageCode {
	return common.MsgListKeysResp
}

func (c *ListKeys) DecodeResponse(body []byte, useCompact bool) (any, error) {
	return decode[ListKeysResponse](body, useCompact)
}

func (c *ListKeys) OnSuccess(resp any) {
	if c.onKeys != nil {
		c.onKeys(resp.(*ListKeysResponse).Keys)
	}
}

func (c *ListKeys) IsDone(resp any) bool {
	return resp.(*ListKeysResponse).Done
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func checkKey(bucket, key string) error {
	if bucket == "" {
		return fmt.Errorf("bucket must not be empty")
	}
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	return nil
}

// encode builds a request with the payload serialized for the node
func encode(code common.MessageCode, payload any, useCompact bool) (common.Request, error) {
	s := serializer.For(useCompact)
	data, err := s.Serialize(payload)
	if err != nil {
		return common.Request{}, fmt.Errorf("failed to encode %s as %s: %w", code, s.Name(), err)
	}
	return common.Request{Code: code, Payload: data}, nil
}

// decode parses a response payload, an empty body yields the zero value
func decode[T any](body []byte, useCompact bool) (*T, error) {
	out := new(T)
	if len(body) == 0 {
		return out, nil
	}
	s := serializer.For(useCompact)
	if err := s.Deserialize(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode %T as %s: %w", *out, s.Name(), err)
	}
	return out, nil
}
