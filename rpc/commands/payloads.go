package commands

// KeyRequest addresses a single object, it is the payload of get and delete requests
type KeyRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// PutRequest stores a value under a key
type PutRequest struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Value       []byte `json:"value"`
	ContentType string `json:"content_type,omitempty"`
}

// GetResponse is the answer to a get request. A response without payload
// means the key does not exist.
type GetResponse struct {
	Value       []byte `json:"value,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Found       bool   `json:"found"`
}

// ServerInfo describes the node that answered
type ServerInfo struct {
	Node          string `json:"node"`
	ServerVersion string `json:"server_version"`
}

// ListKeysRequest lists all keys of a bucket
type ListKeysRequest struct {
	Bucket string `json:"bucket"`
}

// ListKeysResponse is one frame of a key listing, the last frame has Done set
type ListKeysResponse struct {
	Keys []string `json:"keys,omitempty"`
	Done bool     `json:"done,omitempty"`
}
