package utilities

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDNode produces snowflake IDs. A nil node falls back to KSUIDs.
type IDNode struct {
	node *snowflake.Node
}

// NewIDNode creates a snowflake node. Node IDs outside the snowflake range
// are rejected.
func NewIDNode(nodeID int64) (*IDNode, error) {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &IDNode{node: n}, nil
}

// Next returns the next ID as a string.
func (n *IDNode) Next() string {
	if n == nil || n.node == nil {
		return NewKSUID()
	}
	return n.node.Generate().String()
}

// NewOpaqueToken returns n random bytes hex-encoded. Used for bearer session
// tokens, so it must come from crypto/rand.
func NewOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns a uniformly random integer in [min, max] rendered
// as a decimal string.
func NewNumericCode(min, max int64) (string, error) {
	if max < min {
		return "", fmt.Errorf("invalid code range %d..%d", min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+min), nil
}
