package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

func snowflakeNode() *snowflake.Node {
	nodeOnce.Do(func() {
		var err error
		// Each instance needs a unique node id in a multi-instance deploy;
		// single-node deployments can keep the default.
		node, err = snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
	})
	return node
}

// SetSnowflakeNode reconfigures the ID generator node, typically from config
// at startup. Must be called before the first ID is generated to take effect.
func SetSnowflakeNode(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	nodeOnce.Do(func() {})
	node = n
	return nil
}

func GenerateGameID() string {
	return uuid.New().String()
}

func GenerateTransactionID() string {
	return snowflakeNode().Generate().String()
}

// GenerateClientSeed creates a 128-bit hex seed for a new wallet.
func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func NewWallet(userID int64, startingBalance float64) (*Wallet, error) {
	clientSeed, err := GenerateClientSeed()
	if err != nil {
		return nil, err
	}

	return &Wallet{
		UserID:     userID,
		Balance:    startingBalance,
		ClientSeed: clientSeed,
		Nonce:      0,
	}, nil
}

func FormatCurrency(cents float64) string {
	return fmt.Sprintf("$%.2f", cents/100)
}
