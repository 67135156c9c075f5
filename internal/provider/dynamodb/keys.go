package dynamodb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute and index names.
const (
	attrPK     = "PK"
	attrSK     = "SK"
	attrGSI1PK = "GSI1PK"
	attrGSI1SK = "GSI1SK"
	attrTTL    = "ttl"
	attrData   = "data"
	indexGSI1  = "GSI1"
)

// PK/SK prefix constants.
const (
	prefixScenario = "SCENARIO#"
	prefixRun      = "RUN#"
	prefixAlert    = "ALERT#"
	prefixType     = "TYPE#"

	typeResult = prefixType + "result"
	typeAlert  = prefixType + "alert"
)

func scenarioPK(name string) string { return prefixScenario + name }
func runSK(runID string) string      { return prefixRun + runID }

func alertSK(ts time.Time) string {
	nonce := make([]byte, 4)
	_, _ = rand.Read(nonce)
	return fmt.Sprintf("%s%013d#%s", prefixAlert, ts.UnixMilli(), hex.EncodeToString(nonce))
}

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

func isExpired(epoch int64) bool {
	return epoch > 0 && time.Now().Unix() > epoch
}

// extractTTL returns the item's ttl epoch, or 0 when absent.
func extractTTL(item map[string]ddbtypes.AttributeValue) int64 {
	av, ok := item[attrTTL].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func attributeStr(item map[string]ddbtypes.AttributeValue, key string) (string, error) {
	av, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	var s string
	if err := attributevalue.Unmarshal(av, &s); err != nil {
		return "", fmt.Errorf("unmarshaling %q: %w", key, err)
	}
	return s, nil
}
