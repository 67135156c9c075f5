// Package conformance_test verifies that every result store backend behaves
// the same under the shared provider suite. The in-memory store always
// runs; DynamoDB runs against DynamoDB Local when
// STANDBYPROBE_DYNAMODB_ENDPOINT is set (for example http://localhost:8000).
package conformance_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/standbyprobe/internal/provider"
	ddbprov "github.com/dwsmith1983/standbyprobe/internal/provider/dynamodb"
	"github.com/dwsmith1983/standbyprobe/internal/provider/providertest"
	"github.com/dwsmith1983/standbyprobe/internal/testutil"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

const endpointEnv = "STANDBYPROBE_DYNAMODB_ENDPOINT"

type backend struct {
	name string
	open func(t *testing.T) provider.Provider
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(*testing.T) provider.Provider { return testutil.NewMockProvider() }},
		{name: "dynamodb", open: openDynamoDB},
	}
}

func openDynamoDB(t *testing.T) provider.Provider {
	t.Helper()
	endpoint := os.Getenv(endpointEnv)
	if endpoint == "" {
		t.Skipf("%s not set", endpointEnv)
	}

	table := "standbyprobe-conformance-" + strings.ToLower(ulid.Make().String())
	p, err := ddbprov.New(&types.DynamoDBConfig{
		TableName:   table,
		Region:      "us-east-1",
		Endpoint:    endpoint,
		CreateTable: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p
}

func TestStoreConformance(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			providertest.RunAll(t, b.open(t))
		})
	}
}
