package mongostore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/chuk-ai/toolgraph/session/mongostore"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := mongostore.New(context.Background(), mongostore.Options{Database: "toolgraph"})
	require.Error(t, err)
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := mongostore.New(context.Background(), mongostore.Options{Client: &mongo.Client{}})
	require.Error(t, err)
}
