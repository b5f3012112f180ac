package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/iamasit07/chat-presence/internal/config"
	"github.com/iamasit07/chat-presence/internal/domain"
	"go.uber.org/zap"
)

func TestOpen_UnknownProvider(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreProvider: "cassandra"}, zap.NewNop())
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	stores, err := Open(context.Background(), &config.Config{StoreProvider: ProviderMemory}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer stores.Close(context.Background())

	if stores.Provider != ProviderMemory || stores.Sessions == nil || stores.Users == nil {
		t.Errorf("stores = %+v", stores)
	}
}
