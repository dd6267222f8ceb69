package memstore_test

import (
	"testing"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/memstore"
	"github.com/JonMunkholm/qrtrack/internal/storetest"
	"github.com/stretchr/testify/suite"
)

func TestStoreContract(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(*testing.T) core.Store { return memstore.New() },
	})
}
