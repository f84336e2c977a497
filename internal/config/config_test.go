package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Default()
	c.ContractAddress = "0x00000000000000000000000000000000000001"
	c.OperatorKeyFile = "/tmp/operator.key"
	return c
}

func TestValidateAcceptsDefaultsWithRequiredFieldsSet(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
}

func TestValidateRejectsMissingRPCURL(t *testing.T) {
	c := validConfig()
	c.RPCURL = ""
	require.Error(t, c.Validate())
}

func TestValidateRejectsZeroChainID(t *testing.T) {
	c := validConfig()
	c.ChainID = 0
	require.Error(t, c.Validate())
}

func TestValidateRejectsMissingContractAddress(t *testing.T) {
	c := validConfig()
	c.ContractAddress = ""
	require.Error(t, c.Validate())
}

func TestValidateRejectsMissingOperatorKeyFile(t *testing.T) {
	c := validConfig()
	c.OperatorKeyFile = ""
	require.Error(t, c.Validate())
}

func TestValidateRejectsUnknownPersistenceType(t *testing.T) {
	c := validConfig()
	c.PersistenceType = "sqlite"
	require.Error(t, c.Validate())
}

func TestValidateRejectsRedisWithoutAddress(t *testing.T) {
	c := validConfig()
	c.PersistenceType = "redis"
	c.Redis.Address = ""
	require.Error(t, c.Validate())
}

func TestValidateAcceptsRedisWithAddress(t *testing.T) {
	c := validConfig()
	c.PersistenceType = "redis"
	c.Redis.Address = "localhost:6379"
	require.NoError(t, c.Validate())
}

func TestValidateRejectsBadgerWithoutDataDir(t *testing.T) {
	c := validConfig()
	c.PersistenceType = "badger"
	c.DataDir = ""
	require.Error(t, c.Validate())
}

func TestReservationTTLOrDefaultFallsBackWhenUnset(t *testing.T) {
	c := validConfig()
	c.Session.ReservationTTL = 0
	assert.Greater(t, c.ReservationTTLOrDefault(), time.Duration(0))
}
