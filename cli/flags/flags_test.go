package flags

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", MustString("x", errors.New("ignored")))
	assert.Equal(t, []string{"1"}, MustStringArray([]string{"1"}, nil))
	assert.True(t, MustBool(true, nil))
	assert.Equal(t, time.Second, MustDuration(time.Second, errors.New("ignored")))
}

func TestFlags(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	Network(cmd)
	Contract(cmd)
	Args(cmd)
	Output(cmd)

	require.NoError(t, cmd.ParseFlags([]string{"-n", "ethereum-testnet-sepolia", "-c", "Storage", "-a", "42", "--arg", "0x01", "-o", "out.json"}))

	assert.Equal(t, "ethereum-testnet-sepolia", MustString(cmd.Flags().GetString("network")))
	assert.Equal(t, "Storage", MustString(cmd.Flags().GetString("contract")))
	assert.Equal(t, []string{"42", "0x01"}, MustStringArray(cmd.Flags().GetStringArray("arg")))
	assert.Equal(t, "out.json", MustString(cmd.Flags().GetString("out")))

	network := cmd.Flags().Lookup("network")
	require.NotNil(t, network)
	assert.Equal(t, []string{"true"}, network.Annotations[cobra.BashCompOneRequiredFlag])
}
