package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores defaults; cobra keeps flag state between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", "missing.yaml", "--env", "missing.env"))
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestExpirationCommand(t *testing.T) {
	out, _, err := execute(t, "expiration", "4h")
	require.NoError(t, err)
	assert.Equal(t, "4h: 4 часа (240 min)\n", out)
}

func TestExpirationCommand_JSON(t *testing.T) {
	out, _, err := execute(t, "expiration", "1H", "--json")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "1 час", res["label"])
	assert.Equal(t, float64(60), res["minutes"])
}

func TestStakeCommand_DAlembertAfterLoss(t *testing.T) {
	out, _, err := execute(t, "stake", "--strategy", "dalembert", "--balance", "1000", "--current", "30", "--won=false")
	require.NoError(t, err)
	assert.Equal(t, "dalembert: 40.00\n", out)
}

func TestStakeCommand_UnknownStrategyFallsBack(t *testing.T) {
	out, errOut, err := execute(t, "stake", "--strategy", "kelly", "--balance", "3640")
	require.NoError(t, err)
	assert.Contains(t, errOut, `unknown strategy "kelly"`)
	assert.Equal(t, "martingale: 10.00\n", out)
}

func TestScanCommand_RejectsUnknownClass(t *testing.T) {
	_, _, err := execute(t, "scan", "--class", "weekly")
	assert.Error(t, err)
}
