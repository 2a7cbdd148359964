package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlagValidation(t *testing.T) {
	var format string
	c := &cobra.Command{Use: "x"}
	c.Flags().StringVar(&format, "format", "text", "")
	AddFlagValidation(c, "format", ValidateChoice("text", "json"))

	flag := c.Flags().Lookup("format")
	require.NoError(t, flag.Value.Set("json"))
	assert.Equal(t, "json", format)

	err := flag.Value.Set("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported: text, json")
	assert.Equal(t, "json", format)
}

func TestAddFlagValidationPersistent(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	c.PersistentFlags().String("log-level", "warn", "")
	AddFlagValidation(c, "log-level", ValidateLogLevel)

	flag := c.PersistentFlags().Lookup("log-level")
	assert.NoError(t, flag.Value.Set("debug"))
	assert.Error(t, flag.Value.Set("loud"))
}

func TestAddFlagValidationUnknownFlag(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	assert.NotPanics(t, func() { AddFlagValidation(c, "missing", ValidateLogLevel) })
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "loud", "Card.vue")
	assert.Error(t, err)
}
