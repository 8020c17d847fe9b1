package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/pose"
)

type textResult struct {
	N int `json:"n"`
}

func (r textResult) Text() string { return fmt.Sprintf("n=%d\n", r.N) }

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(textResult{N: 3}))

	var resp struct {
		Status string     `json:"status"`
		Data   textResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.N)
}

func TestOutputFormatter_JSONPartial(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Partial(textResult{N: 1}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "partial", resp.Status)
}

func TestOutputFormatter_TextUsesTexter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(textResult{N: 7}))
	assert.Equal(t, "n=7\n", buf.String())
}

func TestOutputFormatter_TextFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeUsage, "bad flag", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUsage, resp.Error.Code)
	assert.Equal(t, "bad flag", resp.Error.Message)
}

func TestOutputFormatter_FailMapsPoseErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(pose.InputFormatError("table.csv", "missing filename column", nil))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, string(pose.ErrCodeInputFormat), resp.Error.Code)
	assert.Equal(t, "table.csv", resp.Error.Details["path"])
}

func TestOutputFormatter_FailText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(errors.New("disk full"))
	require.Error(t, err)
	assert.Equal(t, "Error [INTERNAL]: disk full\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "2 partition(s) failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("run: %w", WrapExitError(ExitFailure, "partial", errors.New("cause")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "x", NewExitError(ExitFailure, "x").Error())
	err := WrapExitError(ExitCommandError, "load", errors.New("boom"))
	assert.Equal(t, "load: boom", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "boom")
}
