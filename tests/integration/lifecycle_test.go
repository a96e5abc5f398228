package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedPost(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, BaseURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", APIKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func authedDelete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, BaseURL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", APIKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// TestHappyPathAndRelease exercises scenario 1 from the spec: execute,
// list files, delete the box, and confirm the slot came back by
// executing again against a pool of size 1.
func TestHappyPathAndRelease(t *testing.T) {
	resp := authedPost(t, "/execute", map[string]string{
		"language": "shell",
		"code":     "#!/bin/sh\necho hello\n",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execResp struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		BoxID    int    `json:"box_id"`
		Metadata struct {
			Status   string `json:"status"`
			ExitCode int    `json:"exit_code"`
		} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&execResp))
	assert.Contains(t, execResp.Stdout, "hello")
	assert.Equal(t, "OK", execResp.Metadata.Status)
	assert.Equal(t, 0, execResp.Metadata.ExitCode)

	filesResp, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/boxes/%d/files", BaseURL, execResp.BoxID), nil)
	require.NoError(t, err)
	filesResp.Header.Set("X-API-Key", APIKey)
	listResp, err := http.DefaultClient.Do(filesResp)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var files struct {
		Files []string `json:"files"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&files))
	assert.NotContains(t, files.Files, "bin")
	assert.NotContains(t, files.Files, "runner")

	del := authedDelete(t, fmt.Sprintf("/boxes/%d", execResp.BoxID))
	assert.Equal(t, http.StatusOK, del.StatusCode)

	// Pool size is 1; a second execute only succeeds if the slot was
	// actually released.
	resp2 := authedPost(t, "/execute", map[string]string{
		"language": "shell",
		"code":     "#!/bin/sh\necho again\n",
	})
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	var execResp2 struct {
		Stdout string `json:"stdout"`
		BoxID  int    `json:"box_id"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&execResp2))
	assert.Contains(t, execResp2.Stdout, "again")
	authedDelete(t, fmt.Sprintf("/boxes/%d", execResp2.BoxID))
}

// TestUnknownLanguage exercises scenario 2: an unregistered language
// name fails with LanguageNotFound mapped to 404.
func TestUnknownLanguage(t *testing.T) {
	resp := authedPost(t, "/execute", map[string]string{
		"language": "cobol",
		"code":     "",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "cobol")
}

// TestPoolExhaustion exercises scenario 4: with a pool of size 1, a
// second concurrent execute fails 503 while the first box is still
// held, and a third succeeds once the first is released.
func TestPoolExhaustion(t *testing.T) {
	resp1 := authedPost(t, "/execute", map[string]string{
		"language": "shell",
		"code":     "#!/bin/sh\nsleep 0\necho first\n",
	})
	require.Equal(t, http.StatusOK, resp1.StatusCode)
	var first struct {
		BoxID int `json:"box_id"`
	}
	require.NoError(t, json.NewDecoder(resp1.Body).Decode(&first))

	resp2 := authedPost(t, "/execute", map[string]string{
		"language": "shell",
		"code":     "#!/bin/sh\necho second\n",
	})
	require.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
	var busy struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&busy))
	assert.Equal(t, "Service is busy, please try again later", busy.Error)

	del := authedDelete(t, fmt.Sprintf("/boxes/%d", first.BoxID))
	require.Equal(t, http.StatusOK, del.StatusCode)

	resp3 := authedPost(t, "/execute", map[string]string{
		"language": "shell",
		"code":     "#!/bin/sh\necho third\n",
	})
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	var third struct {
		BoxID int `json:"box_id"`
	}
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&third))
	authedDelete(t, fmt.Sprintf("/boxes/%d", third.BoxID))
}
