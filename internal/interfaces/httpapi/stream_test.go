package httpapi

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestWatchSessionStreamsFullSnapshots(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	bootstrap(t, router, "alice-token")

	req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/watch/session", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer alice-token")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The first frame is the initial full snapshot.
	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data, "expected a data frame on the stream")

	var view sessionViewDTO
	require.NoError(t, sonic.Unmarshal([]byte(data), &view))
	require.Equal(t, "alice", view.Me.ID)
	require.Nil(t, view.Squad)
}
