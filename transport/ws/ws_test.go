package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// dialServer starts an httptest server that upgrades every request to a
// WebSocket and hands the server-side *websocket.Conn to serverFn on its
// own goroutine, then dials a client connection to it.
func dialServer(t *testing.T, serverFn func(*websocket.Conn)) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade error = %v", err)
			return
		}
		go serverFn(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("client dial error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnReadWriteRoundTrip(t *testing.T) {
	t.Parallel()

	client := dialServer(t, func(serverRaw *websocket.Conn) {
		server := Wrap(serverRaw)
		buf := make([]byte, 11)
		n, err := server.Read(buf)
		if err != nil {
			t.Errorf("server Read() error = %v", err)
			return
		}
		server.Write(buf[:n])
	})

	if err := client.WriteMessage(websocket.BinaryMessage, []byte("hello world")); err != nil {
		t.Fatalf("client WriteMessage error = %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client ReadMessage error = %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("echoed = %q, want %q", data, "hello world")
	}
}

func TestConnReadSplitsAcrossSmallerBuffers(t *testing.T) {
	t.Parallel()

	want := "hello world"
	gotCh := make(chan []byte, 1)

	client := dialServer(t, func(serverRaw *websocket.Conn) {
		server := Wrap(serverRaw)
		buf := make([]byte, 4)
		var got []byte
		for len(got) < len(want) {
			n, err := server.Read(buf)
			if err != nil || n == 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
		gotCh <- got
	})

	if err := client.WriteMessage(websocket.BinaryMessage, []byte(want)); err != nil {
		t.Fatalf("client WriteMessage error = %v", err)
	}

	select {
	case got := <-gotCh:
		if string(got) != want {
			t.Errorf("reassembled content = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to read the message")
	}
}

func TestConnRejectsTextFrame(t *testing.T) {
	t.Parallel()

	serverDone := make(chan int, 1)

	client := dialServer(t, func(serverRaw *websocket.Conn) {
		server := Wrap(serverRaw)
		n, err := server.Read(make([]byte, 16))
		if err != nil {
			t.Errorf("server Read() after text frame error = %v, want nil", err)
		}
		serverDone <- n
		if server.IsAlive() {
			t.Error("server IsAlive() = true after rejecting a text frame")
		}
	})

	if err := client.WriteMessage(websocket.TextMessage, []byte("not allowed")); err != nil {
		t.Fatalf("client WriteMessage error = %v", err)
	}

	select {
	case n := <-serverDone:
		if n != 0 {
			t.Errorf("server Read() after text frame n = %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to reject text frame")
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("client ReadMessage() error = %v, want *websocket.CloseError", err)
	}
	if closeErr.Code != websocket.CloseUnsupportedData {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseUnsupportedData)
	}
}

func TestConnCloseFrameIsGracefulEndOfStream(t *testing.T) {
	t.Parallel()

	serverDone := make(chan struct {
		n   int
		err error
	}, 1)

	client := dialServer(t, func(serverRaw *websocket.Conn) {
		server := Wrap(serverRaw)
		n, err := server.Read(make([]byte, 16))
		serverDone <- struct {
			n   int
			err error
		}{n, err}
	})

	client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case result := <-serverDone:
		if result.err != nil {
			t.Errorf("server Read() after close frame error = %v, want nil", result.err)
		}
		if result.n != 0 {
			t.Errorf("server Read() after close frame n = %d, want 0", result.n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to observe the close frame")
	}
}
