package realtime

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipeConns() (*Conn, *Conn) {
	a, b := net.Pipe()
	return &Conn{conn: a}, &Conn{conn: b}
}

func TestComputeAcceptKey(t *testing.T) {
	t.Parallel()

	// пример из RFC 6455
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestJSONRoundtrip(t *testing.T) {
	t.Parallel()

	server, client := pipeConns()

	type payload struct {
		Content string `json:"content"`
	}

	go func() {
		_ = server.WriteJSON(payload{Content: "hello"})
	}()

	var got payload
	require.NoError(t, client.ReadJSON(&got))
	require.Equal(t, "hello", got.Content)
}

func TestReadFrame_Masked(t *testing.T) {
	t.Parallel()

	server, client := pipeConns()

	// текстовый фрейм с клиентской маской, как его шлёт браузер
	payload := []byte(`{"content":"hi"}`)
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	frame := []byte{0x81, 0x80 | byte(len(payload))}
	frame = append(frame, mask[:]...)
	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}

	go func() {
		_, _ = client.conn.Write(frame)
	}()

	var got struct {
		Content string `json:"content"`
	}
	require.NoError(t, server.ReadJSON(&got))
	require.Equal(t, "hi", got.Content)
}

func TestReadFrame_PingGetsPong(t *testing.T) {
	t.Parallel()

	server, client := pipeConns()
	done := make(chan error, 1)

	go func() {
		var v interface{}
		done <- server.ReadJSON(&v)
	}()

	// ping, затем нормальный текстовый фрейм
	go func() {
		_, _ = client.conn.Write([]byte{0x89, 0x04, 'p', 'i', 'n', 'g'})
	}()

	// ответный pong с тем же телом
	pong := make([]byte, 6)
	_, err := io.ReadFull(client.conn, pong)
	require.NoError(t, err)
	require.Equal(t, []byte{0x8A, 0x04, 'p', 'i', 'n', 'g'}, pong)

	go func() {
		_ = client.WriteJSON(map[string]string{"content": "after ping"})
	}()
	require.NoError(t, <-done)
}

func TestReadFrame_OversizedLengthRejected(t *testing.T) {
	t.Parallel()

	server, client := pipeConns()

	// 64-битная длина далеко за лимитом: аллокации быть не должно
	frame := []byte{0x81, 127, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	go func() {
		_, _ = client.conn.Write(frame)
	}()

	var v interface{}
	err := server.ReadJSON(&v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too large")
}

func TestReadFrame_Close(t *testing.T) {
	t.Parallel()

	server, client := pipeConns()

	go func() {
		_, _ = client.conn.Write([]byte{0x88, 0x00})
	}()

	var v interface{}
	require.ErrorIs(t, server.ReadJSON(&v), io.EOF)
}
