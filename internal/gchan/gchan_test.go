package gchan_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/gordering/internal/gchan"
	"github.com/gordian-engine/gordering/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestSendC(t *testing.T) {
	t.Parallel()

	log := gtest.NewLogger(t)

	ch := make(chan int, 1)
	require.True(t, gchan.SendC(t.Context(), log, ch, 3, "sending three"))
	require.Equal(t, 3, <-ch)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.False(t, gchan.SendC(ctx, log, make(chan int), 4, "sending four"))
}

func TestRecvC(t *testing.T) {
	t.Parallel()

	log := gtest.NewLogger(t)

	ch := make(chan string, 1)
	ch <- "hello"
	got, ok := gchan.RecvC(t.Context(), log, ch, "receiving hello")
	require.True(t, ok)
	require.Equal(t, "hello", got)

	close(ch)
	_, ok = gchan.RecvC(t.Context(), log, ch, "receiving from closed")
	require.False(t, ok)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, ok = gchan.RecvC(ctx, log, make(chan string), "receiving nothing")
	require.False(t, ok)
}

func TestReqResp(t *testing.T) {
	t.Parallel()

	type req struct {
		N    int
		Resp chan int
	}

	log := gtest.NewLogger(t)
	reqs := make(chan req)

	go func() {
		r := <-reqs
		r.Resp <- r.N * 2
	}()

	r := req{N: 21, Resp: make(chan int, 1)}
	got, ok := gchan.ReqResp(t.Context(), log, reqs, r, r.Resp, "doubling")
	require.True(t, ok)
	require.Equal(t, 42, got)
}
